package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	HTTPRequests    metric.Int64Counter
	HTTPDuration    metric.Float64Histogram
	Queries         metric.Int64Counter
	QueryResults    metric.Int64Histogram
	FetchErrors     metric.Int64Counter
	SnapshotRefresh metric.Int64Counter
	RefreshDuration metric.Float64Histogram
	AlertsSent      metric.Int64Counter
}

func Setup(serviceName string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{}

	m.HTTPRequests, err = meter.Int64Counter(
		"bw_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"bw_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.Queries, err = meter.Int64Counter(
		"bw_queries_total",
		metric.WithDescription("Total number of resolved queries"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.QueryResults, err = meter.Int64Histogram(
		"bw_query_results",
		metric.WithDescription("Result-list length per resolved query"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.FetchErrors, err = meter.Int64Counter(
		"bw_fetch_errors_total",
		metric.WithDescription("Total number of upstream fetch failures"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SnapshotRefresh, err = meter.Int64Counter(
		"bw_snapshot_refresh_total",
		metric.WithDescription("Total number of published snapshots"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RefreshDuration, err = meter.Float64Histogram(
		"bw_refresh_duration_seconds",
		metric.WithDescription("Duration of one full refresh cycle in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.AlertsSent, err = meter.Int64Counter(
		"bw_alerts_sent_total",
		metric.WithDescription("Total number of below-market alerts delivered"),
	)
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.Handler()
	return m, handler, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordQuery(ctx context.Context, results int) {
	m.Queries.Add(ctx, 1)
	m.QueryResults.Record(ctx, int64(results))
}

func (m *Metrics) RecordFetchError(ctx context.Context, source string) {
	m.FetchErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *Metrics) RecordSnapshotRefresh(ctx context.Context, elapsed time.Duration) {
	m.SnapshotRefresh.Add(ctx, 1)
	m.RefreshDuration.Record(ctx, elapsed.Seconds())
}

func (m *Metrics) RecordAlert(ctx context.Context, marketName string) {
	m.AlertsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("market", marketName)))
}
