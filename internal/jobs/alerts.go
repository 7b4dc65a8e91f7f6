package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bisqwatch/bisqwatch-backend/internal/market"
	"github.com/bisqwatch/bisqwatch-backend/internal/metrics"
	"github.com/bisqwatch/bisqwatch-backend/internal/query"
	"github.com/bisqwatch/bisqwatch-backend/pkg/kv"
)

const seenAlertsKey = "bw:alerts:seen"

// Alert describes a sell offer priced below the reference market price.
type Alert struct {
	ID      string               `json:"id"`
	Market  string               `json:"market"`
	OfferID string               `json:"offer_id"`
	Percent float64              `json:"percent"`
	Message query.MessageContent `json:"message"`
	SentAt  time.Time            `json:"sent_at"`
}

// Sink delivers alerts somewhere users will see them.
type Sink interface {
	Deliver(ctx context.Context, alert Alert) error
}

// WebhookSink posts each alert as JSON to a configured URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSink) Deliver(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogSink writes alerts to the application log. Used when no webhook is
// configured.
type LogSink struct {
	logger *zap.SugaredLogger
}

func NewLogSink(logger *zap.SugaredLogger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(_ context.Context, alert Alert) error {
	s.logger.Infow("Below-market offer",
		"market", alert.Market,
		"offer_id", alert.OfferID,
		"percent", fmt.Sprintf("%.4f", alert.Percent),
	)
	return nil
}

// AlertScanner walks the sell side of the watched markets after each
// snapshot refresh and raises an alert for every offer priced below the
// reference price by more than the threshold. Each offer alerts at most
// once; seen ids live in a kv set.
type AlertScanner struct {
	markets   []market.Market
	threshold float64
	formatter *query.Formatter
	store     kv.Store
	sink      Sink
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger
}

func NewAlertScanner(
	markets []market.Market,
	threshold float64,
	formatter *query.Formatter,
	store kv.Store,
	sink Sink,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
) *AlertScanner {
	return &AlertScanner{
		markets:   markets,
		threshold: threshold,
		formatter: formatter,
		store:     store,
		sink:      sink,
		metrics:   m,
		logger:    logger,
	}
}

// Scan inspects one snapshot. Failures are logged and skipped; the refresh
// loop must not stall on delivery problems.
func (s *AlertScanner) Scan(ctx context.Context, snap *market.Snapshot) {
	for _, m := range s.markets {
		ref, ok := snap.ReferencePrice(m)
		if !ok {
			continue
		}
		book, ok := snap.Book(m)
		if !ok {
			continue
		}
		for _, offer := range book.Sells {
			price, _ := offer.Price.Float64()
			if price == 0 {
				continue
			}
			// Negative when the asking price sits below the reference.
			percent := 1 - ref/price
			if percent >= -s.threshold {
				continue
			}
			s.raise(ctx, m, offer, ref, percent)
		}
	}
}

func (s *AlertScanner) raise(ctx context.Context, m market.Market, offer market.Offer, ref, percent float64) {
	seen, err := s.store.SIsMember(ctx, seenAlertsKey, offer.ID)
	if err != nil {
		s.logger.Warnw("Failed to check alert dedup set", "error", err)
		return
	}
	if seen {
		return
	}

	text, err := s.formatter.AlertMessage(offer, m, ref, -percent)
	if err != nil {
		s.logger.Warnw("Skipping alert for malformed offer", "offer_id", offer.ID, "error", err)
		return
	}

	alert := Alert{
		ID:      uuid.NewString(),
		Market:  m.String(),
		OfferID: offer.ID,
		Percent: percent,
		Message: query.MessageContent{
			Text:                  text,
			ParseMode:             "HTML",
			DisableWebPagePreview: true,
		},
		SentAt: time.Now().UTC(),
	}
	if err := s.sink.Deliver(ctx, alert); err != nil {
		s.logger.Warnw("Failed to deliver alert", "offer_id", offer.ID, "error", err)
		return
	}
	if _, err := s.store.SAdd(ctx, seenAlertsKey, offer.ID); err != nil {
		s.logger.Warnw("Failed to record delivered alert", "offer_id", offer.ID, "error", err)
	}
	s.metrics.RecordAlert(ctx, m.String())
	s.logger.Infow("Alert delivered", "market", m.String(), "offer_id", offer.ID)
}
