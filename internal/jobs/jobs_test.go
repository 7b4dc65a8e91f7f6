package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bisqwatch/bisqwatch-backend/internal/market"
	"github.com/bisqwatch/bisqwatch-backend/internal/metrics"
	"github.com/bisqwatch/bisqwatch-backend/internal/prices"
)

var (
	metricsOnce sync.Once
	testMetrics *metrics.Metrics
)

// newTestMetrics returns a process-wide Metrics instance; the prometheus
// exporter registers on the default registry and tolerates only one setup
// per binary.
func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	metricsOnce.Do(func() {
		var err error
		testMetrics, _, err = metrics.Setup("bisqwatch-jobs-test")
		require.NoError(t, err)
	})
	return testMetrics
}

func testLogger() *zap.SugaredLogger {
	logger, _ := zap.NewDevelopment()
	return logger.Sugar()
}

// fakeBookSource serves canned order books and records failures to inject.
type fakeBookSource struct {
	mu    sync.Mutex
	books map[market.Market]market.OrderBook
	fail  map[market.Market]bool
	calls int
}

func (f *fakeBookSource) Name() string { return "fake" }

func (f *fakeBookSource) FetchOrderBook(ctx context.Context, m market.Market) (market.OrderBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[m] {
		return market.OrderBook{}, fmt.Errorf("injected failure for %s", m.String())
	}
	return f.books[m], nil
}

// fakePriceProvider serves canned mid-prices.
type fakePriceProvider struct {
	mids map[market.Market]float64
	err  error
}

func (f *fakePriceProvider) Name() string { return "fake-prices" }

func (f *fakePriceProvider) FetchMidPrices(ctx context.Context, markets []market.Market) (map[market.Market]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.mids, nil
}

func (f *fakePriceProvider) SubscribeLive(ctx context.Context, markets []market.Market, out chan<- prices.Quote) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakePriceProvider) Health() prices.ProviderHealth {
	return prices.ProviderHealth{Healthy: f.err == nil}
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func sellOffer(t *testing.T, id, price string) market.Offer {
	t.Helper()
	p := mustDec(t, price)
	amount := mustDec(t, "0.5")
	return market.Offer{
		ID:            id,
		Direction:     market.DirectionSell,
		Amount:        amount,
		MinAmount:     amount,
		Volume:        amount.Mul(p),
		Price:         p,
		PaymentMethod: "SEPA",
	}
}
