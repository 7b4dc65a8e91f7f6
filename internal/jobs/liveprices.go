package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bisqwatch/bisqwatch-backend/internal/market"
	"github.com/bisqwatch/bisqwatch-backend/internal/prices"
)

// LivePrices folds streamed quotes into the published snapshot between
// refresh cycles, so deviation figures track the market tighter than the
// refresh interval. Books are left untouched; only the price map is cloned
// and replaced.
type LivePrices struct {
	markets   []market.Market
	provider  prices.Provider
	publisher *market.Publisher
	logger    *zap.SugaredLogger
}

func NewLivePrices(markets []market.Market, provider prices.Provider, publisher *market.Publisher, logger *zap.SugaredLogger) *LivePrices {
	return &LivePrices{
		markets:   markets,
		provider:  provider,
		publisher: publisher,
		logger:    logger,
	}
}

// Start subscribes to the live feed and reconnects on failure until ctx is
// done. Feed errors never propagate; the periodic refresh keeps prices
// serviceable without the stream.
func (l *LivePrices) Start(ctx context.Context) error {
	quotes := make(chan prices.Quote, 64)

	go l.consume(ctx, quotes)

	retryDelay := 5 * time.Second
	for {
		err := l.provider.SubscribeLive(ctx, l.markets, quotes)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warnw("Live price feed disconnected, reconnecting",
			"provider", l.provider.Name(),
			"delay", retryDelay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

func (l *LivePrices) consume(ctx context.Context, quotes <-chan prices.Quote) {
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-quotes:
			l.apply(q)
		}
	}
}

// apply republishes the current snapshot with one updated price. The books
// maps are shared with the previous snapshot, which is safe because snapshots
// are never mutated after publication. The compare-and-swap loop restarts
// from the fresh snapshot when the refresher publishes mid-derivation, so a
// quote can never reinstate pre-refresh books.
func (l *LivePrices) apply(q prices.Quote) {
	for {
		current := l.publisher.Current()

		updated := make(map[market.Market]float64, len(current.Prices)+1)
		for m, p := range current.Prices {
			updated[m] = p
		}
		updated[q.Market] = q.Mid

		next := &market.Snapshot{
			Books:     current.Books,
			Prices:    updated,
			FetchedAt: current.FetchedAt,
		}
		if l.publisher.CompareAndSwap(current, next) {
			return
		}
	}
}
