// Package jobs runs the background work: the periodic snapshot refresh and
// the below-market alert scan.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bisqwatch/bisqwatch-backend/internal/market"
	"github.com/bisqwatch/bisqwatch-backend/internal/metrics"
	"github.com/bisqwatch/bisqwatch-backend/internal/offers"
	"github.com/bisqwatch/bisqwatch-backend/internal/prices"
	"github.com/bisqwatch/bisqwatch-backend/pkg/kv"
)

const snapshotKey = "bw:snapshot:latest"

type RefresherConfig struct {
	Markets        []market.Market
	Interval       time.Duration
	MaxSnapshotAge time.Duration
}

// Refresher periodically fetches every tracked market's order book and the
// reference mid-prices, then publishes one complete immutable snapshot.
// Query resolution never waits on it; readers keep the previous snapshot
// until the swap.
type Refresher struct {
	cfg       RefresherConfig
	books     offers.Source
	prices    prices.Provider
	publisher *market.Publisher
	store     kv.Store
	scanner   *AlertScanner
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger
}

func NewRefresher(
	cfg RefresherConfig,
	books offers.Source,
	priceProvider prices.Provider,
	publisher *market.Publisher,
	store kv.Store,
	scanner *AlertScanner,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
) *Refresher {
	return &Refresher{
		cfg:       cfg,
		books:     books,
		prices:    priceProvider,
		publisher: publisher,
		store:     store,
		scanner:   scanner,
		metrics:   m,
		logger:    logger,
	}
}

// Start warm-starts from persisted state when it is fresh enough, otherwise
// refreshes immediately, then loops until ctx is done.
func (r *Refresher) Start(ctx context.Context) error {
	if !r.restore(ctx) {
		r.refreshOnce(ctx)
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Infow("Refresher stopping due to context cancellation")
			return ctx.Err()
		case <-ticker.C:
			r.refreshOnce(ctx)
		}
	}
}

// refreshOnce builds the next snapshot. A failed market fetch keeps that
// market's previous book so readers never observe a half-fetched cycle.
func (r *Refresher) refreshOnce(ctx context.Context) {
	start := time.Now()
	previous := r.publisher.Current()

	next := &market.Snapshot{
		Books:     make(map[market.Market]market.OrderBook, len(r.cfg.Markets)),
		Prices:    make(map[market.Market]float64),
		FetchedAt: time.Now(),
	}

	for _, m := range r.cfg.Markets {
		book, err := r.books.FetchOrderBook(ctx, m)
		if err != nil {
			r.logger.Warnw("Order book fetch failed, keeping previous", "market", m.String(), "error", err)
			r.metrics.RecordFetchError(ctx, r.books.Name())
			if prev, ok := previous.Book(m); ok {
				next.Books[m] = prev
			}
			continue
		}
		next.Books[m] = book
	}

	mids, err := r.prices.FetchMidPrices(ctx, r.cfg.Markets)
	if err != nil {
		r.logger.Warnw("Reference price fetch failed, keeping previous", "error", err)
		r.metrics.RecordFetchError(ctx, r.prices.Name())
		for m, p := range previous.Prices {
			next.Prices[m] = p
		}
	} else {
		for m, p := range mids {
			next.Prices[m] = p
		}
	}

	r.publisher.Publish(next)
	r.metrics.RecordSnapshotRefresh(ctx, time.Since(start))
	r.logger.Infow("Published snapshot",
		"markets", len(next.Books),
		"prices", len(next.Prices),
		"elapsed", time.Since(start),
	)

	if err := r.persist(ctx, next); err != nil {
		r.logger.Warnw("Failed to persist snapshot", "error", err)
	}
	if r.scanner != nil {
		r.scanner.Scan(ctx, next)
	}
}

// persistedSnapshot is the kv serialization of a snapshot; struct map keys
// become canonical market strings.
type persistedSnapshot struct {
	Books     map[string]market.OrderBook `json:"books"`
	Prices    map[string]float64          `json:"prices"`
	FetchedAt time.Time                   `json:"fetched_at"`
}

func (r *Refresher) persist(ctx context.Context, snap *market.Snapshot) error {
	dto := persistedSnapshot{
		Books:     make(map[string]market.OrderBook, len(snap.Books)),
		Prices:    make(map[string]float64, len(snap.Prices)),
		FetchedAt: snap.FetchedAt,
	}
	for m, book := range snap.Books {
		dto.Books[m.String()] = book
	}
	for m, p := range snap.Prices {
		dto.Prices[m.String()] = p
	}
	data, err := json.Marshal(dto)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return r.store.Set(ctx, snapshotKey, data)
}

// restore loads the persisted snapshot and publishes it when younger than
// MaxSnapshotAge. Returns false when a fresh fetch is needed.
func (r *Refresher) restore(ctx context.Context) bool {
	data, err := r.store.Get(ctx, snapshotKey)
	if err != nil {
		if err != kv.ErrNotFound {
			r.logger.Warnw("Failed to load persisted snapshot", "error", err)
		}
		return false
	}
	var dto persistedSnapshot
	if err := json.Unmarshal(data, &dto); err != nil {
		r.logger.Warnw("Discarding unreadable persisted snapshot", "error", err)
		return false
	}
	if time.Since(dto.FetchedAt) > r.cfg.MaxSnapshotAge {
		r.logger.Infow("Persisted snapshot too old, refreshing", "fetched_at", dto.FetchedAt)
		return false
	}

	snap := &market.Snapshot{
		Books:     make(map[market.Market]market.OrderBook, len(dto.Books)),
		Prices:    make(map[market.Market]float64, len(dto.Prices)),
		FetchedAt: dto.FetchedAt,
	}
	for name, book := range dto.Books {
		m, err := market.ParseMarket(name)
		if err != nil {
			r.logger.Warnw("Discarding persisted book with invalid market", "market", name)
			continue
		}
		snap.Books[m] = book
	}
	for name, p := range dto.Prices {
		m, err := market.ParseMarket(name)
		if err != nil {
			continue
		}
		snap.Prices[m] = p
	}
	if len(snap.Books) == 0 {
		return false
	}

	r.publisher.Publish(snap)
	r.logger.Infow("Warm-started from persisted snapshot", "fetched_at", dto.FetchedAt, "markets", len(snap.Books))
	return true
}
