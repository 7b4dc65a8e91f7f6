// Package stats is the usage-counter side channel. Its failures are logged
// and must never affect query resolution.
package stats

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bisqwatch/bisqwatch-backend/pkg/kv"
)

// Event types emitted by the transport boundary.
const (
	EventQuery       = "query"
	EventStart       = "start"
	EventHint        = "hint"
	EventQueryResult = "query_result"
)

const keyPrefix = "bw"

// KnownEvent reports whether the event type is part of the counter contract.
func KnownEvent(event string) bool {
	switch event {
	case EventQuery, EventStart, EventHint, EventQueryResult:
		return true
	}
	return false
}

// Reporter records usage counters keyed by event type and day in a kv store.
type Reporter struct {
	store  kv.Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewReporter(store kv.Store, logger *zap.SugaredLogger) *Reporter {
	return &Reporter{store: store, logger: logger, now: time.Now}
}

// Report records one event occurrence for a user: the user joins the all-time
// and per-day user sets, and (except for "start") the all-time and per-day
// amount counters are incremented. Errors are logged, never returned.
func (r *Reporter) Report(ctx context.Context, event, userID string) {
	day := r.now().UTC().Format("2006-01-02")

	if userID != "" {
		r.sadd(ctx, fmt.Sprintf("%s:%s_users_total", keyPrefix, event), userID)
		r.sadd(ctx, fmt.Sprintf("%s:%s_users:%s", keyPrefix, event, day), userID)
	}
	if event == EventStart {
		return
	}
	r.incr(ctx, fmt.Sprintf("%s:amount_%s_total", keyPrefix, event))
	r.incr(ctx, fmt.Sprintf("%s:amount_%s:%s", keyPrefix, event, day))
}

func (r *Reporter) incr(ctx context.Context, key string) {
	if _, err := r.store.IncrBy(ctx, key, 1); err != nil {
		r.logger.Warnw("Failed to increment usage counter", "key", key, "error", err)
	}
}

func (r *Reporter) sadd(ctx context.Context, key, member string) {
	if _, err := r.store.SAdd(ctx, key, member); err != nil {
		r.logger.Warnw("Failed to record user", "key", key, "error", err)
	}
}
