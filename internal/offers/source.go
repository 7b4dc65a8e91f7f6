// Package offers defines the order-book source contract.
package offers

import (
	"context"

	"github.com/bisqwatch/bisqwatch-backend/internal/market"
)

// Source supplies the ranked order book of one market. Implementations must
// preserve the upstream ranking order.
type Source interface {
	FetchOrderBook(ctx context.Context, m market.Market) (market.OrderBook, error)
	Name() string
}
