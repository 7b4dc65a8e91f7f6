// Package prices defines the reference-price provider contract. A reference
// mid-price is the deviation baseline for offer rendering and may be absent
// for a market.
package prices

import (
	"context"
	"time"

	"github.com/bisqwatch/bisqwatch-backend/internal/market"
)

// Quote is a single reference mid-price update.
type Quote struct {
	Market market.Market `json:"market"`
	Mid    float64       `json:"mid"`
	TsMs   int64         `json:"ts"` // milliseconds since epoch
}

// Provider defines the interface for reference-price sources.
type Provider interface {
	// FetchMidPrices retrieves the current mid-price (between best bid and
	// best ask) for each market the provider supports. Unsupported markets
	// are simply absent from the result.
	FetchMidPrices(ctx context.Context, markets []market.Market) (map[market.Market]float64, error)

	// SubscribeLive streams mid-price updates until ctx is done.
	SubscribeLive(ctx context.Context, markets []market.Market, out chan<- Quote) error

	// Name returns the provider identifier.
	Name() string

	// Health returns current provider health status.
	Health() ProviderHealth
}

// ProviderHealth represents the current status of a provider.
type ProviderHealth struct {
	Healthy     bool      `json:"healthy"`
	LastError   string    `json:"last_error,omitempty"`
	LastSuccess time.Time `json:"last_success"`
	Reconnects  int       `json:"reconnects"`
}
