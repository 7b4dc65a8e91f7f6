// Package bisq fetches order books from the Bisq markets API.
package bisq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bisqwatch/bisqwatch-backend/internal/market"
)

const BisqMarketsAPI = "https://markets.bisq.network"

// Client is the Bisq markets API order-book source.
type Client struct {
	logger  *zap.SugaredLogger
	client  *http.Client
	baseURL string
}

func NewClient(logger *zap.SugaredLogger) *Client {
	return &Client{
		logger:  logger,
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: BisqMarketsAPI,
	}
}

// NewClientWithBaseURL is used by tests to point at a stub server.
func NewClientWithBaseURL(logger *zap.SugaredLogger, baseURL string) *Client {
	c := NewClient(logger)
	c.baseURL = baseURL
	return c
}

func (c *Client) Name() string { return "bisq" }

// offerDTO is one order-book entry as the markets API serializes it. Decimal
// fields arrive as strings.
type offerDTO struct {
	OfferID       string          `json:"offer_id"`
	Direction     string          `json:"direction"`
	Price         decimal.Decimal `json:"price"`
	Amount        decimal.Decimal `json:"amount"`
	MinAmount     decimal.Decimal `json:"min_amount"`
	Volume        decimal.Decimal `json:"volume"`
	PaymentMethod string          `json:"payment_method"`
}

// bookDTO is the per-market envelope: {"<market>": {"buys": [...], "sells": [...]}}.
type bookDTO struct {
	Buys  []offerDTO `json:"buys"`
	Sells []offerDTO `json:"sells"`
}

// FetchOrderBook downloads and validates both sides of one market's book.
// Entries that fail validation are dropped with a warning; the upstream
// ranking order of the remainder is preserved.
func (c *Client) FetchOrderBook(ctx context.Context, m market.Market) (market.OrderBook, error) {
	params := url.Values{}
	params.Set("market", m.String())
	requestURL := fmt.Sprintf("%s/api/offers?%s", c.baseURL, params.Encode())

	operation := func() (map[string]bookDTO, error) {
		return c.fetchBook(ctx, requestURL)
	}
	books, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(30*time.Second),
	)
	if err != nil {
		return market.OrderBook{}, fmt.Errorf("failed to fetch %s offers: %w", m.String(), err)
	}

	dto, ok := books[m.String()]
	if !ok {
		return market.OrderBook{}, fmt.Errorf("market %s missing from offers response", m.String())
	}

	book := market.OrderBook{
		Buys:  c.ingest(dto.Buys, m),
		Sells: c.ingest(dto.Sells, m),
	}
	c.logger.Debugw("Downloaded market", "market", m.String(), "buys", len(book.Buys), "sells", len(book.Sells))
	return book, nil
}

func (c *Client) fetchBook(ctx context.Context, requestURL string) (map[string]bookDTO, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Bisq markets API error: %d", resp.StatusCode)
	}
	var books map[string]bookDTO
	if err := json.NewDecoder(resp.Body).Decode(&books); err != nil {
		return nil, fmt.Errorf("failed to decode offers response: %w", err)
	}
	return books, nil
}

// ingest converts and validates one ranked list. Validation happens here, at
// the ingestion boundary, so rendering only deals with well-formed records.
func (c *Client) ingest(dtos []offerDTO, m market.Market) []market.Offer {
	offers := make([]market.Offer, 0, len(dtos))
	for _, dto := range dtos {
		offer, err := dto.toOffer()
		if err != nil {
			c.logger.Warnw("Dropping malformed offer", "market", m.String(), "offer_id", dto.OfferID, "error", err)
			continue
		}
		offers = append(offers, offer)
	}
	return offers
}

func (d offerDTO) toOffer() (market.Offer, error) {
	if d.OfferID == "" {
		return market.Offer{}, fmt.Errorf("missing offer_id")
	}
	direction := market.Direction(strings.ToLower(d.Direction))
	if direction != market.DirectionBuy && direction != market.DirectionSell {
		return market.Offer{}, fmt.Errorf("invalid direction %q", d.Direction)
	}
	if !market.KnownPaymentMethod(d.PaymentMethod) {
		return market.Offer{}, &market.UnknownPaymentMethodError{Code: d.PaymentMethod}
	}
	if d.MinAmount.GreaterThan(d.Amount) {
		return market.Offer{}, fmt.Errorf("min_amount %s exceeds amount %s", d.MinAmount, d.Amount)
	}
	return market.Offer{
		ID:            d.OfferID,
		Direction:     direction,
		Amount:        d.Amount,
		MinAmount:     d.MinAmount,
		Volume:        d.Volume,
		Price:         d.Price,
		PaymentMethod: d.PaymentMethod,
	}, nil
}
