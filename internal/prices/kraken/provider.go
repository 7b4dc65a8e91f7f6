// Package kraken sources reference mid-prices from the Kraken public API.
package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bisqwatch/bisqwatch-backend/internal/market"
	"github.com/bisqwatch/bisqwatch-backend/internal/prices"
)

const (
	KrakenRestAPI = "https://api.kraken.com"
	KrakenWS      = "wss://ws.kraken.com"
)

// restAssets maps currency codes to Kraken's REST asset codes.
var restAssets = map[market.Currency]string{
	"btc": "XXBT",
	"xmr": "XXMR",
	"eur": "ZEUR",
	"usd": "ZUSD",
	"cad": "ZCAD",
	"gbp": "ZGBP",
}

// wsAssets maps currency codes to Kraken's WebSocket asset codes.
var wsAssets = map[market.Currency]string{
	"btc": "XBT",
	"xmr": "XMR",
	"eur": "EUR",
	"usd": "USD",
	"cad": "CAD",
	"gbp": "GBP",
}

// RestPair returns the Kraken REST pair symbol for a market, e.g.
// btc_eur -> XXBTZEUR. The second result is false for unsupported markets.
func RestPair(m market.Market) (string, bool) {
	quote, ok := restAssets[m.Quote]
	if !ok {
		return "", false
	}
	base, ok := restAssets[m.Base]
	if !ok {
		return "", false
	}
	return quote + base, true
}

// WSPair returns the Kraken WebSocket pair symbol, e.g. btc_eur -> XBT/EUR.
func WSPair(m market.Market) (string, bool) {
	quote, ok := wsAssets[m.Quote]
	if !ok {
		return "", false
	}
	base, ok := wsAssets[m.Base]
	if !ok {
		return "", false
	}
	return quote + "/" + base, true
}

// Provider implements the prices.Provider interface for Kraken.
type Provider struct {
	logger  *zap.SugaredLogger
	client  *http.Client
	baseURL string

	mu     sync.RWMutex
	health prices.ProviderHealth
}

func NewProvider(logger *zap.SugaredLogger) *Provider {
	return &Provider{
		logger:  logger,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: KrakenRestAPI,
		health: prices.ProviderHealth{
			Healthy:     true,
			LastSuccess: time.Now(),
		},
	}
}

func (p *Provider) Name() string { return "kraken" }

func (p *Provider) Health() prices.ProviderHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}

func (p *Provider) updateHealth(healthy bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.health.Healthy = healthy
	if healthy {
		p.health.LastSuccess = time.Now()
		p.health.LastError = ""
	} else if err != nil {
		p.health.LastError = err.Error()
	}
}

// tickerResponse is the /0/public/Ticker envelope.
type tickerResponse struct {
	Error  []string              `json:"error"`
	Result map[string]tickerInfo `json:"result"`
}

type tickerInfo struct {
	Ask []string `json:"a"`
	Bid []string `json:"b"`
}

// FetchMidPrices fetches the ticker for all supported markets in one request
// and computes the mid of best bid and best ask. Transient failures are
// retried with exponential backoff.
func (p *Provider) FetchMidPrices(ctx context.Context, markets []market.Market) (map[market.Market]float64, error) {
	pairs := make(map[string]market.Market)
	var symbols []string
	for _, m := range markets {
		symbol, ok := RestPair(m)
		if !ok {
			continue
		}
		pairs[symbol] = m
		symbols = append(symbols, symbol)
	}
	if len(symbols) == 0 {
		return map[market.Market]float64{}, nil
	}

	params := url.Values{}
	params.Set("pair", strings.Join(symbols, ","))
	requestURL := fmt.Sprintf("%s/0/public/Ticker?%s", p.baseURL, params.Encode())

	operation := func() (*tickerResponse, error) {
		return p.fetchTicker(ctx, requestURL)
	}
	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(30*time.Second),
	)
	if err != nil {
		p.updateHealth(false, err)
		return nil, fmt.Errorf("failed to fetch from Kraken: %w", err)
	}

	result := make(map[market.Market]float64, len(resp.Result))
	for symbol, info := range resp.Result {
		m, ok := pairs[symbol]
		if !ok {
			continue
		}
		mid, err := midPrice(info)
		if err != nil {
			p.logger.Warnw("Failed to parse ticker", "pair", symbol, "error", err)
			continue
		}
		result[m] = mid
	}

	p.updateHealth(true, nil)
	p.logger.Debugw("Fetched mid-prices from Kraken", "requested", len(symbols), "got", len(result))
	return result, nil
}

func (p *Provider) fetchTicker(ctx context.Context, requestURL string) (*tickerResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Kraken API error: %d", resp.StatusCode)
	}
	var ticker tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(ticker.Error) > 0 {
		return nil, backoff.Permanent(fmt.Errorf("Kraken API error: %s", strings.Join(ticker.Error, "; ")))
	}
	return &ticker, nil
}

func midPrice(info tickerInfo) (float64, error) {
	if len(info.Ask) == 0 || len(info.Bid) == 0 {
		return 0, fmt.Errorf("ticker missing bid/ask")
	}
	ask, err := strconv.ParseFloat(info.Ask[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ask %q: %w", info.Ask[0], err)
	}
	bid, err := strconv.ParseFloat(info.Bid[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bid %q: %w", info.Bid[0], err)
	}
	return (ask + bid) / 2, nil
}

// wsSubscribe is the Kraken v1 WebSocket subscription message.
type wsSubscribe struct {
	Event        string   `json:"event"`
	Pair         []string `json:"pair"`
	Subscription struct {
		Name string `json:"name"`
	} `json:"subscription"`
}

// SubscribeLive subscribes to ticker updates via WebSocket and forwards the
// mid of best bid/ask for each update until ctx is done.
func (p *Provider) SubscribeLive(ctx context.Context, markets []market.Market, out chan<- prices.Quote) error {
	byPair := make(map[string]market.Market)
	var wsPairs []string
	for _, m := range markets {
		symbol, ok := WSPair(m)
		if !ok {
			continue
		}
		byPair[symbol] = m
		wsPairs = append(wsPairs, symbol)
	}
	if len(wsPairs) == 0 {
		return fmt.Errorf("no Kraken-supported markets to subscribe")
	}

	p.logger.Infow("Connecting to Kraken WebSocket", "url", KrakenWS, "pairs", wsPairs)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, KrakenWS, nil)
	if err != nil {
		p.updateHealth(false, err)
		return fmt.Errorf("failed to connect to Kraken WebSocket: %w", err)
	}
	defer conn.Close()

	sub := wsSubscribe{Event: "subscribe", Pair: wsPairs}
	sub.Subscription.Name = "ticker"
	if err := conn.WriteJSON(sub); err != nil {
		p.updateHealth(false, err)
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	p.updateHealth(true, nil)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			p.updateHealth(false, err)
			p.mu.Lock()
			p.health.Reconnects++
			p.mu.Unlock()
			return fmt.Errorf("WebSocket read error: %w", err)
		}

		quote, ok := parseTickerMessage(message, byPair)
		if !ok {
			continue // event/heartbeat frame
		}

		select {
		case out <- quote:
		case <-ctx.Done():
			return ctx.Err()
		default:
			p.logger.Debugw("Quote channel full, skipping", "market", quote.Market.String())
		}
		p.updateHealth(true, nil)
	}
}

// parseTickerMessage decodes a Kraken ticker frame. Ticker updates arrive as
// [channelID, payload, "ticker", "XBT/EUR"]; anything else is ignored.
func parseTickerMessage(message []byte, byPair map[string]market.Market) (prices.Quote, bool) {
	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil || len(frame) < 4 {
		return prices.Quote{}, false
	}
	var pair string
	if err := json.Unmarshal(frame[len(frame)-1], &pair); err != nil {
		return prices.Quote{}, false
	}
	m, ok := byPair[pair]
	if !ok {
		return prices.Quote{}, false
	}
	var info tickerInfo
	if err := json.Unmarshal(frame[1], &info); err != nil {
		return prices.Quote{}, false
	}
	mid, err := midPrice(info)
	if err != nil {
		return prices.Quote{}, false
	}
	return prices.Quote{Market: m, Mid: mid, TsMs: time.Now().UnixMilli()}, true
}
