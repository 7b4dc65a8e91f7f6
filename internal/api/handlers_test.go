package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bisqwatch/bisqwatch-backend/internal/config"
	"github.com/bisqwatch/bisqwatch-backend/internal/market"
	"github.com/bisqwatch/bisqwatch-backend/internal/query"
	"github.com/bisqwatch/bisqwatch-backend/internal/stats"
	"github.com/bisqwatch/bisqwatch-backend/pkg/kv/memory"
)

// Mock metrics for testing
type MockMetrics struct {
	queries int
}

func (m *MockMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
}

func (m *MockMetrics) RecordQuery(ctx context.Context, results int) {
	m.queries++
}

// MockChosenSink collects appended reports in memory.
type MockChosenSink struct {
	records []stats.ChosenResult
	err     error
}

func (m *MockChosenSink) Append(r stats.ChosenResult) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

var _ ChosenSink = (*MockChosenSink)(nil)

// staticSource serves a fixed snapshot.
type staticSource struct {
	snap *market.Snapshot
}

func (s *staticSource) Current() *market.Snapshot { return s.snap }

var (
	testEUR = market.Market{Quote: "btc", Base: "eur"}
	testUSD = market.Market{Quote: "btc", Base: "usd"}
)

// withURLParam injects one chi route parameter into the request context for
// handlers tested without a router.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("BW_MARKETS", "btc_eur,btc_usd")
	t.Setenv("BW_SAMPLE_MARKETS", "btc_eur")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func testBookSide(direction market.Direction, ids ...string) []market.Offer {
	offers := make([]market.Offer, 0, len(ids))
	price := decimal.NewFromInt(45000)
	for _, id := range ids {
		offers = append(offers, market.Offer{
			ID:            id,
			Direction:     direction,
			Amount:        decimal.NewFromFloat(0.25),
			MinAmount:     decimal.NewFromFloat(0.25),
			Volume:        decimal.NewFromFloat(0.25).Mul(price),
			Price:         price,
			PaymentMethod: "SEPA",
		})
	}
	return offers
}

func createTestHandler(t *testing.T, snap *market.Snapshot) (*Handler, *MockMetrics, *MockChosenSink, *memory.Store) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	sugar := logger.Sugar()

	cfg := testConfig(t)
	formatter := query.NewFormatter(cfg.Icons())
	resolver := query.NewResolver(query.ResolverConfig{
		Markets:       cfg.TrackedMarkets(),
		SampleMarkets: cfg.SampleMarkets(),
	}, formatter, sugar)

	store := memory.NewStore()
	mockMetrics := &MockMetrics{}
	chosenSink := &MockChosenSink{}

	handler := NewHandler(
		resolver,
		&staticSource{snap: snap},
		stats.NewReporter(store, sugar),
		chosenSink,
		cfg,
		sugar,
		mockMetrics,
	)
	return handler, mockMetrics, chosenSink, store
}

func testSnapshot() *market.Snapshot {
	return &market.Snapshot{
		Books: map[market.Market]market.OrderBook{
			testEUR: {
				Buys:  testBookSide(market.DirectionBuy, "b1-uuid", "b2-uuid", "b3-uuid"),
				Sells: testBookSide(market.DirectionSell, "s1-uuid", "s2-uuid"),
			},
			testUSD: {
				Buys:  testBookSide(market.DirectionBuy, "ub1-uuid"),
				Sells: testBookSide(market.DirectionSell, "us1-uuid"),
			},
		},
		Prices:    map[market.Market]float64{testEUR: 45000},
		FetchedAt: time.Unix(1700000000, 0),
	}
}

func TestHandleQuery(t *testing.T) {
	handler, mockMetrics, _, store := createTestHandler(t, testSnapshot())

	req := httptest.NewRequest("GET", "/v1/query?q=buys+euro&user_id=u1", nil)
	rec := httptest.NewRecorder()
	handler.HandleQuery(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "buys euro", resp.Query)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "b1-uuid", resp.Results[0].ID)
	assert.Contains(t, resp.Results[0].Title, "You can buy")

	assert.Equal(t, 1, mockMetrics.queries)

	// Query and query_result counters both fire on a non-empty answer.
	total, err := store.Get(req.Context(), "bw:amount_query_total")
	require.NoError(t, err)
	assert.Equal(t, "1", string(total))
	total, err = store.Get(req.Context(), "bw:amount_query_result_total")
	require.NoError(t, err)
	assert.Equal(t, "1", string(total))
}

func TestHandleQuery_EmptyQueryFallsBack(t *testing.T) {
	handler, _, _, _ := createTestHandler(t, testSnapshot())

	req := httptest.NewRequest("GET", "/v1/query", nil)
	rec := httptest.NewRecorder()
	handler.HandleQuery(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Results)
	assert.LessOrEqual(t, len(resp.Results), query.MaxResults)
}

func TestListMarkets(t *testing.T) {
	handler, _, _, _ := createTestHandler(t, testSnapshot())

	req := httptest.NewRequest("GET", "/v1/markets", nil)
	rec := httptest.NewRecorder()
	handler.ListMarkets(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp MarketsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Markets, 2)
	assert.Equal(t, int64(1700000000), resp.FetchedAt)

	eur := resp.Markets[0]
	assert.Equal(t, "btc_eur", eur.Name)
	assert.Equal(t, "BTC/EUR", eur.Label)
	assert.Equal(t, 3, eur.Bids)
	assert.Equal(t, 2, eur.Asks)
	assert.Equal(t, 45000.0, eur.ReferencePrice)

	usd := resp.Markets[1]
	assert.Equal(t, "btc_usd", usd.Name)
	assert.Zero(t, usd.ReferencePrice)
}

func TestHandleEvent(t *testing.T) {
	handler, _, _, store := createTestHandler(t, testSnapshot())

	body := bytes.NewBufferString(`{"user_id": "u1"}`)
	req := httptest.NewRequest("POST", "/v1/events/hint", body)
	req = withURLParam(req, "type", "hint")
	rec := httptest.NewRecorder()
	handler.HandleEvent(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)

	total, err := store.Get(req.Context(), "bw:amount_hint_total")
	require.NoError(t, err)
	assert.Equal(t, "1", string(total))
}

func TestHandleEvent_NoBody(t *testing.T) {
	handler, _, _, store := createTestHandler(t, testSnapshot())

	req := httptest.NewRequest("POST", "/v1/events/hint", nil)
	req = withURLParam(req, "type", "hint")
	rec := httptest.NewRecorder()
	handler.HandleEvent(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)

	// Counted without a user id, not rejected as invalid JSON.
	total, err := store.Get(req.Context(), "bw:amount_hint_total")
	require.NoError(t, err)
	assert.Equal(t, "1", string(total))
}

func TestHandleEvent_UnknownType(t *testing.T) {
	handler, _, _, _ := createTestHandler(t, testSnapshot())

	req := httptest.NewRequest("POST", "/v1/events/selfdestruct", bytes.NewBufferString(`{}`))
	req = withURLParam(req, "type", "selfdestruct")
	rec := httptest.NewRecorder()
	handler.HandleEvent(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "UNKNOWN_EVENT", errResp.Code)
}

func TestHandleChosen(t *testing.T) {
	handler, _, chosenSink, _ := createTestHandler(t, testSnapshot())

	body := bytes.NewBufferString(`{"result_id": "b1-uuid", "user_id": "u1", "query": "buys euro"}`)
	req := httptest.NewRequest("POST", "/v1/chosen", body)
	rec := httptest.NewRecorder()
	handler.HandleChosen(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, chosenSink.records, 1)
	assert.Equal(t, "b1-uuid", chosenSink.records[0].ResultID)
	assert.Equal(t, "buys euro", chosenSink.records[0].Query)
}

func TestHandleChosen_MissingResultID(t *testing.T) {
	handler, _, chosenSink, _ := createTestHandler(t, testSnapshot())

	req := httptest.NewRequest("POST", "/v1/chosen", bytes.NewBufferString(`{"user_id": "u1"}`))
	rec := httptest.NewRecorder()
	handler.HandleChosen(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, chosenSink.records)
}

func TestReadyz(t *testing.T) {
	handler, _, _, _ := createTestHandler(t, testSnapshot())

	rec := httptest.NewRecorder()
	handler.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz_NoSnapshotYet(t *testing.T) {
	handler, _, _, _ := createTestHandler(t, &market.Snapshot{})

	rec := httptest.NewRecorder()
	handler.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthz(t *testing.T) {
	handler, _, _, _ := createTestHandler(t, &market.Snapshot{})

	rec := httptest.NewRecorder()
	handler.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
