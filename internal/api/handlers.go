package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bisqwatch/bisqwatch-backend/internal/config"
	"github.com/bisqwatch/bisqwatch-backend/internal/market"
	"github.com/bisqwatch/bisqwatch-backend/internal/query"
	"github.com/bisqwatch/bisqwatch-backend/internal/stats"
)

// MetricsInterface defines the interface for metrics recording
type MetricsInterface interface {
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)
	RecordQuery(ctx context.Context, results int)
}

// ChosenSink persists which result a user picked.
type ChosenSink interface {
	Append(r stats.ChosenResult) error
}

type Handler struct {
	resolver  *query.Resolver
	source    market.Source
	reporter  *stats.Reporter
	chosenLog ChosenSink
	config    *config.Config
	logger    *zap.SugaredLogger
	metrics   MetricsInterface
}

func NewHandler(
	resolver *query.Resolver,
	source market.Source,
	reporter *stats.Reporter,
	chosenLog ChosenSink,
	config *config.Config,
	logger *zap.SugaredLogger,
	metrics MetricsInterface,
) *Handler {
	return &Handler{
		resolver:  resolver,
		source:    source,
		reporter:  reporter,
		chosenLog: chosenLog,
		config:    config,
		logger:    logger,
		metrics:   metrics,
	}
}

// HandleQuery resolves a free-text offer query against the current snapshot.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	userID := r.URL.Query().Get("user_id")

	h.reporter.Report(r.Context(), stats.EventQuery, userID)

	snap := h.source.Current()
	results := h.resolver.Resolve(snap, q)
	h.metrics.RecordQuery(r.Context(), len(results))
	if len(results) > 0 {
		h.reporter.Report(r.Context(), stats.EventQueryResult, userID)
	}

	h.writeJSON(w, http.StatusOK, QueryResponse{
		Query:   q,
		Results: results,
	})
}

// ListMarkets returns the tracked markets with their book depth and
// reference price from the current snapshot.
func (h *Handler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	snap := h.source.Current()

	dtos := make([]MarketDTO, 0, len(h.config.TrackedMarkets()))
	for _, m := range h.config.TrackedMarkets() {
		dto := MarketDTO{
			Name:  m.String(),
			Label: m.Label(),
		}
		if book, ok := snap.Book(m); ok {
			dto.Bids = len(book.Buys)
			dto.Asks = len(book.Sells)
		}
		if ref, ok := snap.ReferencePrice(m); ok {
			dto.ReferencePrice = ref
		}
		dtos = append(dtos, dto)
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].Name < dtos[j].Name })

	h.writeJSON(w, http.StatusOK, MarketsResponse{
		Markets:   dtos,
		FetchedAt: snap.FetchedAt.Unix(),
	})
}

// HandleEvent records a usage counter event such as a bot start or a hint
// view. The event type comes from the URL.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	event := chi.URLParam(r, "type")
	if !stats.KnownEvent(event) {
		h.writeError(w, http.StatusBadRequest, "UNKNOWN_EVENT", "unknown event type: "+event)
		return
	}

	// The body is optional; an event without a user id still counts.
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}

	h.reporter.Report(r.Context(), event, req.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleChosen logs which result a user selected from an answer.
func (h *Handler) HandleChosen(w http.ResponseWriter, r *http.Request) {
	var req ChosenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if req.ResultID == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_PARAMETER", "result_id is required")
		return
	}

	if err := h.chosenLog.Append(stats.ChosenResult{
		ResultID: req.ResultID,
		UserID:   req.UserID,
		Query:    req.Query,
	}); err != nil {
		h.logger.Errorw("Failed to append chosen result", "result_id", req.ResultID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "CHOSEN_LOG_ERROR", "Failed to record chosen result")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Readyz reports ready once at least one snapshot with books is published.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	snap := h.source.Current()
	if len(snap.Books) == 0 {
		h.writeError(w, http.StatusServiceUnavailable, "NOT_READY", "no market snapshot available yet")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.logger.Errorw("API error", "code", code, "message", message, "status", status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := ErrorResponse{
		Code:    code,
		Message: message,
	}
	json.NewEncoder(w).Encode(err)
}
