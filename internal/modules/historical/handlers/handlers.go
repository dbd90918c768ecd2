// Package handlers provides HTTP handlers for historical data operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/allocator/internal/modules/historical"
	"github.com/aristath/allocator/pkg/formulas"
	"github.com/rs/zerolog"
)

// Handler handles historical data HTTP requests
type Handler struct {
	historyDB *historical.HistoryDB
	importer  *historical.Importer
	log       zerolog.Logger
}

// NewHandler creates a new historical data handler. importer may be nil, in
// which case the import endpoint reports 503.
func NewHandler(
	historyDB *historical.HistoryDB,
	importer *historical.Importer,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		historyDB: historyDB,
		importer:  importer,
		log:       log.With().Str("handler", "historical").Logger(),
	}
}

// HandleListTickers handles GET /api/historical
func (h *Handler) HandleListTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.historyDB.ListTickers(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list tickers")
		http.Error(w, "Failed to list tickers", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"tickers": tickers,
			"count":   len(tickers),
		},
		"metadata": metadata(),
	})
}

// HandleGetDailyPrices handles GET /api/historical/{ticker}
func (h *Handler) HandleGetDailyPrices(w http.ResponseWriter, r *http.Request, ticker string) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	since, ok := h.parseSince(w, r)
	if !ok {
		return
	}

	prices, err := h.historyDB.GetDailyPrices(r.Context(), ticker, since)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get daily prices")
		http.Error(w, "Failed to get daily prices", http.StatusInternalServerError)
		return
	}
	if len(prices) == 0 {
		http.Error(w, "No prices for ticker", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker": ticker,
			"prices": prices,
			"count":  len(prices),
		},
		"metadata": metadata(),
	})
}

// HandleGetReturns handles GET /api/historical/{ticker}/returns?frequency=M
func (h *Handler) HandleGetReturns(w http.ResponseWriter, r *http.Request, ticker string) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	freq := formulas.Daily
	if raw := r.URL.Query().Get("frequency"); raw != "" {
		parsed, err := formulas.ParseFrequency(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		freq = parsed
	}
	since, ok := h.parseSince(w, r)
	if !ok {
		return
	}

	prices, err := h.historyDB.GetDailyPrices(r.Context(), ticker, since)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get daily prices")
		http.Error(w, "Failed to get returns", http.StatusInternalServerError)
		return
	}
	if len(prices) == 0 {
		http.Error(w, "No prices for ticker", http.StatusNotFound)
		return
	}

	returns, err := historical.ToReturns(prices, freq)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to compute returns")
		http.Error(w, "Failed to compute returns", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":    ticker,
			"frequency": freq,
			"returns":   returns,
			"count":     len(returns),
		},
		"metadata": metadata(),
	})
}

// HandleImport handles POST /api/historical/import
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil || h.importer.Dir() == "" {
		http.Error(w, "Price import is not configured", http.StatusServiceUnavailable)
		return
	}

	summary, err := h.importer.ImportAll(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Price import failed")
		http.Error(w, "Price import failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     summary,
		"metadata": metadata(),
	})
}

func (h *Handler) parseSince(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, true
	}
	since, err := time.Parse(historical.DateLayout, raw)
	if err != nil {
		http.Error(w, "since must be YYYY-MM-DD", http.StatusBadRequest)
		return time.Time{}, false
	}
	return since, true
}

func metadata() map[string]interface{} {
	return map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
