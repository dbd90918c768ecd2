// Package handlers provides HTTP handlers for ticker discovery.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/allocator/internal/modules/assets"
	"github.com/rs/zerolog"
)

// Handler handles asset discovery HTTP requests
type Handler struct {
	manager *assets.Manager
	log     zerolog.Logger
}

// NewHandler creates a new assets handler
func NewHandler(manager *assets.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		manager: manager,
		log:     log.With().Str("handler", "assets").Logger(),
	}
}

// HandleDiscover handles GET /api/assets
func (h *Handler) HandleDiscover(w http.ResponseWriter, r *http.Request) {
	categories, err := h.manager.Discover()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to discover assets")
		http.Error(w, "Failed to discover assets", http.StatusInternalServerError)
		return
	}

	total := 0
	for _, tickers := range categories {
		total += len(tickers)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"categories": categories,
			"count":      total,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetCategory handles GET /api/assets/{category}
func (h *Handler) HandleGetCategory(w http.ResponseWriter, r *http.Request, category string) {
	tickers, err := h.manager.LoadTickers(category)
	if errors.Is(err, assets.ErrUnknownCategory) {
		http.Error(w, "Unknown category", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("category", category).Msg("Failed to load tickers")
		http.Error(w, "Failed to load tickers", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"category": category,
			"tickers":  tickers,
			"count":    len(tickers),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
