package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all historical data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/historical", func(r chi.Router) {
		r.Get("/", h.HandleListTickers)
		r.Post("/import", h.HandleImport)
		r.Get("/{ticker}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetDailyPrices(w, r, chi.URLParam(r, "ticker"))
		})
		r.Get("/{ticker}/returns", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetReturns(w, r, chi.URLParam(r, "ticker"))
		})
	})
}
