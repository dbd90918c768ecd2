package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all asset routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/assets", func(r chi.Router) {
		r.Get("/", h.HandleDiscover)
		r.Get("/{category}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetCategory(w, r, chi.URLParam(r, "category"))
		})
	})
}
