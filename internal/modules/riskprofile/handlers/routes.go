package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk profile routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/risk-profile", h.HandleListProfiles)
	r.Post("/risk-profile", h.HandleClassify)
}
