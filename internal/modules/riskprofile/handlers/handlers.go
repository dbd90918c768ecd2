// Package handlers provides HTTP handlers for risk profiling.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/riskprofile"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps questionnaire bodies
const maxBodyBytes = 64 << 10

// Handler handles risk profile HTTP requests
type Handler struct {
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a new risk profile handler
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		validate: validator.New(),
		log:      log.With().Str("handler", "risk_profile").Logger(),
	}
}

// HandleClassify handles POST /api/risk-profile
//
// The body is the loose questionnaire mapping; missing answers take neutral
// defaults.
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	answers, err := riskprofile.AnswersFromMap(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(answers); err != nil {
		http.Error(w, "Invalid answers: "+err.Error(), http.StatusBadRequest)
		return
	}

	profile := riskprofile.Classify(answers)
	strategy, err := optimization.StrategyFor(profile.Label)
	if err != nil {
		h.log.Error().Err(err).Int("score", profile.Score).Msg("Classified profile has no strategy")
		http.Error(w, "Failed to classify answers", http.StatusInternalServerError)
		return
	}

	h.log.Debug().
		Int("score", profile.Score).
		Str("label", profile.Label.String()).
		Msg("Classified risk profile")

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"profile":  profile,
			"strategy": strategy,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleListProfiles handles GET /api/risk-profile
func (h *Handler) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := make([]riskprofile.Profile, 0, len(riskprofile.Labels))
	for _, label := range riskprofile.Labels {
		p, err := riskprofile.ProfileFor(label)
		if err != nil {
			continue
		}
		profiles = append(profiles, p)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"profiles": profiles,
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
