// Package handlers provides HTTP handlers for portfolio risk metrics.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/pkg/formulas"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ReturnsBuilder loads an aligned returns matrix from stored prices.
type ReturnsBuilder interface {
	BuildReturnsMatrix(ctx context.Context, tickers []string, since time.Time, freq formulas.Frequency) (*optimization.ReturnsMatrix, error)
}

// MetricsRequest is the body of POST /api/risk/metrics.
type MetricsRequest struct {
	Tickers      []string    `json:"tickers" validate:"required,min=1,dive,required"`
	Weights      []float64   `json:"weights" validate:"required,min=1"`
	Returns      [][]float64 `json:"returns,omitempty" validate:"omitempty,min=2"`
	Frequency    string      `json:"frequency,omitempty" validate:"omitempty,oneof=D W M"`
	RiskFreeRate *float64    `json:"risk_free_rate,omitempty" validate:"omitempty,gte=-1,lte=1"`
	Since        string      `json:"since,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// maxBodyBytes caps metrics request bodies, inline returns included.
const maxBodyBytes = 8 << 20

// Handler handles risk metrics HTTP requests
type Handler struct {
	returns      ReturnsBuilder
	defaultFreq  formulas.Frequency
	riskFreeRate float64
	validate     *validator.Validate
	log          zerolog.Logger
}

// NewHandler creates a new risk metrics handler. returns may be nil.
func NewHandler(
	returns ReturnsBuilder,
	defaultFreq formulas.Frequency,
	riskFreeRate float64,
	log zerolog.Logger,
) *Handler {
	if defaultFreq == "" {
		defaultFreq = formulas.Daily
	}
	return &Handler{
		returns:      returns,
		defaultFreq:  defaultFreq,
		riskFreeRate: riskFreeRate,
		validate:     validator.New(),
		log:          log.With().Str("handler", "risk").Logger(),
	}
}

// HandlePortfolioMetrics handles POST /api/risk/metrics
func (h *Handler) HandlePortfolioMetrics(w http.ResponseWriter, r *http.Request) {
	var req MetricsRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	freq := h.defaultFreq
	if req.Frequency != "" {
		freq = formulas.Frequency(req.Frequency)
	}
	riskFreeRate := h.riskFreeRate
	if req.RiskFreeRate != nil {
		riskFreeRate = *req.RiskFreeRate
	}

	returns, err := h.loadReturns(r.Context(), req, freq)
	if err != nil {
		h.writeError(w, "Failed to load returns", err)
		return
	}

	metrics, err := optimization.Analyze(returns, req.Weights, freq, riskFreeRate)
	if err != nil {
		h.writeError(w, "Failed to compute metrics", err)
		return
	}

	periods, _ := returns.Dims()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"tickers":   returns.Tickers,
			"frequency": freq,
			"periods":   periods,
			"metrics":   metrics,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) loadReturns(ctx context.Context, req MetricsRequest, freq formulas.Frequency) (*optimization.ReturnsMatrix, error) {
	if len(req.Returns) > 0 {
		return optimization.NewReturnsMatrix(req.Tickers, req.Returns)
	}
	if h.returns == nil {
		return nil, fmt.Errorf("%w: inline returns are required", optimization.ErrInsufficientData)
	}

	var since time.Time
	if req.Since != "" {
		since, _ = time.Parse("2006-01-02", req.Since)
	}
	returns, err := h.returns.BuildReturnsMatrix(ctx, req.Tickers, since, freq)
	if err != nil {
		return nil, err
	}
	// Tickers without history are dropped by the builder; weights would no longer line up.
	if len(returns.Tickers) != len(req.Tickers) {
		return nil, fmt.Errorf("%w: history found for %d of %d tickers", optimization.ErrDimensionMismatch, len(returns.Tickers), len(req.Tickers))
	}
	return returns, nil
}

func (h *Handler) writeError(w http.ResponseWriter, msg string, err error) {
	if optimization.IsInputError(err) {
		http.Error(w, fmt.Sprintf("%s: %v", msg, err), http.StatusBadRequest)
		return
	}
	h.log.Error().Err(err).Msg(msg)
	http.Error(w, msg, http.StatusInternalServerError)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
