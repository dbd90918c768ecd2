// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/riskprofile"
	"github.com/aristath/allocator/pkg/formulas"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ReturnsBuilder loads an aligned returns matrix from stored prices.
// historical.Service implements it.
type ReturnsBuilder interface {
	BuildReturnsMatrix(ctx context.Context, tickers []string, since time.Time, freq formulas.Frequency) (*optimization.ReturnsMatrix, error)
}

// OptimizeRequest is the body of POST /api/optimization/optimize.
// Strategy wins over Profile, which wins over Answers.
type OptimizeRequest struct {
	Tickers      []string       `json:"tickers" validate:"required,min=1,dive,required"`
	Returns      [][]float64    `json:"returns,omitempty" validate:"omitempty,min=1"`
	Frequency    string         `json:"frequency,omitempty" validate:"omitempty,oneof=D W M"`
	Strategy     string         `json:"strategy,omitempty"`
	Profile      string         `json:"profile,omitempty"`
	Answers      map[string]any `json:"answers,omitempty"`
	RiskFreeRate *float64       `json:"risk_free_rate,omitempty" validate:"omitempty,gte=-1,lte=1"`
	Since        string         `json:"since,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// WeightEntry is one ticker's weight in request order.
type WeightEntry struct {
	Ticker string  `json:"ticker"`
	Weight float64 `json:"weight"`
}

// OptimizeResponse is the data payload of a successful optimization.
type OptimizeResponse struct {
	RunID           string                         `json:"run_id"`
	Strategy        optimization.Strategy          `json:"strategy"`
	Profile         *riskprofile.Profile           `json:"profile,omitempty"`
	Frequency       formulas.Frequency             `json:"frequency"`
	RiskFreeRate    float64                        `json:"risk_free_rate"`
	Weights         []WeightEntry                  `json:"weights"`
	WeightMap       map[string]float64             `json:"weight_map"`
	Converged       bool                           `json:"converged"`
	Status          string                         `json:"status"`
	Method          string                         `json:"method"`
	Iterations      int                            `json:"iterations"`
	FuncEvaluations int                            `json:"func_evaluations"`
	Periods         int                            `json:"periods"`
	Metrics         *optimization.PortfolioMetrics `json:"metrics,omitempty"`
}

// DefaultMaxBodyBytes caps optimize request bodies, inline returns included.
const DefaultMaxBodyBytes = 8 << 20

// Handler handles optimization HTTP requests
type Handler struct {
	service      *optimization.Service
	returns      ReturnsBuilder
	defaultFreq  formulas.Frequency
	limiter      *rate.Limiter
	maxBodyBytes int64
	validate     *validator.Validate
	log          zerolog.Logger
}

// NewHandler creates a new optimization handler. returns may be nil, in
// which case requests must carry inline returns. limiter may be nil.
func NewHandler(
	service *optimization.Service,
	returns ReturnsBuilder,
	defaultFreq formulas.Frequency,
	limiter *rate.Limiter,
	log zerolog.Logger,
) *Handler {
	if defaultFreq == "" {
		defaultFreq = formulas.Daily
	}
	return &Handler{
		service:      service,
		returns:      returns,
		defaultFreq:  defaultFreq,
		limiter:      limiter,
		maxBodyBytes: DefaultMaxBodyBytes,
		validate:     validator.New(),
		log:          log.With().Str("handler", "optimization").Logger(),
	}
}

// SetMaxBodyBytes overrides the request body cap
func (h *Handler) SetMaxBodyBytes(n int64) {
	h.maxBodyBytes = n
}

// HandleListStrategies handles GET /api/optimization/strategies
func (h *Handler) HandleListStrategies(w http.ResponseWriter, r *http.Request) {
	type strategyInfo struct {
		Strategy optimization.Strategy `json:"strategy"`
		Profile  riskprofile.Label     `json:"profile"`
	}

	out := make([]strategyInfo, 0, len(riskprofile.Labels))
	for _, label := range riskprofile.Labels {
		strategy, err := optimization.StrategyFor(label)
		if err != nil {
			continue
		}
		out = append(out, strategyInfo{Strategy: strategy, Profile: label})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"strategies":     out,
			"risk_free_rate": h.service.RiskFreeRate(),
		},
		"metadata": metadata(),
	})
}

// HandleOptimize handles POST /api/optimization/optimize
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		http.Error(w, "Too many optimization requests", http.StatusTooManyRequests)
		return
	}

	var req OptimizeRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
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
		http.Error(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	freq := h.defaultFreq
	if req.Frequency != "" {
		freq = formulas.Frequency(req.Frequency)
	}

	strategy, profile, err := h.resolveStrategy(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	returns, err := h.loadReturns(r.Context(), req, freq)
	if err != nil {
		h.writeError(w, "Failed to load returns", err)
		return
	}

	riskFreeRate := h.service.RiskFreeRate()
	if req.RiskFreeRate != nil {
		riskFreeRate = *req.RiskFreeRate
	}

	runID := uuid.New().String()
	log := h.log.With().Str("run_id", runID).Logger()

	result, err := h.service.OptimizeStrategy(returns, strategy, freq, riskFreeRate)
	if err != nil {
		log.Warn().Err(err).Str("strategy", string(strategy)).Msg("Optimization request failed")
		h.writeError(w, "Optimization failed", err)
		return
	}

	periods, _ := returns.Dims()
	response := OptimizeResponse{
		RunID:           runID,
		Strategy:        result.Strategy,
		Profile:         profile,
		Frequency:       result.Frequency,
		RiskFreeRate:    result.RiskFreeRate,
		Weights:         make([]WeightEntry, len(result.Tickers)),
		WeightMap:       result.WeightMap(),
		Converged:       result.Converged,
		Status:          result.Status,
		Method:          result.Method,
		Iterations:      result.Iterations,
		FuncEvaluations: result.FuncEvaluations,
		Periods:         periods,
	}
	for i, t := range result.Tickers {
		response.Weights[i] = WeightEntry{Ticker: t, Weight: result.Weights[i]}
	}

	metrics, err := optimization.Analyze(returns, result.Weights, freq, riskFreeRate)
	if err != nil {
		log.Debug().Err(err).Msg("Metrics unavailable for optimization result")
	} else {
		response.Metrics = metrics
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     response,
		"metadata": metadata(),
	})
}

func (h *Handler) resolveStrategy(req OptimizeRequest) (optimization.Strategy, *riskprofile.Profile, error) {
	if req.Strategy != "" {
		strategy, err := optimization.ParseStrategy(req.Strategy)
		return strategy, nil, err
	}

	var profile riskprofile.Profile
	switch {
	case req.Profile != "":
		label, err := riskprofile.ParseLabel(req.Profile)
		if err != nil {
			return "", nil, err
		}
		if profile, err = riskprofile.ProfileFor(label); err != nil {
			return "", nil, err
		}
	case req.Answers != nil:
		answers, err := riskprofile.AnswersFromMap(req.Answers)
		if err != nil {
			return "", nil, fmt.Errorf("invalid answers: %w", err)
		}
		if err := h.validate.Struct(answers); err != nil {
			return "", nil, errors.New(validationMessage(err))
		}
		profile = riskprofile.Classify(answers)
	default:
		return "", nil, errors.New("one of strategy, profile or answers is required")
	}

	strategy, err := optimization.StrategyFor(profile.Label)
	if err != nil {
		return "", nil, err
	}
	return strategy, &profile, nil
}

func (h *Handler) loadReturns(ctx context.Context, req OptimizeRequest, freq formulas.Frequency) (*optimization.ReturnsMatrix, error) {
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
	return h.returns.BuildReturnsMatrix(ctx, req.Tickers, since, freq)
}

// writeError maps domain errors onto status codes
func (h *Handler) writeError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, optimization.ErrNotConverged):
		http.Error(w, fmt.Sprintf("%s: %v", msg, err), http.StatusUnprocessableEntity)
	case optimization.IsInputError(err):
		http.Error(w, fmt.Sprintf("%s: %v", msg, err), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return "validation failed: " + strings.Join(parts, "; ")
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
