package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/pkg/formulas"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// Uncorrelated, zero-mean assets with variances in ratio 1:4.
var (
	testTickers = []string{"AAA", "BBB"}
	testReturns = [][]float64{
		{0.01, 0.02},
		{-0.01, 0.02},
		{0.01, -0.02},
		{-0.01, -0.02},
	}
)

type fakeBuilder struct {
	called bool
	since  time.Time
	freq   formulas.Frequency
}

func (f *fakeBuilder) BuildReturnsMatrix(_ context.Context, tickers []string, since time.Time, freq formulas.Frequency) (*optimization.ReturnsMatrix, error) {
	f.called = true
	f.since = since
	f.freq = freq
	return optimization.NewReturnsMatrix(tickers, testReturns)
}

func newTestRouter(t *testing.T, settings optimization.SolverSettings, builder ReturnsBuilder, limiter *rate.Limiter) *chi.Mux {
	t.Helper()
	service := optimization.NewService(optimization.NewOptimizer(settings), optimization.DefaultOptions(), zerolog.Nop())
	handler := NewHandler(service, builder, formulas.Daily, limiter, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", handler.RegisterRoutes)
	return router
}

func postOptimize(t *testing.T, router http.Handler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/optimization/optimize", bytes.NewReader(payload)))
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) OptimizeResponse {
	t.Helper()
	var envelope struct {
		Data     OptimizeResponse       `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Metadata)
	return envelope.Data
}

func weights(resp OptimizeResponse) []float64 {
	out := make([]float64, len(resp.Weights))
	for i, e := range resp.Weights {
		out[i] = e.Weight
	}
	return out
}

func TestHandleOptimize_Strategy(t *testing.T) {
	router := newTestRouter(t, optimization.DefaultSolverSettings(), nil, nil)

	w := postOptimize(t, router, map[string]interface{}{
		"tickers":  testTickers,
		"returns":  testReturns,
		"strategy": "min_volatility",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeResponse(t, w)
	_, err := uuid.Parse(resp.RunID)
	assert.NoError(t, err)
	assert.Equal(t, optimization.StrategyMinVolatility, resp.Strategy)
	assert.Nil(t, resp.Profile)
	assert.Equal(t, formulas.Daily, resp.Frequency)
	assert.Equal(t, "AAA", resp.Weights[0].Ticker)
	assert.InDeltaSlice(t, []float64{0.8, 0.2}, weights(resp), 1e-4)
	assert.InDelta(t, 0.8, resp.WeightMap["AAA"], 1e-4)
	assert.True(t, resp.Converged)
	assert.Equal(t, 4, resp.Periods)
	assert.Equal(t, 0.0, resp.RiskFreeRate)

	require.NotNil(t, resp.Metrics)
	// At the minimum-variance point each contribution share equals its weight.
	assert.InDelta(t, 0.8, resp.Metrics.RiskContributions["AAA"]/resp.Metrics.AnnualizedVolatility, 1e-3)
}

func TestHandleOptimize_Profile(t *testing.T) {
	router := newTestRouter(t, optimization.DefaultSolverSettings(), nil, nil)

	w := postOptimize(t, router, map[string]interface{}{
		"tickers": testTickers,
		"returns": testReturns,
		"profile": "Moderate",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeResponse(t, w)
	assert.Equal(t, optimization.StrategyRiskParity, resp.Strategy)
	require.NotNil(t, resp.Profile)
	assert.Equal(t, "Moderate", resp.Profile.Label.String())
	assert.InDeltaSlice(t, []float64{2.0 / 3, 1.0 / 3}, weights(resp), 1e-4)
}

func TestHandleOptimize_Answers(t *testing.T) {
	router := newTestRouter(t, optimization.DefaultSolverSettings(), nil, nil)

	w := postOptimize(t, router, map[string]interface{}{
		"tickers": testTickers,
		"returns": testReturns,
		"answers": map[string]interface{}{
			"horizon_years":        0,
			"drawdown_comfort_pct": 0,
			"sell_in_crash":        "sell_all",
			"income_stability":     "unstable",
			"experience":           "new",
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Profile)
	assert.Equal(t, "Conservative", resp.Profile.Label.String())
	assert.Equal(t, 0, resp.Profile.Score)
	assert.Equal(t, optimization.StrategyMinVolatility, resp.Strategy)
}

func TestHandleOptimize_FromHistory(t *testing.T) {
	builder := &fakeBuilder{}
	router := newTestRouter(t, optimization.DefaultSolverSettings(), builder, nil)

	w := postOptimize(t, router, map[string]interface{}{
		"tickers":        testTickers,
		"strategy":       "max_sharpe",
		"frequency":      "M",
		"since":          "2020-01-01",
		"risk_free_rate": 0.01,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.True(t, builder.called)
	assert.Equal(t, formulas.Monthly, builder.freq)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), builder.since)

	resp := decodeResponse(t, w)
	assert.Equal(t, optimization.StrategyMaxSharpe, resp.Strategy)
	assert.InDelta(t, 0.01, resp.RiskFreeRate, 1e-12)
	assert.InDelta(t, 1.0, resp.Weights[0].Weight+resp.Weights[1].Weight, 1e-6)
}

func TestHandleOptimize_BadRequests(t *testing.T) {
	router := newTestRouter(t, optimization.DefaultSolverSettings(), nil, nil)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing tickers", map[string]interface{}{"returns": testReturns, "strategy": "min_volatility"}},
		{"bad frequency", map[string]interface{}{"tickers": testTickers, "returns": testReturns, "strategy": "min_volatility", "frequency": "Q"}},
		{"bad since", map[string]interface{}{"tickers": testTickers, "returns": testReturns, "strategy": "min_volatility", "since": "yesterday"}},
		{"no strategy source", map[string]interface{}{"tickers": testTickers, "returns": testReturns}},
		{"unknown strategy", map[string]interface{}{"tickers": testTickers, "returns": testReturns, "strategy": "yolo"}},
		{"unknown profile", map[string]interface{}{"tickers": testTickers, "returns": testReturns, "profile": "Reckless"}},
		{"negative horizon", map[string]interface{}{"tickers": testTickers, "returns": testReturns, "answers": map[string]interface{}{"horizon_years": -1}}},
		{"ragged returns", map[string]interface{}{"tickers": testTickers, "returns": [][]float64{{0.01}}, "strategy": "min_volatility"}},
		{"too few periods", map[string]interface{}{"tickers": testTickers, "returns": [][]float64{{0.01, 0.02}}, "strategy": "min_volatility"}},
		{"no history configured", map[string]interface{}{"tickers": testTickers, "strategy": "min_volatility"}},
		{"not json", "{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postOptimize(t, router, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestHandleOptimize_StrictConvergence(t *testing.T) {
	settings := optimization.DefaultSolverSettings()
	settings.MaxIterations = 1
	settings.IterationsPerAsset = 0
	settings.StrictConvergence = true
	router := newTestRouter(t, settings, nil, nil)

	w := postOptimize(t, router, map[string]interface{}{
		"tickers":  testTickers,
		"returns":  testReturns,
		"strategy": "risk_parity",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleOptimize_RateLimited(t *testing.T) {
	router := newTestRouter(t, optimization.DefaultSolverSettings(), nil, rate.NewLimiter(0, 1))
	body := map[string]interface{}{"tickers": testTickers, "returns": testReturns, "strategy": "min_volatility"}

	assert.Equal(t, http.StatusOK, postOptimize(t, router, body).Code)

	w := postOptimize(t, router, body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestHandleListStrategies(t *testing.T) {
	router := newTestRouter(t, optimization.DefaultSolverSettings(), nil, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/optimization/strategies", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data struct {
			Strategies []struct {
				Strategy string `json:"strategy"`
				Profile  string `json:"profile"`
			} `json:"strategies"`
			RiskFreeRate float64 `json:"risk_free_rate"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Strategies, 3)
	assert.Equal(t, "min_volatility", envelope.Data.Strategies[0].Strategy)
	assert.Equal(t, "Conservative", envelope.Data.Strategies[0].Profile)
	assert.InDelta(t, optimization.DefaultRiskFreeRate, envelope.Data.RiskFreeRate, 1e-12)
}

func TestHandleOptimize_BodyTooLarge(t *testing.T) {
	service := optimization.NewService(optimization.NewOptimizer(optimization.DefaultSolverSettings()), optimization.DefaultOptions(), zerolog.Nop())
	handler := NewHandler(service, nil, formulas.Daily, nil, zerolog.Nop())
	handler.SetMaxBodyBytes(512)

	router := chi.NewRouter()
	router.Route("/api", handler.RegisterRoutes)

	rows := make([][]float64, 200)
	for i := range rows {
		rows[i] = []float64{0.01, -0.02}
	}
	w := postOptimize(t, router, map[string]interface{}{
		"tickers":  testTickers,
		"returns":  rows,
		"strategy": "min_volatility",
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = postOptimize(t, router, map[string]interface{}{
		"tickers":  testTickers,
		"returns":  testReturns,
		"strategy": "min_volatility",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
