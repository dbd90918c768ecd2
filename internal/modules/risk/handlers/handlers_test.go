package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/pkg/formulas"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testReturns = [][]float64{
	{0.01, 0.02},
	{-0.01, 0.02},
	{0.01, -0.02},
	{-0.01, -0.02},
}

// partialBuilder only has history for AAA.
type partialBuilder struct{}

func (partialBuilder) BuildReturnsMatrix(_ context.Context, _ []string, _ time.Time, _ formulas.Frequency) (*optimization.ReturnsMatrix, error) {
	return optimization.NewReturnsMatrix([]string{"AAA"}, [][]float64{{0.01}, {-0.01}, {0.02}})
}

func newRouter(builder ReturnsBuilder) *chi.Mux {
	router := chi.NewRouter()
	router.Route("/api", NewHandler(builder, formulas.Daily, 0.04, zerolog.Nop()).RegisterRoutes)
	return router
}

func post(t *testing.T, router http.Handler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/risk/metrics", bytes.NewReader(payload)))
	return w
}

func TestHandlePortfolioMetrics(t *testing.T) {
	w := post(t, newRouter(nil), map[string]interface{}{
		"tickers":        []string{"AAA", "BBB"},
		"weights":        []float64{0.5, 0.5},
		"returns":        testReturns,
		"risk_free_rate": 0.0,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		Data struct {
			Periods int                           `json:"periods"`
			Metrics optimization.PortfolioMetrics `json:"metrics"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	m := response.Data.Metrics

	// Portfolio series: 0.015, 0.005, -0.005, -0.015.
	assert.Equal(t, 4, response.Data.Periods)
	assert.InDelta(t, math.Sqrt(0.0005/3)*math.Sqrt(252), m.AnnualizedVolatility, 1e-9)
	assert.InDelta(t, -0.005+(-0.015)*(1-0.005), m.MaxDrawdown, 1e-12)
	assert.InDelta(t, 0.0, m.RiskFreeRate, 1e-12)
	assert.InDelta(t, m.AnnualizedVolatility, m.RiskContributions["AAA"]+m.RiskContributions["BBB"], 1e-9)
}

func TestHandlePortfolioMetrics_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		builder ReturnsBuilder
		body    interface{}
	}{
		{"missing weights", nil, map[string]interface{}{"tickers": []string{"AAA", "BBB"}, "returns": testReturns}},
		{"weights mismatch", nil, map[string]interface{}{"tickers": []string{"AAA", "BBB"}, "weights": []float64{0.2, 0.3, 0.5}, "returns": testReturns}},
		{"bad frequency", nil, map[string]interface{}{"tickers": []string{"AAA", "BBB"}, "weights": []float64{0.5, 0.5}, "returns": testReturns, "frequency": "Y"}},
		{"no history", nil, map[string]interface{}{"tickers": []string{"AAA", "BBB"}, "weights": []float64{0.5, 0.5}}},
		{"partial history", partialBuilder{}, map[string]interface{}{"tickers": []string{"AAA", "BBB"}, "weights": []float64{0.5, 0.5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, newRouter(tt.builder), tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestHandlePortfolioMetrics_FromHistory(t *testing.T) {
	w := post(t, newRouter(partialBuilder{}), map[string]interface{}{
		"tickers": []string{"AAA"},
		"weights": []float64{1},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	metrics := response["data"].(map[string]interface{})["metrics"].(map[string]interface{})
	assert.InDelta(t, 0.04, metrics["risk_free_rate"].(float64), 1e-12)
}

func TestHandlePortfolioMetrics_BodyTooLarge(t *testing.T) {
	body := append([]byte(`{"weights":`), bytes.Repeat([]byte(" "), maxBodyBytes)...)

	w := httptest.NewRecorder()
	newRouter(nil).ServeHTTP(w, httptest.NewRequest("POST", "/api/risk/metrics", bytes.NewReader(body)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
