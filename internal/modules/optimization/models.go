package optimization

import (
	"github.com/aristath/allocator/pkg/formulas"
)

// Result is the outcome of an optimization call. Weights follow the column
// order of the input returns matrix.
type Result struct {
	Strategy        Strategy           `json:"strategy" msgpack:"strategy"`
	Frequency       formulas.Frequency `json:"frequency" msgpack:"frequency"`
	RiskFreeRate    float64            `json:"risk_free_rate" msgpack:"risk_free_rate"`
	Tickers         []string           `json:"tickers" msgpack:"tickers"`
	Weights         []float64          `json:"weights" msgpack:"weights"`
	Converged       bool               `json:"converged" msgpack:"converged"`
	Status          string             `json:"status" msgpack:"status"`
	Method          string             `json:"method" msgpack:"method"`
	Iterations      int                `json:"iterations" msgpack:"iterations"`
	FuncEvaluations int                `json:"func_evaluations" msgpack:"func_evaluations"`
	Objective       float64            `json:"objective" msgpack:"objective"`
}

// WeightMap returns weights keyed by ticker.
func (r *Result) WeightMap() map[string]float64 {
	m := make(map[string]float64, len(r.Tickers))
	for i, t := range r.Tickers {
		m[t] = r.Weights[i]
	}
	return m
}

// clone returns a deep copy so cached results are never shared.
func (r *Result) clone() *Result {
	c := *r
	c.Tickers = copyStrings(r.Tickers)
	c.Weights = make([]float64, len(r.Weights))
	copy(c.Weights, r.Weights)
	return &c
}

// PortfolioMetrics summarizes the risk and return of a weighted portfolio.
type PortfolioMetrics struct {
	AnnualizedVolatility float64        `json:"annualized_volatility"`
	AnnualizedReturn     float64        `json:"annualized_return"`
	SharpeRatio          formulas.Ratio `json:"sharpe_ratio"`
	RiskFreeRate         float64        `json:"risk_free_rate"`
	MaxDrawdown          float64        `json:"max_drawdown"`
	CVaRAlpha            float64        `json:"cvar_alpha"`
	CVaR                 float64        `json:"cvar"`
	ExpectedShortfall    float64        `json:"expected_shortfall"`
	// RiskContributions are per-ticker contributions to annualized volatility.
	RiskContributions map[string]float64 `json:"risk_contributions"`
}
