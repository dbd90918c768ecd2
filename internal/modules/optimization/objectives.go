package optimization

import (
	"fmt"
	"math"
	"strings"

	"github.com/aristath/allocator/pkg/formulas"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ZeroVolatilityPenalty is returned by the max Sharpe objective for a
// zero-variance portfolio so the solver moves away from it.
const ZeroVolatilityPenalty = 1e9

// ObjectiveParams carries everything an objective reads besides the weights.
type ObjectiveParams struct {
	Cov          *mat.SymDense // annualized covariance, N×N
	Mu           []float64     // annualized mean returns, required by max Sharpe
	RiskFreeRate float64
}

// Objective is a pure function minimized over the feasible region.
type Objective func(w []float64, p ObjectiveParams) float64

// Strategy names an optimization objective.
type Strategy string

const (
	StrategyMinVolatility Strategy = "min_volatility"
	StrategyMaxSharpe     Strategy = "max_sharpe"
	StrategyRiskParity    Strategy = "risk_parity"
)

// Strategies lists the supported strategies.
var Strategies = []Strategy{StrategyMinVolatility, StrategyMaxSharpe, StrategyRiskParity}

// ParseStrategy accepts the canonical names case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyMinVolatility:
		return StrategyMinVolatility, nil
	case StrategyMaxSharpe:
		return StrategyMaxSharpe, nil
	case StrategyRiskParity:
		return StrategyRiskParity, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Objective returns the function minimized by the strategy.
func (s Strategy) Objective() (Objective, error) {
	switch s {
	case StrategyMinVolatility:
		return MinVolatilityObjective, nil
	case StrategyMaxSharpe:
		return NegativeSharpeObjective, nil
	case StrategyRiskParity:
		return RiskParityObjective, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, string(s))
}

func portfolioVolatility(w []float64, cov *mat.SymDense) float64 {
	variance, err := formulas.PortfolioVariance(w, cov)
	if err != nil {
		// Dimensions are validated before the solver starts.
		return math.Inf(1)
	}
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// MinVolatilityObjective returns sqrt(w'Σw).
func MinVolatilityObjective(w []float64, p ObjectiveParams) float64 {
	return portfolioVolatility(w, p.Cov)
}

// NegativeSharpeObjective returns -(w·μ - rf) / sqrt(w'Σw), or ZeroVolatilityPenalty
// when the portfolio has no variance.
func NegativeSharpeObjective(w []float64, p ObjectiveParams) float64 {
	vol := portfolioVolatility(w, p.Cov)
	if vol == 0 {
		return ZeroVolatilityPenalty
	}
	return -(floats.Dot(w, p.Mu) - p.RiskFreeRate) / vol
}

// RiskParityObjective returns Σ(rc_i − mean(rc))² with rc from formulas.RiskContributions.
func RiskParityObjective(w []float64, p ObjectiveParams) float64 {
	rc, err := formulas.RiskContributions(w, p.Cov)
	if err != nil {
		return math.Inf(1)
	}
	return sumSquaredDeviations(rc)
}

func sumSquaredDeviations(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	mean := floats.Sum(x) / float64(len(x))
	var ss float64
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	return ss
}
