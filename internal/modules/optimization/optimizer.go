package optimization

import (
	"fmt"

	"github.com/aristath/allocator/pkg/formulas"
	"gonum.org/v1/gonum/optimize"
)

// Optimizer turns a returns matrix into long-only, fully invested weights.
// It holds no mutable state and is safe for concurrent use.
type Optimizer struct {
	solver *Solver
}

// NewOptimizer creates an optimizer backed by a solver with the given settings.
func NewOptimizer(settings SolverSettings) *Optimizer {
	return &Optimizer{solver: NewSolver(settings)}
}

// MinVolatility minimizes annualized portfolio volatility.
func (o *Optimizer) MinVolatility(returns *ReturnsMatrix, freq formulas.Frequency) (*Result, error) {
	return o.Optimize(returns, StrategyMinVolatility, freq, 0)
}

// MaxSharpe maximizes (w·μ − rf) / σ_p with annualized μ and σ.
func (o *Optimizer) MaxSharpe(returns *ReturnsMatrix, freq formulas.Frequency, riskFreeRate float64) (*Result, error) {
	return o.Optimize(returns, StrategyMaxSharpe, freq, riskFreeRate)
}

// RiskParity equalizes each asset's contribution to portfolio volatility.
func (o *Optimizer) RiskParity(returns *ReturnsMatrix, freq formulas.Frequency) (*Result, error) {
	return o.Optimize(returns, StrategyRiskParity, freq, 0)
}

// Optimize runs one strategy. riskFreeRate is only read by max Sharpe.
//
// A single asset short-circuits to [1.0] without calling the solver.
// Non-convergence is reported through Result.Converged unless the solver
// runs with StrictConvergence, in which case ErrNotConverged is returned.
func (o *Optimizer) Optimize(returns *ReturnsMatrix, strategy Strategy, freq formulas.Frequency, riskFreeRate float64) (*Result, error) {
	objective, err := strategy.Objective()
	if err != nil {
		return nil, err
	}
	if _, err := formulas.AnnualizationFactor(freq); err != nil {
		return nil, err
	}
	if returns == nil {
		return nil, fmt.Errorf("%w: no returns", ErrInsufficientData)
	}

	periods, assets := returns.Dims()
	if assets == 0 || periods == 0 {
		return nil, fmt.Errorf("%w: returns matrix is %dx%d", ErrInsufficientData, periods, assets)
	}

	result := &Result{
		Strategy:     strategy,
		Frequency:    freq,
		RiskFreeRate: riskFreeRate,
		Tickers:      copyStrings(returns.Tickers),
	}
	if strategy != StrategyMaxSharpe {
		result.RiskFreeRate = 0
	}

	if assets == 1 {
		result.Weights = []float64{1.0}
		result.Converged = true
		result.Status = optimize.Success.String()
		result.Method = "single_asset"
		return result, nil
	}
	if periods < 2 {
		return nil, fmt.Errorf("%w: %d assets need at least 2 periods, got %d", ErrInsufficientData, assets, periods)
	}

	cov, err := formulas.AnnualizedCovariance(returns.Matrix(), freq)
	if err != nil {
		return nil, err
	}
	params := ObjectiveParams{Cov: cov, RiskFreeRate: riskFreeRate}
	if strategy == StrategyMaxSharpe {
		if params.Mu, err = formulas.AnnualizedMeans(returns.Matrix(), freq); err != nil {
			return nil, err
		}
	}

	solution, err := o.solver.Solve(objective, params)
	if err != nil {
		return nil, err
	}
	if !solution.Converged && o.solver.settings.StrictConvergence {
		return nil, fmt.Errorf("%w: %s after %d iterations (status=%v)",
			ErrNotConverged, strategy, solution.Iterations, solution.Status)
	}

	result.Weights = solution.Weights
	result.Converged = solution.Converged
	result.Status = solution.Status.String()
	result.Method = solution.Method
	result.Iterations = solution.Iterations
	result.FuncEvaluations = solution.FuncEvaluations
	result.Objective = solution.Objective
	return result, nil
}
