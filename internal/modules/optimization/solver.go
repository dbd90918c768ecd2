package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Solver defaults.
const (
	DefaultMaxIterations      = 2000
	DefaultMaxFuncEvaluations = 50000
	DefaultIterationsPerAsset = 200
	DefaultFunctionTolerance  = 1e-12
	DefaultGradientTolerance  = 1e-7
	DefaultStallIterations    = 200
	DefaultPenaltyWeight      = 10.0
)

// SolverSettings bounds and tunes a solve.
type SolverSettings struct {
	MaxIterations      int
	MaxFuncEvaluations int
	// IterationsPerAsset raises the iteration cap to IterationsPerAsset·N for
	// large universes. Zero keeps MaxIterations fixed.
	IterationsPerAsset int
	// FunctionTolerance is the smallest improvement of the (scaled) objective
	// that resets the stall counter.
	FunctionTolerance float64
	// GradientTolerance bounds ‖P(w − ∇f(w)) − w‖∞ at a converged
	// projected-gradient point.
	GradientTolerance float64
	// StallIterations is the number of iterations without improvement after
	// which the solve is considered converged.
	StallIterations int
	// PenaltyWeight scales ‖x − P(x)‖² in the unconstrained surrogate.
	PenaltyWeight float64
	// StrictConvergence makes non-convergence an error instead of returning
	// the last iterate.
	StrictConvergence bool
}

// DefaultSolverSettings returns the permissive defaults.
func DefaultSolverSettings() SolverSettings {
	return SolverSettings{
		MaxIterations:      DefaultMaxIterations,
		MaxFuncEvaluations: DefaultMaxFuncEvaluations,
		IterationsPerAsset: DefaultIterationsPerAsset,
		FunctionTolerance:  DefaultFunctionTolerance,
		GradientTolerance:  DefaultGradientTolerance,
		StallIterations:    DefaultStallIterations,
		PenaltyWeight:      DefaultPenaltyWeight,
	}
}

func (s SolverSettings) withDefaults() SolverSettings {
	d := DefaultSolverSettings()
	if s.MaxIterations <= 0 {
		s.MaxIterations = d.MaxIterations
	}
	if s.MaxFuncEvaluations <= 0 {
		s.MaxFuncEvaluations = d.MaxFuncEvaluations
	}
	if s.FunctionTolerance <= 0 {
		s.FunctionTolerance = d.FunctionTolerance
	}
	if s.GradientTolerance <= 0 {
		s.GradientTolerance = d.GradientTolerance
	}
	if s.IterationsPerAsset < 0 {
		s.IterationsPerAsset = 0
	}
	if s.StallIterations <= 0 {
		s.StallIterations = d.StallIterations
	}
	if s.PenaltyWeight <= 0 {
		s.PenaltyWeight = d.PenaltyWeight
	}
	return s
}

// Solution is the outcome of one constrained minimization.
type Solution struct {
	Weights         []float64
	Objective       float64
	Converged       bool
	Status          optimize.Status
	Method          string
	Iterations      int
	FuncEvaluations int
}

// Solver minimizes an Objective over the feasible region.
//
// gonum's optimizers are unconstrained, so the solver minimizes the surrogate
//
//	S(x) = f(P(x)) + ρ‖x − P(x)‖²
//
// where P is the projection onto the feasible region. S ≥ f(P(x)) ≥ f* with
// equality at the constrained minimizer, so both problems share their optimum,
// and P(x*) is exactly feasible. A spectral projected gradient run then
// polishes P(x*) directly over the region.
type Solver struct {
	settings SolverSettings
}

// NewSolver creates a solver. Zero fields in settings take their defaults.
func NewSolver(settings SolverSettings) *Solver {
	return &Solver{settings: settings.withDefaults()}
}

// Settings returns the effective settings.
func (s *Solver) Settings() SolverSettings {
	return s.settings
}

// limits returns the iteration and evaluation caps for n assets.
func (s *Solver) limits(n int) (iterations, evaluations int) {
	iterations = s.settings.MaxIterations
	evaluations = s.settings.MaxFuncEvaluations
	if scaled := s.settings.IterationsPerAsset * n; scaled > iterations {
		iterations = scaled
		// A projected-gradient iteration costs 2N evaluations for the
		// gradient plus a short line search.
		if e := scaled * (2*n + 8); e > evaluations {
			evaluations = e
		}
	}
	return iterations, evaluations
}

func isConverged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.FunctionConvergence, optimize.GradientThreshold, optimize.MethodConverge:
		return true
	}
	return false
}

// Solve minimizes objective starting from the uniform portfolio.
func (s *Solver) Solve(objective Objective, params ObjectiveParams) (*Solution, error) {
	if params.Cov == nil {
		return nil, fmt.Errorf("%w: no covariance matrix", ErrInsufficientData)
	}
	n := params.Cov.SymmetricDim()
	if n == 0 {
		return nil, fmt.Errorf("%w: no assets", ErrInsufficientData)
	}
	if params.Mu != nil && len(params.Mu) != n {
		return nil, fmt.Errorf("%w: %d expected returns for %d assets", ErrDimensionMismatch, len(params.Mu), n)
	}

	region := FeasibleRegion{N: n}
	initial := region.InitialWeights()

	// Normalize the objective so convergence tolerances do not depend on the
	// scale of the returns.
	scale := 1.0
	if f0 := math.Abs(objective(initial, params)); f0 > 0 && !math.IsInf(f0, 0) {
		scale = 1 / f0
	}
	rho := s.settings.PenaltyWeight

	surrogate := func(x []float64) float64 {
		w := region.Project(x)
		return scale*objective(w, params) + rho*distanceSquared(x, w)
	}

	problem := optimize.Problem{Func: surrogate}
	maxIterations, maxEvaluations := s.limits(n)

	// Nelder-Mead first: the surrogate has kinks wherever a weight hits zero.
	method := "NelderMead"
	result, err := optimize.Minimize(problem, initial, s.minimizeSettings(maxIterations, maxEvaluations), &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("optimization failed: %w", err)
	}
	iterations := result.MajorIterations
	evaluations := result.FuncEvaluations
	best := region.Project(result.X)
	status := result.Status

	// Polish from the simplex's best vertex. Nelder-Mead slows down and can
	// stall early as N grows; the polish never leaves the region and never
	// ends above its starting value.
	pg := projectedGradient{
		region:         region,
		maxIterations:  maxIterations,
		maxEvaluations: maxEvaluations,
		tol:            s.settings.GradientTolerance,
	}
	scaled := func(w []float64) float64 { return scale * objective(w, params) }
	polished := pg.minimize(scaled, best)
	iterations += polished.Iterations
	evaluations += polished.FuncEvaluations
	best = polished.X
	if isConverged(polished.Status) || !isConverged(status) {
		status = polished.Status
		method = "ProjectedGradient"
	}

	weights := best
	return &Solution{
		Weights:         weights,
		Objective:       objective(weights, params),
		Converged:       isConverged(status),
		Status:          status,
		Method:          method,
		Iterations:      iterations,
		FuncEvaluations: evaluations,
	}, nil
}

func (s *Solver) minimizeSettings(iterations, evaluations int) *optimize.Settings {
	return &optimize.Settings{
		MajorIterations: iterations,
		FuncEvaluations: evaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   s.settings.FunctionTolerance,
			Iterations: s.settings.StallIterations,
		},
	}
}
