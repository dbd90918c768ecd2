package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

func TestSolver_MinVolatilityClosedForm(t *testing.T) {
	solver := NewSolver(DefaultSolverSettings())
	params := ObjectiveParams{Cov: mat.NewSymDense(2, []float64{0.01, 0, 0, 0.04})}

	sol, err := solver.Solve(MinVolatilityObjective, params)
	require.NoError(t, err)
	assert.True(t, sol.Converged, "status=%v", sol.Status)
	assert.InDeltaSlice(t, []float64{0.8, 0.2}, sol.Weights, 0.02)
	assert.True(t, FeasibleRegion{N: 2}.Contains(sol.Weights, WeightSumTolerance))
	assert.InDelta(t, MinVolatilityObjective(sol.Weights, params), sol.Objective, 1e-15)
}

func TestSolver_CornerSolution(t *testing.T) {
	solver := NewSolver(DefaultSolverSettings())
	// Asset B is strictly dominated: perfectly correlated with A and riskier.
	params := ObjectiveParams{Cov: mat.NewSymDense(2, []float64{0.01, 0.02, 0.02, 0.04})}

	sol, err := solver.Solve(MinVolatilityObjective, params)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sol.Weights[0], 0.02)
	assert.GreaterOrEqual(t, sol.Weights[1], 0.0)
	assert.True(t, FeasibleRegion{N: 2}.Contains(sol.Weights, WeightSumTolerance))
}

func TestSolver_ValidatesInputs(t *testing.T) {
	solver := NewSolver(SolverSettings{})

	_, err := solver.Solve(MinVolatilityObjective, ObjectiveParams{})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = solver.Solve(NegativeSharpeObjective, ObjectiveParams{
		Cov: mat.NewSymDense(2, []float64{0.01, 0, 0, 0.04}),
		Mu:  []float64{0.1},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSolverSettings_Defaults(t *testing.T) {
	s := NewSolver(SolverSettings{MaxIterations: 10, StrictConvergence: true}).Settings()
	assert.Equal(t, 10, s.MaxIterations)
	assert.True(t, s.StrictConvergence)
	assert.Equal(t, DefaultMaxFuncEvaluations, s.MaxFuncEvaluations)
	assert.Equal(t, DefaultPenaltyWeight, s.PenaltyWeight)
	assert.Equal(t, DefaultStallIterations, s.StallIterations)
}

func TestSolver_LimitsScaleWithAssets(t *testing.T) {
	solver := NewSolver(DefaultSolverSettings())

	iterations, evaluations := solver.limits(5)
	assert.Equal(t, DefaultMaxIterations, iterations)
	assert.Equal(t, DefaultMaxFuncEvaluations, evaluations)

	iterations, evaluations = solver.limits(26)
	assert.Equal(t, 26*DefaultIterationsPerAsset, iterations)
	assert.GreaterOrEqual(t, evaluations, iterations*(2*26+1))

	fixed := NewSolver(SolverSettings{MaxIterations: 10})
	iterations, _ = fixed.limits(26)
	assert.Equal(t, 10, iterations)
}

func TestProjectedGradient(t *testing.T) {
	region := FeasibleRegion{N: 3}
	pg := projectedGradient{region: region, maxIterations: 500, maxEvaluations: 100000, tol: 1e-9}

	t.Run("interior minimum", func(t *testing.T) {
		target := []float64{0.5, 0.3, 0.2}
		f := func(w []float64) float64 { return distanceSquared(w, target) }

		res := pg.minimize(f, region.InitialWeights())
		assert.True(t, isConverged(res.Status), "status=%v", res.Status)
		assert.InDeltaSlice(t, target, res.X, 1e-6)
		assert.True(t, region.Contains(res.X, WeightSumTolerance))
	})

	t.Run("minimum on a vertex", func(t *testing.T) {
		f := func(w []float64) float64 { return 3*w[0] + 2*w[1] + w[2] }

		res := pg.minimize(f, region.InitialWeights())
		assert.True(t, isConverged(res.Status), "status=%v", res.Status)
		assert.InDeltaSlice(t, []float64{0, 0, 1}, res.X, 1e-9)
	})

	t.Run("iteration limit keeps best point", func(t *testing.T) {
		short := pg
		short.maxIterations = 1
		target := []float64{0.9, 0.05, 0.05}
		f := func(w []float64) float64 { return distanceSquared(w, target) }
		start := region.InitialWeights()

		res := short.minimize(f, start)
		assert.Equal(t, optimize.IterationLimit, res.Status)
		assert.LessOrEqual(t, res.F, f(start))
		assert.True(t, region.Contains(res.X, WeightSumTolerance))
	})
}
