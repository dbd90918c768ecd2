package optimization

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Spectral projected gradient parameters (Birgin, Martínez and Raydan).
const (
	spgMemory       = 10
	spgSufficient   = 1e-4
	spgMinStep      = 1e-10
	spgMaxStep      = 1e10
	spgMinLineShift = 1e-20
)

// projectedGradient minimizes f over the feasible region with the spectral
// projected gradient method. Every iterate is feasible. The run converges when
// the projected gradient step ‖P(w − ∇f(w)) − w‖∞ drops below tol.
type projectedGradient struct {
	region         FeasibleRegion
	maxIterations  int
	maxEvaluations int
	tol            float64
}

type projectedGradientResult struct {
	X               []float64
	F               float64
	Status          optimize.Status
	Iterations      int
	FuncEvaluations int
}

func (pg projectedGradient) minimize(f func([]float64) float64, start []float64) projectedGradientResult {
	n := pg.region.N
	evals := 0
	eval := func(w []float64) float64 {
		evals++
		return f(w)
	}
	gradSettings := &fd.Settings{Formula: fd.Central}
	gradient := func(dst, w []float64) {
		fd.Gradient(dst, eval, w, gradSettings)
	}

	x := pg.region.Project(start)
	fx := eval(x)
	g := make([]float64, n)
	gradient(g, x)

	best := projectedGradientResult{X: append([]float64(nil), x...), F: fx}
	history := []float64{fx}

	trial := make([]float64, n)
	d := make([]float64, n)
	xNew := make([]float64, n)
	gNew := make([]float64, n)
	s := make([]float64, n)
	y := make([]float64, n)

	step := pg.stationarity(x, g, 1, trial, d)
	if step > 0 {
		step = clampStep(1 / step)
	} else {
		step = 1
	}

	status := optimize.IterationLimit
	iter := 0
	for ; iter < pg.maxIterations; iter++ {
		if pg.stationarity(x, g, 1, trial, d) <= pg.tol {
			status = optimize.GradientThreshold
			break
		}
		if evals >= pg.maxEvaluations {
			status = optimize.FunctionEvaluationLimit
			break
		}

		pg.stationarity(x, g, step, trial, d)
		slope := floats.Dot(g, d)
		reference := floats.Max(history)

		lambda := 1.0
		var fNew float64
		for {
			floats.AddScaledTo(xNew, x, lambda, d)
			fNew = eval(xNew)
			if fNew <= reference+spgSufficient*lambda*slope {
				break
			}
			lambda *= 0.5
			if lambda < spgMinLineShift {
				break
			}
		}
		if lambda < spgMinLineShift {
			status = optimize.StepConvergence
			break
		}

		gradient(gNew, xNew)
		floats.SubTo(s, xNew, x)
		floats.SubTo(y, gNew, g)
		if sy := floats.Dot(s, y); sy > 0 {
			step = clampStep(floats.Dot(s, s) / sy)
		} else {
			step = spgMaxStep
		}

		copy(x, xNew)
		copy(g, gNew)
		fx = fNew
		if fx < best.F {
			best.F = fx
			copy(best.X, x)
		}

		history = append(history, fx)
		if len(history) > spgMemory {
			history = history[1:]
		}
	}

	if status == optimize.GradientThreshold {
		best = projectedGradientResult{X: append([]float64(nil), x...), F: fx}
	}
	best.Status = status
	best.Iterations = iter
	best.FuncEvaluations = evals
	return best
}

// stationarity fills d with P(x − step·g) − x and returns its ∞-norm.
func (pg projectedGradient) stationarity(x, g []float64, step float64, trial, d []float64) float64 {
	floats.AddScaledTo(trial, x, -step, g)
	floats.SubTo(d, pg.region.Project(trial), x)
	return floats.Norm(d, math.Inf(1))
}

func clampStep(step float64) float64 {
	return math.Min(spgMaxStep, math.Max(spgMinStep, step))
}
