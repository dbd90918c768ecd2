package optimization

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// WeightSumTolerance is the allowed deviation of Σw from 1 in a returned weight vector.
const WeightSumTolerance = 1e-6

// FeasibleRegion is the long-only, fully invested set {w : Σw = 1, 0 ≤ w_i ≤ 1}.
type FeasibleRegion struct {
	N int
}

// InitialWeights returns the uniform portfolio, the starting point of every strategy.
func (fr FeasibleRegion) InitialWeights() []float64 {
	w := make([]float64, fr.N)
	for i := range w {
		w[i] = 1 / float64(fr.N)
	}
	return w
}

// Contains reports whether w satisfies the bounds exactly and the budget within tol.
func (fr FeasibleRegion) Contains(w []float64, tol float64) bool {
	if len(w) != fr.N {
		return false
	}
	for _, v := range w {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return false
		}
	}
	return math.Abs(floats.Sum(w)-1) <= tol
}

// Project returns the Euclidean projection of x onto the region.
func (fr FeasibleRegion) Project(x []float64) []float64 {
	return ProjectToSimplex(x)
}

// ProjectToSimplex returns the closest point to x (in Euclidean norm) with
// non-negative components summing to one. The upper bound of 1 per weight
// follows from the budget.
//
// Sort-based algorithm: with u sorted descending, θ = (Σ_{j≤ρ} u_j − 1)/ρ where
// ρ is the largest index with u_ρ > (Σ_{j≤ρ} u_j − 1)/ρ; then w_i = max(x_i − θ, 0).
func ProjectToSimplex(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return []float64{}
	}

	u := make([]float64, n)
	copy(u, x)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))

	var cumsum, theta float64
	for j := 0; j < n; j++ {
		cumsum += u[j]
		t := (cumsum - 1) / float64(j+1)
		if u[j] > t {
			theta = t
		}
	}

	w := make([]float64, n)
	for i, v := range x {
		w[i] = math.Max(v-theta, 0)
	}
	return w
}

// distanceSquared returns ‖a − b‖².
func distanceSquared(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}
