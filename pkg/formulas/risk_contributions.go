package formulas

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// RiskContributionEpsilon keeps the contribution denominator away from zero.
const RiskContributionEpsilon = 1e-12

// RiskContributions decomposes portfolio volatility into per-asset contributions.
//
// Formula:
//
//	σ_p  = sqrt(w'Σw)            (0 when w'Σw <= 0)
//	rc_i = w_i · (Σw)_i / (σ_p + ε)
//
// The contributions sum to σ_p (up to ε). The risk parity objective is built
// on this function.
func RiskContributions(w []float64, cov mat.Symmetric) ([]float64, error) {
	n := cov.SymmetricDim()
	if len(w) != n {
		return nil, fmt.Errorf("%w: %d weights for %dx%d covariance", ErrDimensionMismatch, len(w), n, n)
	}
	if n == 0 {
		return []float64{}, nil
	}

	wv := mat.NewVecDense(n, w)
	variance := mat.Inner(wv, cov, wv)
	vol := 0.0
	if variance > 0 {
		vol = math.Sqrt(variance)
	}

	var marginal mat.VecDense
	marginal.MulVec(cov, wv)

	rc := make([]float64, n)
	for i := range rc {
		rc[i] = w[i] * marginal.AtVec(i) / (vol + RiskContributionEpsilon)
	}
	return rc, nil
}
