package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestRiskContributions(t *testing.T) {
	tests := []struct {
		name string
		w    []float64
		cov  *mat.SymDense
		want []float64
	}{
		{
			name: "equal variance uncorrelated",
			w:    []float64{0.5, 0.5},
			cov:  mat.NewSymDense(2, []float64{0.04, 0, 0, 0.04}),
			want: []float64{0.01 / math.Sqrt(0.02), 0.01 / math.Sqrt(0.02)},
		},
		{
			name: "single asset",
			w:    []float64{1},
			cov:  mat.NewSymDense(1, []float64{0.09}),
			want: []float64{0.3},
		},
		{
			name: "zero covariance",
			w:    []float64{0.5, 0.5},
			cov:  mat.NewSymDense(2, []float64{0, 0, 0, 0}),
			want: []float64{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := RiskContributions(tt.w, tt.cov)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, rc, 1e-9)
		})
	}
}

func TestRiskContributions_SumToVolatility(t *testing.T) {
	cov := mat.NewSymDense(3, []float64{
		0.040, 0.006, 0.002,
		0.006, 0.025, 0.004,
		0.002, 0.004, 0.010,
	})
	w := []float64{0.2, 0.3, 0.5}

	rc, err := RiskContributions(w, cov)
	require.NoError(t, err)

	variance, err := PortfolioVariance(w, cov)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(variance), floats.Sum(rc), 1e-9)
}

func TestRiskContributions_DimensionMismatch(t *testing.T) {
	_, err := RiskContributions([]float64{1, 0, 0}, mat.NewSymDense(2, nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
