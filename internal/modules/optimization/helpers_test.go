package optimization

import (
	"math/bits"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// hadamardReturns builds 8 periods of returns whose columns are mutually
// uncorrelated: column j is means[j] + scales[j]·H[t][j+1] with H the 8×8
// Sylvester Hadamard matrix. Each column has sample variance scales[j]²·8/7.
func hadamardReturns(t *testing.T, means, scales []float64) *ReturnsMatrix {
	t.Helper()
	require.Equal(t, len(means), len(scales))
	require.LessOrEqual(t, len(scales), 7)

	tickers := make([]string, len(scales))
	for j := range tickers {
		tickers[j] = string(rune('A' + j))
	}

	rows := make([][]float64, 8)
	for i := range rows {
		rows[i] = make([]float64, len(scales))
		for j := range scales {
			sign := 1.0
			if bits.OnesCount(uint(i&(j+1)))%2 == 1 {
				sign = -1.0
			}
			rows[i][j] = means[j] + scales[j]*sign
		}
	}

	r, err := NewReturnsMatrix(tickers, rows)
	require.NoError(t, err)
	return r
}

// randomReturns builds a deterministic correlated returns matrix.
func randomReturns(t *testing.T, periods, assets int, seed int64) *ReturnsMatrix {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	tickers := make([]string, assets)
	for j := range tickers {
		tickers[j] = string(rune('A' + j))
	}

	rows := make([][]float64, periods)
	for i := range rows {
		market := rng.NormFloat64() * 0.01
		rows[i] = make([]float64, assets)
		for j := range rows[i] {
			beta := 0.5 + float64(j)*0.25
			rows[i][j] = 0.0004*float64(j+1) + beta*market + rng.NormFloat64()*0.005*float64(j+1)
		}
	}

	r, err := NewReturnsMatrix(tickers, rows)
	require.NoError(t, err)
	return r
}
