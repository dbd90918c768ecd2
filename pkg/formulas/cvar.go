package formulas

import (
	"math"
	"sort"
)

// Quantile returns the p-quantile of an ascending-sorted sample using linear
// interpolation between closest ranks: h = (n-1)·p, q = x[⌊h⌋] + (h-⌊h⌋)·(x[⌊h⌋+1]-x[⌊h⌋]).
// p is clamped to [0,1]. Returns NaN for an empty sample.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	h := float64(n-1) * p
	lo := int(math.Floor(h))
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

func sortedLosses(series []float64) []float64 {
	losses := make([]float64, len(series))
	for i, r := range series {
		losses[i] = -r
	}
	sort.Float64s(losses)
	return losses
}

func meanAtOrAbove(sorted []float64, threshold float64) float64 {
	idx := sort.SearchFloat64s(sorted, threshold)
	tail := sorted[idx:]
	if len(tail) == 0 {
		return 0
	}
	return Mean(tail)
}

// CVaRHistorical calculates historical CVaR as the mean of losses at or above
// a loss threshold, returned as a positive loss.
//
// NOTE: the threshold is the alpha-quantile of losses, not the (1-alpha) tail
// quantile. For alpha = 0.05 this averages nearly the whole distribution.
// ExpectedShortfall computes the conventional tail measure.
func CVaRHistorical(series []float64, alpha float64) float64 {
	if len(series) == 0 {
		return 0
	}
	losses := sortedLosses(series)
	threshold := Quantile(losses, alpha)
	return meanAtOrAbove(losses, threshold)
}

// ExpectedShortfall calculates the mean loss in the worst alpha fraction of
// periods, using the (1-alpha)-quantile of losses as threshold.
// Returned as a positive loss; 0 for an empty series.
func ExpectedShortfall(series []float64, alpha float64) float64 {
	if len(series) == 0 {
		return 0
	}
	losses := sortedLosses(series)
	threshold := Quantile(losses, 1-alpha)
	return meanAtOrAbove(losses, threshold)
}
