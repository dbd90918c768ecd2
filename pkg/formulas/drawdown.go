package formulas

// MaxDrawdown calculates the maximum drawdown of a periodic returns series.
//
// The equity curve starts at 1 and compounds (1+r). Drawdown at t is
// equity(t)/peak(t) - 1 with peak the running maximum, initial capital included.
// Returns the most negative drawdown as a negative fraction, or 0 if the curve
// never falls below its peak.
//
// The drawdown is carried directly as d(t) = d(t-1) + r(t)·(1 + d(t-1)),
// which equals equity/peak - 1 without forming the ratio, so a single
// -10% period yields exactly -0.10.
func MaxDrawdown(series []float64) float64 {
	var current, worst float64
	for _, r := range series {
		current = current + r*(1+current)
		if current >= 0 {
			// New peak.
			current = 0
			continue
		}
		if current < worst {
			worst = current
		}
	}
	return worst
}
