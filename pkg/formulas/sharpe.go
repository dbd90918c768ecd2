package formulas

import (
	"encoding/json"
	"fmt"
	"math"
)

// Ratio is a statistic that may be undefined for degenerate inputs,
// such as a Sharpe ratio over a series with zero variance.
type Ratio struct {
	Value   float64
	Defined bool
}

// Undefined is the zero-variance result.
var Undefined = Ratio{}

// DefinedRatio wraps a finite value.
func DefinedRatio(v float64) Ratio {
	return Ratio{Value: v, Defined: true}
}

// Float returns the value and whether it is defined.
func (r Ratio) Float() (float64, bool) {
	return r.Value, r.Defined
}

// MarshalJSON encodes an undefined ratio as null.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON decodes null as undefined.
func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Undefined
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = DefinedRatio(v)
	return nil
}

// SharpeRatio calculates the annualized Sharpe ratio of a periodic returns series.
//
// Formula: mean(r - rf/af) / std(r - rf/af) × sqrt(af)
//
// Args:
//   - series: periodic returns
//   - rf: annual risk-free rate (e.g. 0.04 for 4%)
//   - freq: sampling frequency of the series
//
// Returns Undefined when the excess series has zero variance. A flat series is a
// valid input, not an error.
func SharpeRatio(series []float64, rf float64, freq Frequency) (Ratio, error) {
	af, err := AnnualizationFactor(freq)
	if err != nil {
		return Undefined, err
	}
	if len(series) < 2 {
		return Undefined, fmt.Errorf("%w: sharpe needs at least 2 returns, got %d", ErrInsufficientData, len(series))
	}

	periodRF := rf / float64(af)
	excess := make([]float64, len(series))
	for i, r := range series {
		excess[i] = r - periodRF
	}

	// Two-pass variance can leave rounding residue on a constant series.
	if isFlat(excess) {
		return Undefined, nil
	}

	std := StdDev(excess)
	if std == 0 || math.IsNaN(std) {
		return Undefined, nil
	}

	return DefinedRatio(Mean(excess) / std * math.Sqrt(float64(af))), nil
}

func isFlat(data []float64) bool {
	for _, v := range data[1:] {
		if v != data[0] {
			return false
		}
	}
	return true
}
