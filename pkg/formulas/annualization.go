package formulas

import (
	"fmt"
	"strings"
)

// Frequency is the sampling frequency of a returns series.
type Frequency string

const (
	Daily   Frequency = "D"
	Weekly  Frequency = "W"
	Monthly Frequency = "M"
)

// Periods per year for each supported frequency.
const (
	TradingDaysPerYear = 252
	WeeksPerYear       = 52
	MonthsPerYear      = 12
)

// AnnualizationFactor returns the number of periods per year for freq.
// There is no default: anything other than D, W or M is rejected.
func AnnualizationFactor(freq Frequency) (int, error) {
	switch freq {
	case Daily:
		return TradingDaysPerYear, nil
	case Weekly:
		return WeeksPerYear, nil
	case Monthly:
		return MonthsPerYear, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, string(freq))
}

// ParseFrequency converts a user supplied label into a Frequency.
// Surrounding whitespace is ignored, the label itself is case sensitive.
func ParseFrequency(label string) (Frequency, error) {
	freq := Frequency(strings.TrimSpace(label))
	if _, err := AnnualizationFactor(freq); err != nil {
		return "", err
	}
	return freq, nil
}

// String implements fmt.Stringer.
func (f Frequency) String() string {
	return string(f)
}
