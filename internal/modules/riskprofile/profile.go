// Package riskprofile scores the investor questionnaire into one of three risk profiles.
package riskprofile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProfile is returned for labels outside the three known profiles.
var ErrUnknownProfile = errors.New("unknown risk profile")

// Label identifies a risk profile. The zero value is not a valid label.
type Label int

const (
	Conservative Label = iota + 1
	Moderate
	Aggressive
)

// Labels lists every valid label in ascending order of risk tolerance.
var Labels = []Label{Conservative, Moderate, Aggressive}

func (l Label) String() string {
	switch l {
	case Conservative:
		return "Conservative"
	case Moderate:
		return "Moderate"
	case Aggressive:
		return "Aggressive"
	}
	return fmt.Sprintf("Label(%d)", int(l))
}

// Valid reports whether l is one of the three known labels.
func (l Label) Valid() bool {
	return l >= Conservative && l <= Aggressive
}

// ParseLabel parses a profile label, case-insensitively.
func ParseLabel(s string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "conservative":
		return Conservative, nil
	case "moderate":
		return Moderate, nil
	case "aggressive":
		return Aggressive, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownProfile, s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProfile, int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Range is an inclusive [Low, High] interval.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether v lies within the range, regardless of bound order.
func (r Range) Contains(v float64) bool {
	lo, hi := r.Low, r.High
	if lo > hi {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// Profile is the outcome of a questionnaire. The numeric ranges are advisory
// and are not applied as optimizer constraints.
type Profile struct {
	Label                Label   `json:"label"`
	Score                int     `json:"score"`
	SuggestedAnnVolRange Range   `json:"suggested_ann_vol_range"`
	SuggestedMaxDDRange  Range   `json:"suggested_maxdd_range"`
	MinBondAllocation    float64 `json:"min_bond_allocation"`
	MaxEquityAllocation  float64 `json:"max_equity_allocation"`
}

// Score thresholds, inclusive upper bounds.
const (
	ConservativeMaxScore = 3
	ModerateMaxScore     = 6
	MaxScore             = 10
)

// ProfileFor returns the reference profile of a label.
func ProfileFor(label Label) (Profile, error) {
	switch label {
	case Conservative:
		return Profile{
			Label:                Conservative,
			SuggestedAnnVolRange: Range{Low: 0.04, High: 0.09},
			SuggestedMaxDDRange:  Range{Low: -0.10, High: -0.20},
			MinBondAllocation:    0.40,
			MaxEquityAllocation:  0.60,
		}, nil
	case Moderate:
		return Profile{
			Label:                Moderate,
			SuggestedAnnVolRange: Range{Low: 0.10, High: 0.15},
			SuggestedMaxDDRange:  Range{Low: -0.20, High: -0.35},
			MinBondAllocation:    0.20,
			MaxEquityAllocation:  0.80,
		}, nil
	case Aggressive:
		return Profile{
			Label:                Aggressive,
			SuggestedAnnVolRange: Range{Low: 0.15, High: 0.25},
			SuggestedMaxDDRange:  Range{Low: -0.30, High: -0.50},
			MinBondAllocation:    0.0,
			MaxEquityAllocation:  1.0,
		}, nil
	}
	return Profile{}, fmt.Errorf("%w: %v", ErrUnknownProfile, label)
}

// LabelForScore buckets a questionnaire score.
func LabelForScore(score int) Label {
	switch {
	case score <= ConservativeMaxScore:
		return Conservative
	case score <= ModerateMaxScore:
		return Moderate
	default:
		return Aggressive
	}
}

// ProfileForScore returns the profile for a total questionnaire score.
func ProfileForScore(score int) Profile {
	// LabelForScore only yields valid labels.
	p, _ := ProfileFor(LabelForScore(score))
	p.Score = score
	return p
}
