package riskprofile

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Defaults applied when an answer is missing.
const (
	DefaultHorizonYears       = 3.0
	DefaultDrawdownComfortPct = 20.0
	DefaultSellInCrash        = "hold"
	DefaultIncomeStability    = "stable"
	DefaultExperience         = "some"
)

// Questionnaire keys.
const (
	KeyHorizonYears       = "horizon_years"
	KeyDrawdownComfortPct = "drawdown_comfort_pct"
	KeySellInCrash        = "sell_in_crash"
	KeyIncomeStability    = "income_stability"
	KeyExperience         = "experience"
)

// Answers holds the five questionnaire answers. Missing answers (nil or
// empty) take the Default* values; unrecognised categorical answers score 1.
type Answers struct {
	HorizonYears       *float64 `json:"horizon_years,omitempty" validate:"omitempty,gte=0"`
	DrawdownComfortPct *float64 `json:"drawdown_comfort_pct,omitempty" validate:"omitempty,gte=0,lte=100"`
	SellInCrash        string   `json:"sell_in_crash,omitempty"`
	IncomeStability    string   `json:"income_stability,omitempty"`
	Experience         string   `json:"experience,omitempty"`
}

var (
	sellInCrashPoints = map[string]int{
		"sell_all":  0,
		"sell_some": 0,
		"hold":      1,
		"buy_more":  2,
	}
	incomeStabilityPoints = map[string]int{
		"unstable": 0,
		"somewhat": 1,
		"stable":   2,
	}
	experiencePoints = map[string]int{
		"new":         0,
		"some":        1,
		"experienced": 2,
	}
)

const unknownAnswerPoints = 1

func categoricalPoints(table map[string]int, answer, fallback string) int {
	if answer == "" {
		answer = fallback
	}
	if p, ok := table[answer]; ok {
		return p
	}
	return unknownAnswerPoints
}

func horizonPoints(years float64) int {
	switch {
	case years <= 2:
		return 0
	case years <= 5:
		return 1
	default:
		return 2
	}
}

func drawdownPoints(pct float64) int {
	switch {
	case pct <= 15:
		return 0
	case pct <= 30:
		return 1
	default:
		return 2
	}
}

// Score sums the points of each answer, 0 to 10.
func Score(a Answers) int {
	horizon := DefaultHorizonYears
	if a.HorizonYears != nil {
		horizon = *a.HorizonYears
	}
	drawdown := DefaultDrawdownComfortPct
	if a.DrawdownComfortPct != nil {
		drawdown = *a.DrawdownComfortPct
	}

	return horizonPoints(horizon) +
		drawdownPoints(drawdown) +
		categoricalPoints(sellInCrashPoints, a.SellInCrash, DefaultSellInCrash) +
		categoricalPoints(incomeStabilityPoints, a.IncomeStability, DefaultIncomeStability) +
		categoricalPoints(experiencePoints, a.Experience, DefaultExperience)
}

// Classify scores the answers and returns the matching profile.
func Classify(a Answers) Profile {
	return ProfileForScore(Score(a))
}

// AnswersFromMap converts a loosely typed questionnaire mapping.
// Numbers may be any Go numeric type, json.Number or a numeric string.
// Unknown keys are ignored.
func AnswersFromMap(m map[string]any) (Answers, error) {
	var a Answers

	if v, ok := m[KeyHorizonYears]; ok && present(v) {
		f, err := toFloat(v)
		if err != nil {
			return Answers{}, fmt.Errorf("%s: %w", KeyHorizonYears, err)
		}
		a.HorizonYears = &f
	}
	if v, ok := m[KeyDrawdownComfortPct]; ok && present(v) {
		f, err := toFloat(v)
		if err != nil {
			return Answers{}, fmt.Errorf("%s: %w", KeyDrawdownComfortPct, err)
		}
		a.DrawdownComfortPct = &f
	}

	a.SellInCrash = toString(m[KeySellInCrash])
	a.IncomeStability = toString(m[KeyIncomeStability])
	a.Experience = toString(m[KeyExperience])

	return a, nil
}

// present treats nil and blank strings as unanswered.
func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}

func toFloat(v any) (float64, error) {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	if _, ok := v.(bool); ok {
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
	return cast.ToFloat64E(v)
}

func toString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s))
}
