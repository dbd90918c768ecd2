package optimization

import (
	"errors"

	"github.com/aristath/allocator/internal/modules/riskprofile"
	"github.com/aristath/allocator/pkg/formulas"
)

var (
	// ErrInsufficientData is returned when the returns matrix cannot support a covariance estimate.
	ErrInsufficientData = formulas.ErrInsufficientData
	// ErrDimensionMismatch is returned when weights, tickers and columns disagree.
	ErrDimensionMismatch = formulas.ErrDimensionMismatch
	// ErrInvalidReturns is returned for ragged rows, non-finite cells or duplicate tickers.
	ErrInvalidReturns = errors.New("invalid returns matrix")
	// ErrNotConverged is returned under strict convergence when the solver stops early.
	ErrNotConverged = errors.New("optimization did not converge")
	// ErrUnknownStrategy is returned for strategy names outside the supported set.
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrUnknownProfile is returned when dispatching on an invalid profile label.
	ErrUnknownProfile = riskprofile.ErrUnknownProfile
)

// IsInputError reports whether err was caused by the caller's input rather
// than by the solver or the environment.
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrInsufficientData,
		ErrDimensionMismatch,
		ErrInvalidReturns,
		ErrUnknownStrategy,
		ErrUnknownProfile,
		formulas.ErrInvalidFrequency,
		formulas.ErrReturnBelowMinusOne,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
