package formulas

import "errors"

var (
	// ErrInvalidFrequency is returned for any frequency label other than D, W or M.
	ErrInvalidFrequency = errors.New("frequency must be D, W or M")
	// ErrInsufficientData is returned when a statistic is undefined for the input length.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDimensionMismatch is returned when weights and columns disagree in length.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrReturnBelowMinusOne is returned when a geometric statistic sees a return <= -100%.
	ErrReturnBelowMinusOne = errors.New("return must be greater than -1")
)
