package optimization

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aristath/allocator/pkg/formulas"
	"github.com/stretchr/testify/assert"
)

func TestIsInputError(t *testing.T) {
	assert.True(t, IsInputError(fmt.Errorf("wrapped: %w", ErrInsufficientData)))
	assert.True(t, IsInputError(formulas.ErrInvalidFrequency))
	assert.True(t, IsInputError(ErrUnknownProfile))
	assert.True(t, IsInputError(fmt.Errorf("%w: bad cell", ErrInvalidReturns)))

	assert.False(t, IsInputError(ErrNotConverged))
	assert.False(t, IsInputError(errors.New("disk full")))
	assert.False(t, IsInputError(nil))
}
