package formulas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnualizationFactor(t *testing.T) {
	tests := []struct {
		freq Frequency
		want int
	}{
		{Daily, 252},
		{Weekly, 52},
		{Monthly, 12},
	}

	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			got, err := AnnualizationFactor(tt.freq)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			parsed, err := ParseFrequency(" " + string(tt.freq) + " ")
			require.NoError(t, err)
			assert.Equal(t, tt.freq, parsed)
		})
	}
}

func TestAnnualizationFactor_Invalid(t *testing.T) {
	for _, label := range []string{"", "d", "Y", "Q", "daily", "MM"} {
		t.Run(label, func(t *testing.T) {
			_, err := AnnualizationFactor(Frequency(label))
			assert.True(t, errors.Is(err, ErrInvalidFrequency))

			_, err = ParseFrequency(label)
			assert.ErrorIs(t, err, ErrInvalidFrequency)
		})
	}
}
