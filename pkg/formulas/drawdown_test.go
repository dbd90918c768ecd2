package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"all positive", []float64{0.01, 0.02, 0.0, 0.05}, 0},
		{"all zero", []float64{0, 0, 0}, 0},
		{"peak then trough", []float64{0.10, -0.20, 0.05}, -0.20},
		{"two losses compound", []float64{-0.10, -0.10}, -0.19},
		{"recovery then deeper fall", []float64{-0.05, 0.10, -0.30, 0.50}, -0.30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MaxDrawdown(tt.series), 1e-12)
		})
	}
}

func TestMaxDrawdown_SingleLoss(t *testing.T) {
	assert.Equal(t, -0.10, MaxDrawdown([]float64{-0.10}))
}
