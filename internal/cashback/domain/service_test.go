package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeCashback(t *testing.T) {
	tests := []struct {
		name          string
		amountCents   int64
		baseRateBps   int64
		multiplierBps int64
		want          int64
	}{
		{"five percent of 100.00", 10_000, 500, 10000, 500},
		{"rounds half up", 100, 50, 10000, 1},
		{"rounds down below half", 999, 125, 10000, 12},
		{"rounds up above half", 333, 500, 10000, 17},
		{"tier multiplier applies", 10_000, 500, 15000, 750},
		{"double multiplier", 10_000, 500, 20000, 1000},
		{"full rate", 10_000, 10000, 10000, 10_000},
		{"large amount stays exact", 1_000_000_000_000, 10000, 30000, 3_000_000_000_000},
		{"zero amount", 0, 500, 10000, 0},
		{"negative amount", -10_000, 500, 10000, 0},
		{"zero rate", 10_000, 0, 10000, 0},
		{"zero multiplier", 10_000, 500, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeCashback(tc.amountCents, tc.baseRateBps, tc.multiplierBps))
		})
	}
}
