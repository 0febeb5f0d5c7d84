package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeFees_StandardBreakdown(t *testing.T) {
	// 1000.00 base, 18% GST, 50.00 platform fee -> 1230.00 total.
	f := ComputeFees(100000, 1800, 5000)

	assert.Equal(t, int64(100000), f.BaseAmount)
	assert.Equal(t, int64(1800), f.GSTBps)
	assert.Equal(t, int64(18000), f.GSTAmount)
	assert.Equal(t, int64(5000), f.PlatformFee)
	assert.Equal(t, int64(123000), f.TotalAmount)
}

func TestComputeFees_Deterministic(t *testing.T) {
	first := ComputeFees(100000, 1800, 5000)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, ComputeFees(100000, 1800, 5000))
	}
}

func TestComputeFees_RoundHalfUp(t *testing.T) {
	tests := []struct {
		name    string
		base    int64
		gstBps  int64
		wantGST int64
	}{
		// 33 * 18% = 5.94 -> 6
		{"rounds up above half", 33, 1800, 6},
		// 25 * 18% = 4.5 -> 5 (half rounds up)
		{"half rounds up", 25, 1800, 5},
		// 24 * 18% = 4.32 -> 4
		{"rounds down below half", 24, 1800, 4},
		// 1 * 1 bps = 0.0001 -> 0
		{"tiny amount rounds to zero", 1, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ComputeFees(tt.base, tt.gstBps, 0)
			assert.Equal(t, tt.wantGST, f.GSTAmount)
			assert.Equal(t, tt.base+tt.wantGST, f.TotalAmount)
		})
	}
}

func TestComputeFees_TotalIsSumOfComponents(t *testing.T) {
	f := ComputeFees(99999, 1850, 4999)
	assert.Equal(t, f.BaseAmount+f.GSTAmount+f.PlatformFee, f.TotalAmount)
}

func TestComputeFees_ZeroBaseShortCircuits(t *testing.T) {
	f := ComputeFees(0, 1800, 5000)
	assert.True(t, f.IsZero())
	assert.Equal(t, ZeroFees(), f)
}

func TestComputeFees_ZeroGSTRate(t *testing.T) {
	f := ComputeFees(50000, 0, 2500)
	assert.Equal(t, int64(0), f.GSTAmount)
	assert.Equal(t, int64(52500), f.TotalAmount)
}
