package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaterLine_NotInverted(t *testing.T) {
	w := NewWaterLine(15, false, true)

	w.Update(10)
	assert.False(t, w.IsHit)
	assert.Equal(t, 15.0, w.HighestHit)

	w.Update(18)
	assert.True(t, w.IsHit)
	assert.Equal(t, 18.0, w.HighestHit)

	// A lower hit does not pull the watermark back
	w.Update(16)
	assert.True(t, w.IsHit)
	assert.Equal(t, 18.0, w.HighestHit)

	// Falling below the line keeps the hit flag until Reset
	w.Update(5)
	assert.True(t, w.IsHit)
	assert.Equal(t, 18.0, w.HighestHit)
}

func TestWaterLine_Inverted(t *testing.T) {
	w := NewWaterLine(10, true, true)

	w.Update(12)
	assert.False(t, w.IsHit)

	w.Update(9)
	assert.True(t, w.IsHit)
	assert.Equal(t, 9.0, w.HighestHit)

	w.Update(7)
	assert.Equal(t, 7.0, w.HighestHit)

	w.Update(8)
	assert.Equal(t, 7.0, w.HighestHit)
}

func TestWaterLine_InactiveNeverChanges(t *testing.T) {
	testCases := []struct {
		name     string
		inverted bool
		values   []float64
	}{
		{"normal", false, []float64{1, 20, 100, -5}},
		{"inverted", true, []float64{50, 0, -100, 9}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWaterLine(10, tc.inverted, false)
			for _, v := range tc.values {
				w.Update(v)
				assert.False(t, w.IsHit)
				assert.Equal(t, 10.0, w.HighestHit)
			}
		})
	}
}

func TestWaterLine_EqualToLineIsNotAHit(t *testing.T) {
	w := NewWaterLine(10, false, true)
	w.Update(10)
	assert.False(t, w.IsHit)

	inv := NewWaterLine(10, true, true)
	inv.Update(10)
	assert.False(t, inv.IsHit)
}

func TestWaterLine_Reset(t *testing.T) {
	w := NewWaterLine(15, false, true)
	w.Update(30)
	assert.True(t, w.IsHit)

	w.Reset(false)
	assert.False(t, w.IsHit)
	assert.False(t, w.Active)
	assert.Equal(t, 15.0, w.HighestHit)

	w.Update(40)
	assert.False(t, w.IsHit)

	w.Reset(true)
	w.Update(40)
	assert.True(t, w.IsHit)
	assert.Equal(t, 40.0, w.HighestHit)
}
