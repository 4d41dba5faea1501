package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMA(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15}

	sma, ok := SMA(closes, 5)
	assert.True(t, ok)
	assert.InDelta(t, 13.0, sma, 1e-9)

	sma, ok = SMA(closes, 6)
	assert.True(t, ok)
	assert.InDelta(t, 12.5, sma, 1e-9)

	sma, ok = SMA(closes, 1)
	assert.True(t, ok)
	assert.Equal(t, 15.0, sma)
}

func TestSMA_InsufficientData(t *testing.T) {
	_, ok := SMA([]float64{1, 2, 3}, 5)
	assert.False(t, ok)

	_, ok = SMA(nil, 1)
	assert.False(t, ok)

	_, ok = SMA([]float64{1, 2}, 0)
	assert.False(t, ok)
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.5, Mean([]float64{1, 2, 3, 4}), 1e-9)
}

func TestChangePercent(t *testing.T) {
	pct, ok := ChangePercent(10.3, 10)
	assert.True(t, ok)
	assert.InDelta(t, 3.0, pct, 1e-9)

	_, ok = ChangePercent(10, 0)
	assert.False(t, ok)
}
