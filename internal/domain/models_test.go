package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstrument_ChangePercent(t *testing.T) {
	inst := Instrument{Symbol: "600000.XSHG", Close: 10.3, PreClose: 10.0}

	change, ok := inst.ChangePercent()
	assert.True(t, ok)
	assert.InDelta(t, 3.0, change, 1e-9)
}

func TestInstrument_ChangePercent_NoPreviousClose(t *testing.T) {
	inst := Instrument{Symbol: "600000.XSHG", Close: 10.3}

	_, ok := inst.ChangePercent()
	assert.False(t, ok)
}

func TestPosition_UnrealizedGain(t *testing.T) {
	pos := Position{Symbol: "000001.XSHE", Quantity: 200, AverageCost: 10, CurrentPrice: 9.5}

	assert.InDelta(t, -0.5, pos.UnrealizedGain(), 1e-9)
	assert.InDelta(t, 1900.0, pos.MarketValue(), 1e-9)
}

func TestOrderResult_IsFilled(t *testing.T) {
	var nilResult *OrderResult
	assert.False(t, nilResult.IsFilled())

	assert.False(t, (&OrderResult{Status: OrderStatusRejected, FilledQty: 100}).IsFilled())
	assert.False(t, (&OrderResult{Status: OrderStatusFilled}).IsFilled())
	assert.True(t, (&OrderResult{Status: OrderStatusFilled, FilledQty: 100}).IsFilled())
}

func TestHeldSymbols(t *testing.T) {
	held := HeldSymbols([]Position{
		{Symbol: "A", Quantity: 100},
		{Symbol: "B", Quantity: 0},
	})

	assert.True(t, held["A"])
	assert.False(t, held["B"])
	assert.Len(t, held, 1)
}
