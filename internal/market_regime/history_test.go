package market_regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegimeHistory_RecordAndRecent(t *testing.T) {
	h := NewRegimeHistory(10)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	opts := DefaultOptions()

	for i, price := range []float64{100, 101, 80} {
		r := Classify(price, 95, 90, opts)
		r.ClassifiedAt = base.Add(time.Duration(i) * time.Minute)
		h.Record(r)
	}

	entries := h.Recent(10)
	require.Len(t, entries, 3)

	assert.Equal(t, ZoneBearish, entries[0].Zone, "newest first")
	assert.True(t, entries[0].ZoneChanged)
	assert.False(t, entries[1].ZoneChanged, "strong -> strong")
	assert.True(t, entries[2].ZoneChanged, "first record is a change")
	assert.Equal(t, base.Add(2*time.Minute), entries[0].ClassifiedAt)

	changes := h.Changes(5)
	require.Len(t, changes, 2)
	assert.Equal(t, ZoneBearish, changes[0].Zone)
	assert.Equal(t, ZoneStrong, changes[1].Zone)
}

func TestRegimeHistory_SkipsUnknown(t *testing.T) {
	h := NewRegimeHistory(4)
	h.Record(Regime{Zone: ZoneUnknown})
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Recent(10))
}

func TestRegimeHistory_Wraps(t *testing.T) {
	h := NewRegimeHistory(3)
	for i := 1; i <= 5; i++ {
		h.Record(Regime{Zone: ZoneStrong, Price: float64(i)})
	}

	assert.Equal(t, 3, h.Len())
	entries := h.Recent(0)
	require.Len(t, entries, 3)
	assert.Equal(t, []float64{5, 4, 3}, []float64{entries[0].Price, entries[1].Price, entries[2].Price})

	assert.Len(t, h.Recent(2), 2)
}
