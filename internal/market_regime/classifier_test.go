package market_regime

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xfw5/Market-Research/internal/domain"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// indexMarket serves one index price and a moving average per window
type indexMarket struct {
	price    float64
	priceErr error
	mas      map[int]float64
}

func (m *indexMarket) CurrentPrice(string) (float64, error) {
	return m.price, m.priceErr
}

func (m *indexMarket) MovingAverage(_ string, window int, _ domain.PriceField) (float64, error) {
	if v, ok := m.mas[window]; ok {
		return v, nil
	}
	return 0, domain.ErrDataUnavailable
}

func (m *indexMarket) PriceLimits(string) (float64, float64, float64, error) { return 0, 0, 0, nil }
func (m *indexMarket) Instrument(string) (domain.Instrument, error)          { return domain.Instrument{}, nil }
func (m *indexMarket) IsSuspended(string) (bool, error)                      { return false, nil }
func (m *indexMarket) IsST(string) (bool, error)                             { return false, nil }

func TestClassify_Zones(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name    string
		price   float64
		ma1     float64
		ma2     float64
		zone    Zone
		target  float64
		bullish bool
	}{
		{"strong above both", 100, 95, 90, ZoneStrong, 0.8, true},
		{"strong on both averages", 95, 95, 95, ZoneStrong, 0.8, true},
		{"bearish below both", 80, 95, 90, ZoneBearish, 0.0, false},
		{"transitional between", 92, 90, 95, ZoneTransitional, 0.6, true},
		{"transitional on short average", 90, 90, 95, ZoneTransitional, 0.6, true},
		{"neutral under short above long", 92, 95, 90, ZoneNeutral, 0.2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Classify(tt.price, tt.ma1, tt.ma2, opts)
			assert.Equal(t, tt.zone, r.Zone)
			assert.Equal(t, tt.target, r.Target)
			assert.Equal(t, tt.bullish, r.Bullish)
		})
	}
}

func TestClassify_NeutralReduceIsOptIn(t *testing.T) {
	opts := DefaultOptions()

	r := Classify(92, 95, 90, opts)
	assert.Equal(t, ZoneNeutral, r.Zone)
	assert.False(t, r.ReduceOnly)
	assert.False(t, r.AllowsAllocation())

	opts.NeutralReduce = true
	r = Classify(92, 95, 90, opts)
	assert.True(t, r.ReduceOnly)
	assert.True(t, r.AllowsAllocation())
	assert.False(t, r.Bullish)

	assert.False(t, Classify(100, 95, 90, opts).ReduceOnly, "only the neutral zone reduces")
}

func TestRegime_Flags(t *testing.T) {
	assert.True(t, Regime{Zone: ZoneBearish}.IsTerminal())
	assert.False(t, Regime{Zone: ZoneBearish}.AllowsAllocation())
	assert.False(t, Regime{Zone: ZoneUnknown}.AllowsAllocation())
	assert.True(t, Regime{Zone: ZoneStrong}.AllowsAllocation())
	assert.False(t, Regime{Zone: ZoneNeutral}.AllowsAllocation())
	assert.True(t, Regime{Zone: ZoneNeutral, ReduceOnly: true}.AllowsAllocation())
	assert.False(t, Regime{Zone: ZoneStrong}.IsTerminal())
}

func TestRegimeClassifier_RefreshAndClassify(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	market := &indexMarket{price: 100, mas: map[int]float64{20: 95, 60: 90}}
	c := NewRegimeClassifier(DefaultOptions(), market, fixedClock{now}, zerolog.Nop())

	assert.Equal(t, ZoneUnknown, c.Last().Zone)

	require.NoError(t, c.RefreshMovingAverages())
	price, err := c.RefreshPrice()
	require.NoError(t, err)
	assert.Equal(t, 100.0, price)

	r, err := c.Classify()
	require.NoError(t, err)
	assert.Equal(t, ZoneStrong, r.Zone)
	assert.Equal(t, 0.8, r.Target)
	assert.Equal(t, now, r.ClassifiedAt)
	assert.Equal(t, now, c.MovingAveragesRefreshedAt())

	market.price = 80
	_, err = c.RefreshPrice()
	require.NoError(t, err)
	r, err = c.Classify()
	require.NoError(t, err)
	assert.Equal(t, ZoneBearish, r.Zone)
	assert.True(t, r.IsTerminal())
	assert.Equal(t, ZoneBearish, c.Last().Zone)
}

func TestRegimeClassifier_MissingData(t *testing.T) {
	market := &indexMarket{price: 100, mas: map[int]float64{20: 95}}
	c := NewRegimeClassifier(DefaultOptions(), market, nil, zerolog.Nop())

	err := c.RefreshMovingAverages()
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)

	_, err = c.Classify()
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Equal(t, ZoneUnknown, c.Last().Zone)

	market.mas[60] = 90
	require.NoError(t, c.RefreshMovingAverages())

	_, err = c.Classify()
	assert.ErrorIs(t, err, domain.ErrDataUnavailable, "price never loaded")

	market.priceErr = domain.ErrDataUnavailable
	_, err = c.RefreshPrice()
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	opts := DefaultOptions()
	opts.MaDays2 = 0
	assert.ErrorIs(t, opts.Validate(), domain.ErrInvalidConfig)

	opts = DefaultOptions()
	opts.Breakout2 = 1.5
	assert.ErrorIs(t, opts.Validate(), domain.ErrInvalidConfig)

	opts = DefaultOptions()
	opts.IndexSymbol = ""
	assert.ErrorIs(t, opts.Validate(), domain.ErrInvalidConfig)
}
