package selection

import (
	"fmt"
	"time"

	"github.com/xfw5/Market-Research/internal/domain"
)

type fakeInstrument struct {
	inst domain.Instrument
	ma   float64
	noMA bool
}

type fakeMarket struct {
	instruments map[string]fakeInstrument
}

func newFakeMarket(items ...fakeInstrument) *fakeMarket {
	m := &fakeMarket{instruments: make(map[string]fakeInstrument)}
	for _, it := range items {
		m.instruments[it.inst.Symbol] = it
	}
	return m
}

func (m *fakeMarket) get(symbol string) (fakeInstrument, error) {
	it, ok := m.instruments[symbol]
	if !ok {
		return fakeInstrument{}, fmt.Errorf("%s: %w", symbol, domain.ErrDataUnavailable)
	}
	return it, nil
}

func (m *fakeMarket) CurrentPrice(symbol string) (float64, error) {
	it, err := m.get(symbol)
	if err != nil {
		return 0, err
	}
	return it.inst.Close, nil
}

func (m *fakeMarket) MovingAverage(symbol string, window int, field domain.PriceField) (float64, error) {
	it, err := m.get(symbol)
	if err != nil {
		return 0, err
	}
	if it.noMA {
		return 0, domain.ErrDataUnavailable
	}
	return it.ma, nil
}

func (m *fakeMarket) PriceLimits(symbol string) (float64, float64, float64, error) {
	it, err := m.get(symbol)
	if err != nil {
		return 0, 0, 0, err
	}
	return it.inst.HighLimit, it.inst.LowLimit, it.inst.DayOpen, nil
}

func (m *fakeMarket) Instrument(symbol string) (domain.Instrument, error) {
	it, err := m.get(symbol)
	if err != nil {
		return domain.Instrument{}, err
	}
	return it.inst, nil
}

func (m *fakeMarket) IsSuspended(symbol string) (bool, error) {
	it, err := m.get(symbol)
	if err != nil {
		return false, err
	}
	return it.inst.Suspended, nil
}

func (m *fakeMarket) IsST(symbol string) (bool, error) {
	it, err := m.get(symbol)
	if err != nil {
		return false, err
	}
	return it.inst.ST, nil
}

type fakeFundamentals struct {
	caps map[string]float64
}

func (f *fakeFundamentals) MarketCap(symbol string, date time.Time) (float64, error) {
	c, ok := f.caps[symbol]
	if !ok {
		return 0, domain.ErrDataUnavailable
	}
	return c, nil
}
