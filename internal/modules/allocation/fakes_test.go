package allocation

import (
	"fmt"
	"math"
	"sort"

	"github.com/stretchr/testify/mock"

	"github.com/xfw5/Market-Research/internal/domain"
)

// fakeBook is a minimal in-memory account that fills orders in whole lots of 100
type fakeBook struct {
	cash      float64
	positions map[string]*domain.Position
	prices    map[string]float64
	submitted []string
}

func newFakeBook(cash float64) *fakeBook {
	return &fakeBook{
		cash:      cash,
		positions: make(map[string]*domain.Position),
		prices:    make(map[string]float64),
	}
}

func (b *fakeBook) hold(symbol string, qty, avgCost, price float64) {
	b.positions[symbol] = &domain.Position{
		Symbol:       symbol,
		Quantity:     qty,
		AverageCost:  avgCost,
		CurrentPrice: price,
	}
	b.prices[symbol] = price
}

func (b *fakeBook) Cash() float64 { return b.cash }

func (b *fakeBook) UsedCapital() float64 {
	used := 0.0
	for _, p := range b.positions {
		used += p.MarketValue()
	}
	return used
}

func (b *fakeBook) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (b *fakeBook) SubmitTargetValueOrder(symbol string, notional float64) (*domain.OrderResult, error) {
	b.submitted = append(b.submitted, "buy:"+symbol)
	price, ok := b.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no price for %s: %w", symbol, domain.ErrDataUnavailable)
	}
	qty := math.Floor(notional/price/100) * 100
	if qty < 100 || qty*price > b.cash {
		return &domain.OrderResult{Symbol: symbol, Side: domain.OrderSideBuy, Status: domain.OrderStatusRejected}, nil
	}
	b.cash -= qty * price
	b.hold(symbol, qty, price, price)
	return &domain.OrderResult{
		Symbol:    symbol,
		Side:      domain.OrderSideBuy,
		Status:    domain.OrderStatusFilled,
		FilledQty: qty,
		Price:     price,
	}, nil
}

func (b *fakeBook) SubmitCloseOrder(symbol string) (*domain.OrderResult, error) {
	b.submitted = append(b.submitted, "sell:"+symbol)
	pos, ok := b.positions[symbol]
	if !ok {
		return &domain.OrderResult{Symbol: symbol, Side: domain.OrderSideSell, Status: domain.OrderStatusRejected}, nil
	}
	b.cash += pos.MarketValue()
	delete(b.positions, symbol)
	return &domain.OrderResult{
		Symbol:    symbol,
		Side:      domain.OrderSideSell,
		Status:    domain.OrderStatusFilled,
		FilledQty: pos.Quantity,
		Price:     pos.CurrentPrice,
	}, nil
}

// fakeMarket serves prices and moving averages from maps
type fakeMarket struct {
	prices map[string]float64
	mas    map[string]float64
}

func (m *fakeMarket) CurrentPrice(symbol string) (float64, error) {
	if p, ok := m.prices[symbol]; ok {
		return p, nil
	}
	return 0, domain.ErrDataUnavailable
}

func (m *fakeMarket) MovingAverage(symbol string, _ int, _ domain.PriceField) (float64, error) {
	if v, ok := m.mas[symbol]; ok {
		return v, nil
	}
	return 0, domain.ErrDataUnavailable
}

func (m *fakeMarket) PriceLimits(string) (float64, float64, float64, error) {
	return 0, 0, 0, nil
}

func (m *fakeMarket) Instrument(symbol string) (domain.Instrument, error) {
	return domain.Instrument{Symbol: symbol, Close: m.prices[symbol]}, nil
}

func (m *fakeMarket) IsSuspended(string) (bool, error) { return false, nil }
func (m *fakeMarket) IsST(string) (bool, error)        { return false, nil }

// MockGateway is a testify mock of domain.OrderGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SubmitTargetValueOrder(symbol string, notional float64) (*domain.OrderResult, error) {
	args := m.Called(symbol, notional)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderResult), args.Error(1)
}

func (m *MockGateway) SubmitCloseOrder(symbol string) (*domain.OrderResult, error) {
	args := m.Called(symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderResult), args.Error(1)
}
