package execution

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xfw5/Market-Research/internal/domain"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// fakeMarket serves every market value from maps; a missing key is ErrDataUnavailable
type fakeMarket struct {
	prices      map[string]float64
	mas         map[string]float64 // "symbol/window"
	instruments map[string]domain.Instrument
	caps        map[string]float64
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		prices:      make(map[string]float64),
		mas:         make(map[string]float64),
		instruments: make(map[string]domain.Instrument),
		caps:        make(map[string]float64),
	}
}

// stock registers a tradable instrument closing at close after preClose
func (m *fakeMarket) stock(symbol string, close, preClose, ma float64) {
	m.prices[symbol] = close
	m.mas[fmt.Sprintf("%s/%d", symbol, 5)] = ma
	m.instruments[symbol] = domain.Instrument{
		Symbol:    symbol,
		Close:     close,
		PreClose:  preClose,
		DayOpen:   preClose,
		HighLimit: preClose * 1.1,
		LowLimit:  preClose * 0.9,
		MarketCap: 100,
	}
	m.caps[symbol] = 100
}

func (m *fakeMarket) index(symbol string, price, ma20, ma60 float64) {
	if price > 0 {
		m.prices[symbol] = price
	}
	m.mas[symbol+"/20"] = ma20
	m.mas[symbol+"/60"] = ma60
}

func (m *fakeMarket) CurrentPrice(symbol string) (float64, error) {
	if p, ok := m.prices[symbol]; ok {
		return p, nil
	}
	return 0, domain.ErrDataUnavailable
}

func (m *fakeMarket) MovingAverage(symbol string, window int, _ domain.PriceField) (float64, error) {
	if v, ok := m.mas[fmt.Sprintf("%s/%d", symbol, window)]; ok {
		return v, nil
	}
	return 0, domain.ErrDataUnavailable
}

func (m *fakeMarket) PriceLimits(symbol string) (float64, float64, float64, error) {
	inst, ok := m.instruments[symbol]
	if !ok {
		return 0, 0, 0, domain.ErrDataUnavailable
	}
	return inst.HighLimit, inst.LowLimit, inst.DayOpen, nil
}

func (m *fakeMarket) Instrument(symbol string) (domain.Instrument, error) {
	inst, ok := m.instruments[symbol]
	if !ok {
		return domain.Instrument{}, domain.ErrDataUnavailable
	}
	return inst, nil
}

func (m *fakeMarket) IsSuspended(string) (bool, error) { return false, nil }
func (m *fakeMarket) IsST(string) (bool, error)        { return false, nil }

func (m *fakeMarket) MarketCap(symbol string, _ time.Time) (float64, error) {
	if v, ok := m.caps[symbol]; ok {
		return v, nil
	}
	return 0, domain.ErrDataUnavailable
}

type staticUniverse []string

func (u staticUniverse) Universe() ([]string, error) { return u, nil }

type failingUniverse struct{}

func (failingUniverse) Universe() ([]string, error) {
	return nil, fmt.Errorf("universe table empty: %w", domain.ErrDataUnavailable)
}

// fakeBook fills orders in whole lots of 100 at the market price
type fakeBook struct {
	market    *fakeMarket
	cash      float64
	positions map[string]*domain.Position
}

func newFakeBook(market *fakeMarket, cash float64) *fakeBook {
	return &fakeBook{market: market, cash: cash, positions: make(map[string]*domain.Position)}
}

func (b *fakeBook) hold(symbol string, qty, avgCost float64) {
	b.positions[symbol] = &domain.Position{Symbol: symbol, Quantity: qty, AverageCost: avgCost}
}

func (b *fakeBook) mark(p domain.Position) domain.Position {
	if price, ok := b.market.prices[p.Symbol]; ok {
		p.CurrentPrice = price
	}
	return p
}

func (b *fakeBook) Cash() float64 { return b.cash }

func (b *fakeBook) UsedCapital() float64 {
	used := 0.0
	for _, p := range b.positions {
		used += b.mark(*p).MarketValue()
	}
	return used
}

func (b *fakeBook) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, b.mark(*p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (b *fakeBook) SubmitTargetValueOrder(symbol string, notional float64) (*domain.OrderResult, error) {
	price, err := b.market.CurrentPrice(symbol)
	if err != nil {
		return nil, err
	}
	qty := math.Floor(notional/price/100) * 100
	if qty < 100 || qty*price > b.cash {
		return &domain.OrderResult{Symbol: symbol, Side: domain.OrderSideBuy, Status: domain.OrderStatusRejected}, nil
	}
	b.cash -= qty * price
	b.hold(symbol, qty, price)
	return &domain.OrderResult{
		OrderID:   "buy-" + symbol,
		Symbol:    symbol,
		Side:      domain.OrderSideBuy,
		Status:    domain.OrderStatusFilled,
		FilledQty: qty,
		Price:     price,
	}, nil
}

func (b *fakeBook) SubmitCloseOrder(symbol string) (*domain.OrderResult, error) {
	pos, ok := b.positions[symbol]
	if !ok {
		return &domain.OrderResult{Symbol: symbol, Side: domain.OrderSideSell, Status: domain.OrderStatusRejected}, nil
	}
	marked := b.mark(*pos)
	b.cash += marked.MarketValue()
	delete(b.positions, symbol)
	return &domain.OrderResult{
		OrderID:   "sell-" + symbol,
		Symbol:    symbol,
		Side:      domain.OrderSideSell,
		Status:    domain.OrderStatusFilled,
		FilledQty: marked.Quantity,
		Price:     marked.CurrentPrice,
	}, nil
}

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
