package allocation

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xfw5/Market-Research/internal/domain"
	"github.com/xfw5/Market-Research/internal/modules/risk"
	"github.com/xfw5/Market-Research/internal/modules/selection"
)

// staticPortfolio never changes, whatever the gateway does
type staticPortfolio struct {
	cash      float64
	positions []domain.Position
}

func (p *staticPortfolio) Cash() float64 { return p.cash }

func (p *staticPortfolio) UsedCapital() float64 {
	used := 0.0
	for _, pos := range p.positions {
		used += pos.MarketValue()
	}
	return used
}

func (p *staticPortfolio) Positions() []domain.Position { return p.positions }

func newTestAllocator(opts Options, portfolio domain.Portfolio, gateway domain.OrderGateway, market domain.MarketData) *CapitalAllocator {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	monitor := risk.NewProfitMonitor(risk.DefaultMonitorConfig(), log)
	return NewCapitalAllocator(opts, portfolio, gateway, market, monitor, log)
}

func candidatesAt(price float64, symbols ...string) []selection.Candidate {
	out := make([]selection.Candidate, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, selection.Candidate{Symbol: s, Price: price, Score: 3})
	}
	return out
}

func closedSymbols(r Report) []string {
	var out []string
	for _, rec := range r.Orders {
		if rec.Action == ActionClose && rec.Filled() {
			out = append(out, rec.Symbol)
		}
	}
	return out
}

func TestUpdateExposure(t *testing.T) {
	book := newFakeBook(0)
	alloc := newTestAllocator(DefaultOptions(), book, book, &fakeMarket{})
	assert.Equal(t, 0.0, alloc.UpdateExposure(), "empty account has zero exposure")

	book.cash = 60000
	book.hold("A", 4000, 10, 10)
	assert.InDelta(t, 0.4, alloc.UpdateExposure(), 1e-9)
	assert.InDelta(t, 0.4, alloc.Exposure(), 1e-9)
}

func TestTryReachTarget_AccumulatesUntilTarget(t *testing.T) {
	book := newFakeBook(100000)
	for _, s := range []string{"A", "B", "C"} {
		book.prices[s] = 10
	}
	market := &fakeMarket{prices: map[string]float64{"A": 10, "B": 10, "C": 10}}
	alloc := newTestAllocator(DefaultOptions(), book, book, market)

	report := alloc.TryReachTarget(0.6, true, candidatesAt(10, "A", "B", "C"))

	assert.Equal(t, 2, report.Opened)
	assert.Equal(t, StopTargetReached, report.Stop)
	assert.Equal(t, []string{"buy:A", "buy:B"}, book.submitted)
	assert.InDelta(t, 0.6, report.ExposureAfter, 1e-9)
	assert.InDelta(t, 30000, report.Orders[0].Notional, 1e-6)
}

func TestTryReachTarget_TerminationOrder(t *testing.T) {
	book := newFakeBook(100000)
	for _, s := range []string{"A", "B", "C"} {
		book.prices[s] = 10
	}
	opts := DefaultOptions()
	opts.TerminationOrder = TerminationOpeningsFirst
	alloc := newTestAllocator(opts, book, book, &fakeMarket{})

	report := alloc.TryReachTarget(0.6, true, candidatesAt(10, "A", "B", "C"))

	assert.Equal(t, 2, report.Opened)
	assert.Equal(t, StopOpeningCap, report.Stop, "cap is checked before exposure")
}

func TestTryReachTarget_SlotSizingHitsOpeningCap(t *testing.T) {
	book := newFakeBook(100000)
	for _, s := range []string{"A", "B", "C"} {
		book.prices[s] = 10
	}
	opts := DefaultOptions()
	opts.SizingPolicy = SizingSlots
	alloc := newTestAllocator(opts, book, book, &fakeMarket{})

	report := alloc.TryReachTarget(0.9, true, candidatesAt(10, "A", "B", "C"))

	assert.Equal(t, 2, report.Opened)
	assert.Equal(t, StopOpeningCap, report.Stop)
	assert.InDelta(t, 10000, report.Orders[0].Notional, 1e-6, "slot budget caps the order")
	assert.InDelta(t, 0.2, report.ExposureAfter, 1e-9)
}

func TestTryReachTarget_SkipsHeldCandidates(t *testing.T) {
	book := newFakeBook(90000)
	book.hold("A", 1000, 10, 10)
	book.prices["B"] = 10
	alloc := newTestAllocator(DefaultOptions(), book, book, &fakeMarket{})

	report := alloc.TryReachTarget(0.6, true, candidatesAt(10, "A", "B"))

	assert.Equal(t, 1, report.Opened)
	assert.Equal(t, []string{"A"}, report.Skipped)
	assert.Equal(t, []string{"buy:B"}, book.submitted)
	assert.Equal(t, StopNone, report.Stop)
	assert.InDelta(t, 0.35, report.ExposureAfter, 1e-9)
}

func TestTryReachTarget_SkipsSymbolsExitedThisCycle(t *testing.T) {
	book := newFakeBook(90000)
	book.hold("X", 1000, 10, 10)
	book.prices["B"] = 10
	market := &fakeMarket{
		prices: map[string]float64{"X": 10, "B": 10},
		mas:    map[string]float64{"X": 11},
	}
	alloc := newTestAllocator(DefaultOptions(), book, book, market)

	sweep := alloc.StopLossSweep()
	require.Equal(t, []string{"X"}, closedSymbols(sweep))

	report := alloc.TryReachTarget(0.6, true, candidatesAt(10, "X", "B"))
	assert.Equal(t, []string{"X"}, report.Skipped)
	assert.Equal(t, 1, report.Opened)

	alloc.BeginCycle()
	assert.False(t, alloc.wasExited("X"))
}

func TestTryReachTarget_WithinToleranceDoesNothing(t *testing.T) {
	book := newFakeBook(42000)
	book.hold("A", 5800, 10, 10)
	book.prices["B"] = 10
	alloc := newTestAllocator(DefaultOptions(), book, book, &fakeMarket{})

	report := alloc.TryReachTarget(0.6, true, candidatesAt(10, "B"))

	assert.Empty(t, report.Orders)
	assert.Equal(t, StopTargetReached, report.Stop)
}

func TestTryReachTarget_DirectionRequiresRegime(t *testing.T) {
	t.Run("no accumulation when not bullish", func(t *testing.T) {
		book := newFakeBook(100000)
		book.prices["A"] = 10
		alloc := newTestAllocator(DefaultOptions(), book, book, &fakeMarket{})

		report := alloc.TryReachTarget(0.6, false, candidatesAt(10, "A"))
		assert.Empty(t, report.Orders)
		assert.Empty(t, book.submitted)
	})

	t.Run("no liquidation when bullish", func(t *testing.T) {
		book := newFakeBook(20000)
		book.hold("A", 8000, 10, 10)
		alloc := newTestAllocator(DefaultOptions(), book, book, &fakeMarket{})

		report := alloc.TryReachTarget(0.6, true, nil)
		assert.Empty(t, report.Orders)
		assert.Empty(t, book.submitted)
	})
}

func TestTryReachTarget_NoCapital(t *testing.T) {
	book := newFakeBook(0)
	alloc := newTestAllocator(DefaultOptions(), book, book, &fakeMarket{})

	report := alloc.TryReachTarget(0.6, true, candidatesAt(10, "A"))
	assert.Equal(t, StopNoCapital, report.Stop)
	assert.Empty(t, book.submitted)
}

func TestTryReachTarget_NoCandidates(t *testing.T) {
	book := newFakeBook(100000)
	alloc := newTestAllocator(DefaultOptions(), book, book, &fakeMarket{})

	report := alloc.TryReachTarget(0.6, true, nil)
	assert.Equal(t, StopNoCandidates, report.Stop)
}

func TestTryReachTarget_LiquidatesHighestGainFirst(t *testing.T) {
	book := newFakeBook(40000)
	book.hold("A", 2000, 8, 10)
	book.hold("B", 2000, 10.2, 10)
	book.hold("C", 2000, 5, 10)
	market := &fakeMarket{
		prices: map[string]float64{"A": 10, "B": 10, "C": 10},
		mas:    map[string]float64{"A": 9, "B": 9, "C": 9},
	}
	alloc := newTestAllocator(DefaultOptions(), book, book, market)

	report := alloc.TryReachTarget(0.2, false, nil)

	assert.Equal(t, []string{"C", "A"}, closedSymbols(report))
	assert.Equal(t, StopTargetReached, report.Stop)
	assert.InDelta(t, 0.2, report.ExposureAfter, 1e-9)
	assert.Contains(t, book.positions, "B")
}

func TestStopLossSweep_ExitRules(t *testing.T) {
	book := newFakeBook(50000)
	book.hold("TREND", 100, 9, 10)
	book.hold("LOSS", 100, 11, 10)
	book.hold("KEEP", 100, 9.5, 10)
	book.hold("NOMA", 100, 10, 10)
	market := &fakeMarket{
		prices: map[string]float64{"TREND": 10, "LOSS": 10, "KEEP": 10, "NOMA": 10},
		mas:    map[string]float64{"TREND": 11, "LOSS": 9, "KEEP": 9},
	}
	alloc := newTestAllocator(DefaultOptions(), book, book, market)

	report := alloc.StopLossSweep()

	assert.ElementsMatch(t, []string{"TREND", "LOSS"}, closedSymbols(report))
	reasons := map[string]ExitReason{}
	for _, rec := range report.Orders {
		reasons[rec.Symbol] = rec.Reason
	}
	assert.Equal(t, ExitTrendBroken, reasons["TREND"])
	assert.Equal(t, ExitStopLoss, reasons["LOSS"])
	assert.Contains(t, book.positions, "KEEP")
	assert.Contains(t, book.positions, "NOMA", "missing moving average skips the trend check only")
}

func TestStopLossSweep_SmallLossUnderThresholdThenTrendBreak(t *testing.T) {
	opts := DefaultOptions()
	opts.StopLossThreshold = 0.0786

	book := newFakeBook(50000)
	book.hold("X", 100, 10, 9.5)
	market := &fakeMarket{
		prices: map[string]float64{"X": 9.5},
		mas:    map[string]float64{"X": 9},
	}
	alloc := newTestAllocator(opts, book, book, market)

	assert.Empty(t, alloc.StopLossSweep().Orders, "a 5% loss stays under a 7.86% threshold")
	assert.Contains(t, book.positions, "X")

	market.mas["X"] = 9.8
	report := alloc.StopLossSweep()
	require.Len(t, report.Orders, 1)
	assert.Equal(t, ExitTrendBroken, report.Orders[0].Reason)
	assert.NotContains(t, book.positions, "X")
}

func TestTryReachTarget_LiquidationReusesCycleSweep(t *testing.T) {
	book := newFakeBook(40000)
	book.hold("A", 2000, 8, 10)
	book.hold("B", 2000, 10.2, 10)
	book.hold("C", 2000, 5, 10)
	market := &fakeMarket{
		prices: map[string]float64{"A": 10, "B": 10, "C": 10},
		mas:    map[string]float64{"A": 9, "B": 9, "C": 9},
	}
	alloc := newTestAllocator(DefaultOptions(), book, book, market)
	updates := func(symbol string) int {
		for _, snap := range alloc.monitor.Snapshots() {
			if snap.Symbol == symbol {
				return snap.Updates
			}
		}
		return 0
	}

	alloc.BeginCycle()
	require.Empty(t, alloc.StopLossSweep().Orders)
	require.Equal(t, 1, updates("B"))

	report := alloc.TryReachTarget(0.2, false, nil)
	assert.Equal(t, []string{"C", "A"}, closedSymbols(report))
	assert.Equal(t, 1, updates("B"), "survivor is evaluated once per cycle")

	alloc.BeginCycle()
	book.hold("D", 2000, 5, 10)
	market.prices["D"], market.mas["D"] = 10, 9
	alloc.TryReachTarget(0.2, false, nil)
	assert.Equal(t, 2, updates("B"), "liquidation sweeps when the cycle has not")
}

func TestStopLossSweep_ProfitGiveBack(t *testing.T) {
	book := newFakeBook(50000)
	book.hold("P", 100, 100, 105)
	market := &fakeMarket{
		prices: map[string]float64{"P": 105},
		mas:    map[string]float64{"P": 90},
	}
	alloc := newTestAllocator(DefaultOptions(), book, book, market)

	assert.Empty(t, alloc.StopLossSweep().Orders, "profit 5 stays under both lines")

	market.prices["P"] = 118
	assert.Empty(t, alloc.StopLossSweep().Orders, "fresh peak above the high line")

	market.prices["P"] = 109
	report := alloc.StopLossSweep()
	require.Len(t, report.Orders, 1)
	assert.Equal(t, ExitProfitGiveBack, report.Orders[0].Reason)
	assert.Equal(t, 1, report.Closed)
}

func TestStopLossSweep_ErrorsAreIsolated(t *testing.T) {
	portfolio := &staticPortfolio{
		cash: 10000,
		positions: []domain.Position{
			{Symbol: "A", Quantity: 100, AverageCost: 10, CurrentPrice: 10},
			{Symbol: "B", Quantity: 100, AverageCost: 10, CurrentPrice: 10},
		},
	}
	market := &fakeMarket{
		prices: map[string]float64{"A": 10, "B": 10},
		mas:    map[string]float64{"A": 11, "B": 11},
	}
	gateway := new(MockGateway)
	gateway.On("SubmitCloseOrder", "A").Return(nil, errors.New("gateway down"))
	gateway.On("SubmitCloseOrder", "B").Return(&domain.OrderResult{
		Symbol:    "B",
		Side:      domain.OrderSideSell,
		Status:    domain.OrderStatusFilled,
		FilledQty: 100,
		Price:     10,
	}, nil)

	alloc := newTestAllocator(DefaultOptions(), portfolio, gateway, market)
	report := alloc.StopLossSweep()

	require.Len(t, report.Orders, 2)
	assert.Equal(t, "gateway down", report.Orders[0].Error)
	assert.Equal(t, 1, report.Closed)
	assert.True(t, alloc.wasExited("B"))
	assert.False(t, alloc.wasExited("A"))
	gateway.AssertExpectations(t)
}

func TestTryReachTarget_RejectedBuyDoesNotCount(t *testing.T) {
	portfolio := &staticPortfolio{cash: 100000}
	gateway := new(MockGateway)
	gateway.On("SubmitTargetValueOrder", "A", mock.Anything).
		Return(&domain.OrderResult{Symbol: "A", Status: domain.OrderStatusRejected}, nil)
	gateway.On("SubmitTargetValueOrder", "B", mock.Anything).
		Return(&domain.OrderResult{Symbol: "B", Status: domain.OrderStatusFilled, FilledQty: 3000, Price: 10}, nil)
	gateway.On("SubmitTargetValueOrder", "C", mock.Anything).
		Return(nil, domain.ErrOrderRejected)

	alloc := newTestAllocator(DefaultOptions(), portfolio, gateway, &fakeMarket{})
	report := alloc.TryReachTarget(0.6, true, candidatesAt(10, "A", "B", "C"))

	require.Len(t, report.Orders, 3)
	assert.Equal(t, 1, report.Opened)
	assert.NotEmpty(t, report.Orders[2].Error)
	gateway.AssertExpectations(t)
}

func TestSellOffs(t *testing.T) {
	setup := func() (*fakeBook, *CapitalAllocator) {
		book := newFakeBook(10000)
		book.hold("WIN", 100, 8, 10)
		book.hold("LOSE", 100, 11, 10)
		book.hold("FLAT", 100, 10, 10)
		return book, newTestAllocator(DefaultOptions(), book, book, &fakeMarket{})
	}

	t.Run("profitable", func(t *testing.T) {
		book, alloc := setup()
		report := alloc.SellOffProfitable()
		assert.Equal(t, []string{"WIN"}, closedSymbols(report))
		assert.Len(t, book.positions, 2)
	})

	t.Run("losing", func(t *testing.T) {
		book, alloc := setup()
		report := alloc.SellOffLosing()
		assert.Equal(t, []string{"LOSE"}, closedSymbols(report))
		assert.Len(t, book.positions, 2)
	})

	t.Run("all", func(t *testing.T) {
		book, alloc := setup()
		report := alloc.SellOffAll()
		assert.Equal(t, []string{"WIN", "FLAT", "LOSE"}, closedSymbols(report))
		assert.Empty(t, book.positions)
		assert.Equal(t, 0.0, report.ExposureAfter)
	})
}

func TestStartingCashWarning(t *testing.T) {
	book := newFakeBook(40000)
	alloc := newTestAllocator(DefaultOptions(), book, book, &fakeMarket{})
	assert.NotEmpty(t, alloc.StartingCashWarning(), "4000 per instrument")

	book.cash = 100000
	assert.NotEmpty(t, alloc.StartingCashWarning(), "10000 per instrument is below 500 lots")

	book.cash = 500000
	assert.Empty(t, alloc.StartingCashWarning(), "exactly 500 lots per instrument")

	book.cash = 1000000
	assert.Empty(t, alloc.StartingCashWarning())
}
