package allocation

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/xfw5/Market-Research/internal/domain"
	"github.com/xfw5/Market-Research/internal/modules/risk"
	"github.com/xfw5/Market-Research/internal/modules/selection"
)

// CapitalAllocator moves the portfolio toward a target exposure.
//
// Exposure is used capital / (used capital + cash). Accumulation spreads the missing
// cash over ranked candidates subject to the per-cycle opening cap; liquidation closes
// the highest-gain positions first. The stop-loss sweep runs independently of the
// target and may exit any held position.
type CapitalAllocator struct {
	opts      Options
	sizer     OrderSizer
	portfolio domain.Portfolio
	gateway   domain.OrderGateway
	market    domain.MarketData
	monitor   *risk.ProfitMonitor
	log       zerolog.Logger

	mu       sync.Mutex
	exposure float64
	exited   map[string]bool // Symbols closed by exit rules this cycle
	swept    bool            // A stop-loss sweep already ran this cycle
}

// NewCapitalAllocator creates an allocator
func NewCapitalAllocator(
	opts Options,
	portfolio domain.Portfolio,
	gateway domain.OrderGateway,
	market domain.MarketData,
	monitor *risk.ProfitMonitor,
	log zerolog.Logger,
) *CapitalAllocator {
	return &CapitalAllocator{
		opts:      opts,
		sizer:     NewOrderSizer(opts),
		portfolio: portfolio,
		gateway:   gateway,
		market:    market,
		monitor:   monitor,
		log:       log.With().Str("component", "capital_allocator").Logger(),
		exited:    make(map[string]bool),
	}
}

// Options returns the allocator options
func (a *CapitalAllocator) Options() Options {
	return a.opts
}

// BeginCycle forgets the symbols exited during the previous cycle
func (a *CapitalAllocator) BeginCycle() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exited = make(map[string]bool)
	a.swept = false
}

// UpdateExposure recomputes exposure from the portfolio and returns it.
// Exposure is 0 when the account has neither cash nor positions.
func (a *CapitalAllocator) UpdateExposure() float64 {
	used := a.portfolio.UsedCapital()
	cash := a.portfolio.Cash()

	exposure := 0.0
	if total := used + cash; total > 0 {
		exposure = used / total
	}

	a.mu.Lock()
	a.exposure = exposure
	a.mu.Unlock()
	return exposure
}

// Exposure returns the last computed exposure
func (a *CapitalAllocator) Exposure() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exposure
}

// StartingCashWarning returns a non-empty message when the per-instrument budget
// cannot buy a sensible number of lots at typical prices
func (a *CapitalAllocator) StartingCashWarning() string {
	cash := a.portfolio.Cash() + a.portfolio.UsedCapital()
	perInstrument := cash / float64(a.opts.TotalSlots) * float64(a.opts.SlotsPerInstrument)
	minimum := float64(500 * a.opts.LotSize)
	if perInstrument < minimum {
		return fmt.Sprintf("per-instrument budget %.2f is below %.2f; orders may fail to fill a single lot",
			perInstrument, minimum)
	}
	return ""
}

func (a *CapitalAllocator) sweptThisCycle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.swept
}

func (a *CapitalAllocator) markExited(symbol string) {
	a.mu.Lock()
	a.exited[symbol] = true
	a.mu.Unlock()
}

func (a *CapitalAllocator) wasExited(symbol string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exited[symbol]
}

// TryReachTarget moves exposure toward target.
// Reduces exposure only when the regime is not bullish and increases it only when it is.
func (a *CapitalAllocator) TryReachTarget(target float64, bullish bool, candidates []selection.Candidate) Report {
	exposure := a.UpdateExposure()
	report := Report{
		ExposureBefore: exposure,
		Target:         target,
		Bullish:        bullish,
	}

	switch {
	case IsWithinTolerance(exposure, target, a.opts.PositionTolerance):
		report.Stop = StopTargetReached
	case exposure > target && !bullish:
		a.liquidate(target, &report)
	case exposure < target && bullish:
		a.accumulate(target, candidates, &report)
	}

	report.ExposureAfter = a.UpdateExposure()

	a.log.Info().
		Float64("target", target).
		Bool("bullish", bullish).
		Float64("exposure_before", report.ExposureBefore).
		Float64("exposure_after", report.ExposureAfter).
		Int("opened", report.Opened).
		Int("closed", report.Closed).
		Str("stop", string(report.Stop)).
		Msg("Allocation attempt complete")

	return report
}

// cashPerInstrument returns the notional budget for one new position
func (a *CapitalAllocator) cashPerInstrument(target, exposure float64) float64 {
	capital := a.portfolio.UsedCapital() + a.portfolio.Cash()
	desired := capital * (target - exposure)
	perInstrument := desired / float64(a.opts.OpeningsPerCycle)

	if a.opts.SizingPolicy == SizingSlots {
		slotBudget := capital / float64(a.opts.TotalSlots) * float64(a.opts.SlotsPerInstrument)
		if slotBudget < perInstrument {
			perInstrument = slotBudget
		}
	}
	return perInstrument
}

// shouldStop evaluates the accumulation stop conditions in the configured order
func (a *CapitalAllocator) shouldStop(exposure, target float64, opened int) StopReason {
	reached := IsWithinTolerance(exposure, target, a.opts.PositionTolerance) || exposure >= target
	capped := opened >= a.opts.OpeningsPerCycle

	if a.opts.TerminationOrder == TerminationOpeningsFirst {
		if capped {
			return StopOpeningCap
		}
		if reached {
			return StopTargetReached
		}
		return StopNone
	}

	if reached {
		return StopTargetReached
	}
	if capped {
		return StopOpeningCap
	}
	return StopNone
}

func (a *CapitalAllocator) accumulate(target float64, candidates []selection.Candidate, report *Report) {
	if a.portfolio.UsedCapital()+a.portfolio.Cash() <= 0 {
		report.Stop = StopNoCapital
		a.log.Warn().Msg("No capital available, skipping allocation")
		return
	}
	if len(candidates) == 0 {
		report.Stop = StopNoCandidates
		return
	}

	budget := a.cashPerInstrument(target, report.ExposureBefore)
	held := domain.HeldSymbols(a.portfolio.Positions())
	exposure := report.ExposureBefore
	opened := 0

	for _, c := range candidates {
		if stop := a.shouldStop(exposure, target, opened); stop != StopNone {
			report.Stop = stop
			break
		}

		if held[c.Symbol] || a.wasExited(c.Symbol) {
			report.Skipped = append(report.Skipped, c.Symbol)
			continue
		}

		rec, ok := a.open(c, budget)
		if !ok {
			report.Skipped = append(report.Skipped, c.Symbol)
			continue
		}

		report.add(rec)
		if rec.Filled() {
			opened++
			held[c.Symbol] = true
		}
		exposure = a.UpdateExposure()
	}

	if report.Stop == StopNone {
		report.Stop = a.shouldStop(exposure, target, opened)
	}

	a.monitor.Reconcile(domain.HeldSymbols(a.portfolio.Positions()))
}

// open sizes and submits one buy. Returns false when nothing was submitted.
func (a *CapitalAllocator) open(c selection.Candidate, budget float64) (OrderRecord, bool) {
	price := c.Price
	if current, err := a.market.CurrentPrice(c.Symbol); err == nil && current > 0 {
		price = current
	}

	notional, err := a.sizer.Clamp(price, budget, a.portfolio.Cash())
	if err != nil {
		a.log.Debug().
			Err(err).
			Str("symbol", c.Symbol).
			Float64("price", price).
			Float64("budget", budget).
			Msg("Skipping candidate")
		return OrderRecord{}, false
	}

	rec := OrderRecord{
		Symbol:   c.Symbol,
		Action:   ActionOpen,
		Notional: notional,
	}

	result, err := a.gateway.SubmitTargetValueOrder(c.Symbol, notional)
	rec.Result = result
	if err != nil {
		rec.Error = err.Error()
		a.log.Error().Err(err).Str("symbol", c.Symbol).Float64("notional", notional).Msg("Buy order failed")
		return rec, true
	}

	if !result.IsFilled() {
		a.log.Warn().Str("symbol", c.Symbol).Float64("notional", notional).Msg("Buy order not filled")
		return rec, true
	}

	a.log.Info().
		Str("symbol", c.Symbol).
		Float64("notional", notional).
		Float64("filled_qty", result.FilledQty).
		Float64("price", result.Price).
		Float64("score", c.Score).
		Msg("Position opened")
	return rec, true
}

func (a *CapitalAllocator) liquidate(target float64, report *Report) {
	positions := sortByGain(a.portfolio.Positions(), false)
	exposure := report.ExposureBefore

	for _, pos := range positions {
		if exposure <= target || IsWithinTolerance(exposure, target, a.opts.PositionTolerance) {
			report.Stop = StopTargetReached
			break
		}

		report.add(a.close(pos.Symbol, ExitReduceExposure))
		exposure = a.UpdateExposure()
	}

	// Positions that survive liquidation are still subject to the exit rules,
	// unless this cycle's sweep has already fed their profit status
	if !a.sweptThisCycle() {
		report.merge(a.StopLossSweep())
	}
}

func (a *CapitalAllocator) close(symbol string, reason ExitReason) OrderRecord {
	rec := OrderRecord{
		Symbol: symbol,
		Action: ActionClose,
		Reason: reason,
	}

	result, err := a.gateway.SubmitCloseOrder(symbol)
	rec.Result = result
	if err != nil {
		rec.Error = err.Error()
		a.log.Error().Err(err).Str("symbol", symbol).Str("reason", string(reason)).Msg("Close order failed")
		return rec
	}
	if !result.IsFilled() {
		a.log.Warn().Str("symbol", symbol).Str("reason", string(reason)).Msg("Close order not filled")
		return rec
	}

	a.markExited(symbol)
	a.log.Info().
		Str("symbol", symbol).
		Str("reason", string(reason)).
		Float64("filled_qty", result.FilledQty).
		Float64("price", result.Price).
		Msg("Position closed")
	return rec
}

// sortByGain returns a copy of positions ordered by unrealized gain,
// descending unless ascending is set. Symbol breaks ties.
func sortByGain(positions []domain.Position, ascending bool) []domain.Position {
	out := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		if p.Quantity > 0 {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		gi, gj := out[i].UnrealizedGain(), out[j].UnrealizedGain()
		if gi == gj {
			return out[i].Symbol < out[j].Symbol
		}
		if ascending {
			return gi < gj
		}
		return gi > gj
	})
	return out
}

// isDataUnavailable reports whether err is a missing-data error
func isDataUnavailable(err error) bool {
	return errors.Is(err, domain.ErrDataUnavailable)
}
