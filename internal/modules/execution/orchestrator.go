// Package execution drives the per-cycle decision flow: regime, exits, selection and allocation.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xfw5/Market-Research/internal/domain"
	"github.com/xfw5/Market-Research/internal/events"
	"github.com/xfw5/Market-Research/internal/market_regime"
	"github.com/xfw5/Market-Research/internal/modules/allocation"
	"github.com/xfw5/Market-Research/internal/modules/risk"
	"github.com/xfw5/Market-Research/internal/modules/selection"
)

// ErrCycleInProgress is returned when a cycle is requested while another one runs
var ErrCycleInProgress = errors.New("decision cycle already in progress")

// UniverseSource lists the symbols considered for selection
type UniverseSource interface {
	Universe() ([]string, error)
}

// CycleCache is a per-cycle memo over market data, cleared at cycle start
type CycleCache interface {
	Reset()
}

// Dependencies wires the orchestrator. Cache, Events and Metrics are optional.
type Dependencies struct {
	Classifier *market_regime.RegimeClassifier
	History    *market_regime.RegimeHistory
	Pipeline   *selection.Pipeline
	Allocator  *allocation.CapitalAllocator
	Monitor    *risk.ProfitMonitor
	Portfolio  domain.Portfolio
	Universe   UniverseSource
	Clock      domain.Clock
	Cache      CycleCache
	Events     *events.Bus
	Metrics    *Metrics
}

// Orchestrator runs decision cycles. At most one cycle runs at a time.
type Orchestrator struct {
	deps Dependencies
	log  zerolog.Logger

	running atomic.Bool

	mu       sync.RWMutex
	last     *CycleReport
	cycles   int
	lastZone market_regime.Zone
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(deps Dependencies, log zerolog.Logger) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	if deps.History == nil {
		deps.History = market_regime.NewRegimeHistory(0)
	}

	o := &Orchestrator{
		deps:     deps,
		log:      log.With().Str("service", "orchestrator").Logger(),
		lastZone: market_regime.ZoneUnknown,
	}

	if warning := deps.Allocator.StartingCashWarning(); warning != "" {
		o.log.Warn().Msg(warning)
	}
	return o
}

// RefreshMovingAverages reloads the index averages. Scheduled once per trading day.
func (o *Orchestrator) RefreshMovingAverages() error {
	if err := o.deps.Classifier.RefreshMovingAverages(); err != nil {
		return err
	}
	if o.deps.Events != nil {
		ma1, ma2 := o.deps.Classifier.MovingAverages()
		o.deps.Events.EmitTyped("orchestrator", &events.MovingAveragesRefreshedData{
			Index: o.deps.Classifier.Options().IndexSymbol,
			MA1:   ma1,
			MA2:   ma2,
		})
	}
	return nil
}

// RunCycle executes one decision cycle:
//
//  1. refresh the index price and classify the regime
//  2. bearish: sell everything and stop
//  3. otherwise sweep held positions through the exit rules
//  4. when the regime allows it, select and rank candidates and move toward the target exposure
//
// An unclassifiable regime still runs the sweep so exits are never skipped. The
// neutral zone runs the sweep only, unless the classifier is set to reduce there.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer o.running.Store(false)

	report := &CycleReport{
		ID:        uuid.New().String(),
		StartedAt: o.deps.Clock.Now(),
	}
	log := o.log.With().Str("cycle_id", report.ID).Logger()

	if o.deps.Cache != nil {
		o.deps.Cache.Reset()
	}
	o.deps.Allocator.BeginCycle()

	regime, err := o.classify()
	report.Regime = regime

	switch {
	case err != nil:
		report.addError(err)
		log.Warn().Err(err).Msg("Regime unavailable, running exits only")
		o.sweep(report)
		report.Outcome = OutcomeSweepOnly

	case regime.IsTerminal():
		o.deps.History.Record(regime)
		liquidation := o.deps.Allocator.SellOffAll()
		report.Liquidation = &liquidation
		report.Outcome = OutcomeLiquidated
		log.Warn().
			Int("closed", liquidation.Closed).
			Int("orders", len(liquidation.Orders)).
			Msg("Bearish regime, portfolio liquidated")

	default:
		o.deps.History.Record(regime)
		o.sweep(report)
		report.Outcome = OutcomeAllocated

		if ctx.Err() != nil {
			report.addError(ctx.Err())
			report.Outcome = OutcomeAborted
			break
		}
		if !regime.AllowsAllocation() {
			report.Outcome = OutcomeSweepOnly
			break
		}
		o.allocate(report, regime, log)
	}

	report.Reconciled = append(report.Reconciled,
		o.deps.Monitor.Reconcile(domain.HeldSymbols(o.deps.Portfolio.Positions())))
	report.Exposure = o.deps.Allocator.UpdateExposure()
	report.FinishedAt = o.deps.Clock.Now()

	o.finish(report)

	log.Info().
		Str("outcome", string(report.Outcome)).
		Str("zone", string(report.Regime.Zone)).
		Float64("target", report.Regime.Target).
		Float64("exposure", report.Exposure).
		Int("orders", len(report.Orders())).
		Int("errors", len(report.Errors)).
		Msg("Decision cycle completed")

	return report, nil
}

func (o *Orchestrator) classify() (market_regime.Regime, error) {
	if _, err := o.deps.Classifier.RefreshPrice(); err != nil {
		return market_regime.Regime{Zone: market_regime.ZoneUnknown, ClassifiedAt: o.deps.Clock.Now()}, err
	}
	return o.deps.Classifier.Classify()
}

func (o *Orchestrator) sweep(report *CycleReport) {
	sweep := o.deps.Allocator.StopLossSweep()
	report.Sweep = &sweep
}

func (o *Orchestrator) allocate(report *CycleReport, regime market_regime.Regime, log zerolog.Logger) {
	universe, err := o.deps.Universe.Universe()
	if err != nil {
		report.addError(fmt.Errorf("load universe: %w", err))
		log.Error().Err(err).Msg("Universe unavailable, skipping allocation")
		return
	}

	selected := o.deps.Pipeline.SelectEligible(universe, o.deps.Clock.Now())
	held := domain.HeldSymbols(o.deps.Portfolio.Positions())
	buy := o.deps.Pipeline.FilterBuyCandidates(selected.Eligible, held)
	ranked := selection.Rank(buy.Candidates, o.deps.Pipeline.OrderInOptions().ChangePercentDesire)

	summary := &SelectionSummary{
		Universe:   len(universe),
		Eligible:   len(selected.Eligible),
		Candidates: ranked,
	}
	summary.countDrops(selected.Dropped)
	summary.countDrops(buy.Dropped)
	report.Selection = summary

	result := o.deps.Allocator.TryReachTarget(regime.Target, regime.Bullish, ranked)
	report.Allocation = &result
}

// finish stores the report, updates metrics and publishes events
func (o *Orchestrator) finish(report *CycleReport) {
	o.mu.Lock()
	o.last = report
	o.cycles++
	previous := o.lastZone
	if report.Regime.Zone != market_regime.ZoneUnknown {
		o.lastZone = report.Regime.Zone
	}
	o.mu.Unlock()

	o.deps.Metrics.Observe(report, o.deps.Monitor.Len())

	bus := o.deps.Events
	if bus == nil {
		return
	}

	r := report.Regime
	if r.Zone != market_regime.ZoneUnknown && r.Zone != previous {
		bus.EmitTyped("orchestrator", &events.RegimeChangedData{
			From:    string(previous),
			To:      string(r.Zone),
			Price:   r.Price,
			MA1:     r.MA1,
			MA2:     r.MA2,
			Target:  r.Target,
			Bullish: r.Bullish,
		})
	}

	opened, closed := 0, 0
	for _, rec := range report.Orders() {
		if !rec.Filled() {
			continue
		}
		bus.EmitTyped("orchestrator", &events.OrderFilledData{
			CycleID:  report.ID,
			OrderID:  rec.Result.OrderID,
			Symbol:   rec.Symbol,
			Side:     string(rec.Result.Side),
			Quantity: int64(rec.Result.FilledQty),
			Price:    rec.Result.Price,
			Reason:   string(rec.Reason),
		})
		if rec.Action == allocation.ActionOpen {
			opened++
			continue
		}
		closed++
		bus.EmitTyped("orchestrator", &events.PositionExitedData{
			CycleID: report.ID,
			Symbol:  rec.Symbol,
			Reason:  string(rec.Reason),
		})
	}

	bus.EmitTyped("orchestrator", &events.CycleCompletedData{
		CycleID:    report.ID,
		Outcome:    string(report.Outcome),
		Zone:       string(r.Zone),
		Target:     r.Target,
		Exposure:   report.Exposure,
		Opened:     opened,
		Closed:     closed,
		Errors:     len(report.Errors),
		DurationMs: report.Duration().Milliseconds(),
	})
}

// Status is a point-in-time view of the orchestrator
type Status struct {
	Running     bool                 `json:"running"`
	Cycles      int                  `json:"cycles"`
	Regime      market_regime.Regime `json:"regime"`
	Exposure    float64              `json:"exposure"`
	Monitored   int                  `json:"monitored"`
	LastCycle   *CycleReport         `json:"last_cycle,omitempty"`
	Positions   []domain.Position    `json:"positions"`
	Cash        float64              `json:"cash"`
	UsedCapital float64              `json:"used_capital"`
}

// Status returns the current state
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	last, cycles := o.last, o.cycles
	o.mu.RUnlock()

	return Status{
		Running:     o.running.Load(),
		Cycles:      cycles,
		Regime:      o.deps.Classifier.Last(),
		Exposure:    o.deps.Allocator.Exposure(),
		Monitored:   o.deps.Monitor.Len(),
		LastCycle:   last,
		Positions:   o.deps.Portfolio.Positions(),
		Cash:        o.deps.Portfolio.Cash(),
		UsedCapital: o.deps.Portfolio.UsedCapital(),
	}
}

// LastReport returns the most recent cycle report, nil before the first cycle
func (o *Orchestrator) LastReport() *CycleReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

// History returns the regime history
func (o *Orchestrator) History() *market_regime.RegimeHistory {
	return o.deps.History
}

// Monitor returns the profit monitor
func (o *Orchestrator) Monitor() *risk.ProfitMonitor {
	return o.deps.Monitor
}
