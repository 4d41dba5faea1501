package execution

import (
	"time"

	"github.com/xfw5/Market-Research/internal/market_regime"
	"github.com/xfw5/Market-Research/internal/modules/allocation"
	"github.com/xfw5/Market-Research/internal/modules/risk"
	"github.com/xfw5/Market-Research/internal/modules/selection"
)

// Outcome summarises how a cycle ended
type Outcome string

const (
	OutcomeAllocated  Outcome = "allocated"  // Sweep and allocation ran
	OutcomeSweepOnly  Outcome = "sweep_only" // Regime unknown or neutral; exits only
	OutcomeLiquidated Outcome = "liquidated" // Bearish; everything sold
	OutcomeAborted    Outcome = "aborted"    // Context cancelled mid-cycle
)

// SelectionSummary counts the filter pipeline results
type SelectionSummary struct {
	Universe   int                          `json:"universe"`
	Eligible   int                          `json:"eligible"`
	Candidates []selection.Candidate        `json:"candidates"`
	Dropped    map[selection.DropReason]int `json:"dropped"`
}

func (s *SelectionSummary) countDrops(dropped map[string]selection.DropReason) {
	if s.Dropped == nil {
		s.Dropped = make(map[selection.DropReason]int)
	}
	for _, reason := range dropped {
		s.Dropped[reason]++
	}
}

// CycleReport is everything one cycle decided
type CycleReport struct {
	ID          string                 `json:"id"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at"`
	Outcome     Outcome                `json:"outcome"`
	Regime      market_regime.Regime   `json:"regime"`
	Selection   *SelectionSummary      `json:"selection,omitempty"`
	Sweep       *allocation.Report     `json:"sweep,omitempty"`
	Allocation  *allocation.Report     `json:"allocation,omitempty"`
	Liquidation *allocation.Report     `json:"liquidation,omitempty"`
	Reconciled  []risk.ReconcileResult `json:"reconciled"`
	Exposure    float64                `json:"exposure"`
	Errors      []string               `json:"errors,omitempty"`
}

// Orders returns every order record of the cycle in submission order
func (r *CycleReport) Orders() []allocation.OrderRecord {
	var out []allocation.OrderRecord
	for _, part := range []*allocation.Report{r.Liquidation, r.Sweep, r.Allocation} {
		if part != nil {
			out = append(out, part.Orders...)
		}
	}
	return out
}

func (r *CycleReport) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// Duration returns the wall time of the cycle
func (r *CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
