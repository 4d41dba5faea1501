package risk

// ProfitStatus watches one held instrument for a "took profit, then gave it back" pattern.
//
// The high line (not inverted) is active from creation. Once it has been crossed the
// low line (inverted) is armed. The signal is raised on an update where the profit is
// not above the high line and the armed low line has been crossed, i.e. the profit
// peaked above High and then fell below Low.
type ProfitStatus struct {
	Symbol string     `json:"symbol"`
	High   *WaterLine `json:"high"`
	Low    *WaterLine `json:"low"`

	signalRaised bool
	lastProfit   float64
	updates      int
}

// NewProfitStatus creates the status for symbol with the given profit lines
func NewProfitStatus(symbol string, highLine, lowLine float64) *ProfitStatus {
	return &ProfitStatus{
		Symbol: symbol,
		High:   NewWaterLine(highLine, false, true),
		Low:    NewWaterLine(lowLine, true, false),
	}
}

// Update feeds the latest profit and returns whether the give-back signal is raised.
// When clearAfter is set and the signal fired, both lines are re-armed after the
// signal has been computed (high active, low inactive) so that a consumed signal
// does not fire again.
func (p *ProfitStatus) Update(profit float64, clearAfter bool) bool {
	freshPeak := p.High.Active && p.High.Crosses(profit)

	p.High.Update(profit)
	if p.High.IsHit {
		p.Low.Active = true
	}
	p.Low.Update(profit)

	p.signalRaised = !freshPeak && p.Low.IsHit
	p.lastProfit = profit
	p.updates++

	raised := p.signalRaised
	if clearAfter && raised {
		p.Clear()
	}
	return raised
}

// IsSignalRaised returns the signal computed by the last Update, optionally clearing state
func (p *ProfitStatus) IsSignalRaised(clear bool) bool {
	raised := p.signalRaised
	if clear {
		p.Clear()
	}
	return raised
}

// Clear re-arms the high line and disarms the low line
func (p *ProfitStatus) Clear() {
	p.High.Reset(true)
	p.Low.Reset(false)
	p.signalRaised = false
}

// Snapshot is a read-only copy of the status for reporting
type Snapshot struct {
	Symbol       string    `json:"symbol"`
	High         WaterLine `json:"high"`
	Low          WaterLine `json:"low"`
	SignalRaised bool      `json:"signal_raised"`
	LastProfit   float64   `json:"last_profit"`
	Updates      int       `json:"updates"`
}

// Snapshot returns a copy of the current state
func (p *ProfitStatus) Snapshot() Snapshot {
	return Snapshot{
		Symbol:       p.Symbol,
		High:         *p.High,
		Low:          *p.Low,
		SignalRaised: p.signalRaised,
		LastProfit:   p.lastProfit,
		Updates:      p.updates,
	}
}
