package risk

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// MonitorConfig holds the profit lines applied to every new ProfitStatus
type MonitorConfig struct {
	ProfitLineHigh float64
	ProfitLineLow  float64
}

// DefaultMonitorConfig returns the default profit lines (15 / 10)
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		ProfitLineHigh: 15,
		ProfitLineLow:  10,
	}
}

// ReconcileResult lists the symbols that were added to and dropped from the monitor
type ReconcileResult struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// ProfitMonitor owns one ProfitStatus per held instrument.
// All access goes through mu so that status readers can run alongside a cycle.
type ProfitMonitor struct {
	cfg MonitorConfig
	log zerolog.Logger

	mu       sync.RWMutex
	statuses map[string]*ProfitStatus
}

// NewProfitMonitor creates an empty monitor
func NewProfitMonitor(cfg MonitorConfig, log zerolog.Logger) *ProfitMonitor {
	return &ProfitMonitor{
		cfg:      cfg,
		log:      log.With().Str("component", "profit_monitor").Logger(),
		statuses: make(map[string]*ProfitStatus),
	}
}

// Reconcile diffs the held symbol set against the monitor's key set:
// creates statuses for newly held symbols and drops those no longer held.
func (m *ProfitMonitor) Reconcile(held map[string]bool) ReconcileResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result ReconcileResult
	for symbol := range held {
		if _, ok := m.statuses[symbol]; ok {
			continue
		}
		m.statuses[symbol] = NewProfitStatus(symbol, m.cfg.ProfitLineHigh, m.cfg.ProfitLineLow)
		result.Added = append(result.Added, symbol)
	}
	for symbol := range m.statuses {
		if !held[symbol] {
			delete(m.statuses, symbol)
			result.Removed = append(result.Removed, symbol)
		}
	}

	sort.Strings(result.Added)
	sort.Strings(result.Removed)

	if len(result.Added) > 0 || len(result.Removed) > 0 {
		m.log.Debug().
			Strs("added", result.Added).
			Strs("removed", result.Removed).
			Msg("Profit monitor reconciled")
	}
	return result
}

// Update feeds profit into the symbol's status. Returns false when the symbol is not monitored.
func (m *ProfitMonitor) Update(symbol string, profit float64, clearAfter bool) (raised bool, monitored bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.statuses[symbol]
	if !ok {
		return false, false
	}

	raised = status.Update(profit, clearAfter)
	if raised {
		m.log.Warn().
			Str("symbol", symbol).
			Float64("profit", profit).
			Float64("peak", status.High.HighestHit).
			Msg("Profit give-back signal raised")
	}
	return raised, true
}

// Has reports whether symbol is monitored
func (m *ProfitMonitor) Has(symbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.statuses[symbol]
	return ok
}

// Len returns the number of monitored symbols
func (m *ProfitMonitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statuses)
}

// Snapshots returns copies of all statuses sorted by symbol
func (m *ProfitMonitor) Snapshots() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.statuses))
	for _, status := range m.statuses {
		out = append(out, status.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Reset drops every status. Used between independent runs.
func (m *ProfitMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = make(map[string]*ProfitStatus)
}
