package market_regime

import (
	"sync"
	"time"
)

// DefaultHistorySize is the number of classifications kept in memory
const DefaultHistorySize = 512

// HistoryEntry is one recorded classification
type HistoryEntry struct {
	Regime
	ZoneChanged bool `json:"zone_changed"`
}

// RegimeHistory keeps the most recent classifications of this process in a ring.
// Nothing is written to disk.
type RegimeHistory struct {
	mu      sync.RWMutex
	entries []HistoryEntry
	next    int
	full    bool
	last    Zone
}

// NewRegimeHistory creates a ring of the given size (DefaultHistorySize when <= 0)
func NewRegimeHistory(size int) *RegimeHistory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &RegimeHistory{
		entries: make([]HistoryEntry, size),
		last:    ZoneUnknown,
	}
}

// Record appends a classification. Unknown regimes are ignored.
func (h *RegimeHistory) Record(r Regime) {
	if r.Zone == ZoneUnknown {
		return
	}
	if r.ClassifiedAt.IsZero() {
		r.ClassifiedAt = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.next] = HistoryEntry{Regime: r, ZoneChanged: r.Zone != h.last}
	h.last = r.Zone
	h.next = (h.next + 1) % len(h.entries)
	if h.next == 0 {
		h.full = true
	}
}

// Len returns the number of stored entries
func (h *RegimeHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.entries)
	}
	return h.next
}

// Recent returns up to limit entries, newest first
func (h *RegimeHistory) Recent(limit int) []HistoryEntry {
	return h.collect(limit, func(HistoryEntry) bool { return true })
}

// Changes returns up to limit entries where the zone changed, newest first
func (h *RegimeHistory) Changes(limit int) []HistoryEntry {
	return h.collect(limit, func(e HistoryEntry) bool { return e.ZoneChanged })
}

func (h *RegimeHistory) collect(limit int, keep func(HistoryEntry) bool) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := h.next
	if h.full {
		count = len(h.entries)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]HistoryEntry, 0, limit)
	for i := 0; i < count && len(out) < limit; i++ {
		idx := (h.next - 1 - i + len(h.entries)) % len(h.entries)
		if keep(h.entries[idx]) {
			out = append(out, h.entries[idx])
		}
	}
	return out
}
