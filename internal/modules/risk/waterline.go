// Package risk provides per-instrument profit protection: watermark detectors,
// profit give-back signals and the monitor that owns them.
package risk

// WaterLine is a threshold-crossing detector with high/low-watermark memory.
//
// Not inverted: a value above Line counts as a hit and HighestHit tracks the maximum.
// Inverted: a value below Line counts as a hit and HighestHit tracks the minimum.
type WaterLine struct {
	Line       float64 `json:"line"`
	Inverted   bool    `json:"inverted"`
	Active     bool    `json:"active"`
	IsHit      bool    `json:"is_hit"`
	HighestHit float64 `json:"highest_hit"`
}

// NewWaterLine creates a water line with HighestHit initialised to line
func NewWaterLine(line float64, inverted, active bool) *WaterLine {
	return &WaterLine{
		Line:       line,
		Inverted:   inverted,
		Active:     active,
		HighestHit: line,
	}
}

// Crosses reports whether value is beyond the line in the triggering direction.
// It does not look at Active and does not mutate state.
func (w *WaterLine) Crosses(value float64) bool {
	if w.Inverted {
		return value < w.Line
	}
	return value > w.Line
}

// Update feeds a new observation. No-op while inactive.
func (w *WaterLine) Update(value float64) {
	if !w.Active || !w.Crosses(value) {
		return
	}
	w.IsHit = true
	w.extendExtreme(value)
}

// Reset clears the hit state, sets Active and rewinds HighestHit to Line
func (w *WaterLine) Reset(active bool) {
	w.IsHit = false
	w.Active = active
	w.HighestHit = w.Line
}

func (w *WaterLine) extendExtreme(value float64) {
	if w.Inverted {
		if value < w.HighestHit {
			w.HighestHit = value
		}
		return
	}
	if value > w.HighestHit {
		w.HighestHit = value
	}
}
