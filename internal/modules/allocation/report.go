package allocation

import "github.com/xfw5/Market-Research/internal/domain"

// OrderAction classifies a recorded order
type OrderAction string

const (
	ActionOpen  OrderAction = "open"
	ActionClose OrderAction = "close"
)

// ExitReason explains why a position was closed
type ExitReason string

const (
	ExitTrendBroken    ExitReason = "below_moving_average"
	ExitStopLoss       ExitReason = "stop_loss"
	ExitProfitGiveBack ExitReason = "profit_give_back"
	ExitReduceExposure ExitReason = "reduce_exposure"
	ExitSellOff        ExitReason = "sell_off"
	ExitTakeProfit     ExitReason = "sell_off_profitable"
	ExitCutLoss        ExitReason = "sell_off_losing"
)

// StopReason explains why accumulation stopped early
type StopReason string

const (
	StopNone          StopReason = ""
	StopTargetReached StopReason = "target_reached"
	StopOpeningCap    StopReason = "opening_cap_reached"
	StopNoCandidates  StopReason = "no_candidates"
	StopNoCapital     StopReason = "no_capital"
)

// OrderRecord is one submitted (or attempted) order
type OrderRecord struct {
	Symbol   string              `json:"symbol"`
	Action   OrderAction         `json:"action"`
	Reason   ExitReason          `json:"reason,omitempty"`
	Notional float64             `json:"notional,omitempty"`
	Result   *domain.OrderResult `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Filled reports whether the order executed
func (r OrderRecord) Filled() bool {
	return r.Error == "" && r.Result.IsFilled()
}

// Report summarises one allocator action
type Report struct {
	ExposureBefore float64       `json:"exposure_before"`
	ExposureAfter  float64       `json:"exposure_after"`
	Target         float64       `json:"target"`
	Bullish        bool          `json:"bullish"`
	Opened         int           `json:"opened"`
	Closed         int           `json:"closed"`
	Stop           StopReason    `json:"stop,omitempty"`
	Orders         []OrderRecord `json:"orders"`
	Skipped        []string      `json:"skipped,omitempty"`
}

func (r *Report) add(rec OrderRecord) {
	r.Orders = append(r.Orders, rec)
	if !rec.Filled() {
		return
	}
	switch rec.Action {
	case ActionOpen:
		r.Opened++
	case ActionClose:
		r.Closed++
	}
}

func (r *Report) merge(other Report) {
	for _, rec := range other.Orders {
		r.add(rec)
	}
	r.Skipped = append(r.Skipped, other.Skipped...)
}
