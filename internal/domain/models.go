// Package domain provides core domain models and types.
package domain

import (
	"time"

	"github.com/xfw5/Market-Research/pkg/formulas"
)

// Instrument is the per-cycle market snapshot of a single tradable security.
// Supplied by the market-data collaborator and immutable for one cycle.
type Instrument struct {
	Symbol    string  `json:"symbol"`
	Close     float64 `json:"close"`
	PreClose  float64 `json:"pre_close"`
	DayOpen   float64 `json:"day_open"`
	HighLimit float64 `json:"high_limit"` // 0 when the market has no limit band
	LowLimit  float64 `json:"low_limit"`
	Suspended bool    `json:"suspended"`
	ST        bool    `json:"st"` // Special treatment flag
	MarketCap float64 `json:"market_cap"`
}

// ChangePercent returns (close - preClose) / preClose * 100.
// Returns false when the previous close is unusable.
func (i Instrument) ChangePercent() (float64, bool) {
	return formulas.ChangePercent(i.Close, i.PreClose)
}

// Position represents a held position as reported by the portfolio collaborator
type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AverageCost  float64 `json:"average_cost"`
	CurrentPrice float64 `json:"current_price"`
}

// UnrealizedGain returns price minus average cost (per unit)
func (p Position) UnrealizedGain() float64 {
	return p.CurrentPrice - p.AverageCost
}

// MarketValue returns quantity * current price
func (p Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// OrderStatus is the terminal state of a submitted order
type OrderStatus string

const (
	// OrderStatusFilled means the order was (at least partially) executed
	OrderStatusFilled OrderStatus = "filled"
	// OrderStatusRejected means the gateway refused the order
	OrderStatusRejected OrderStatus = "rejected"
)

// OrderSide is BUY or SELL
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderResult is the outcome of a gateway call
type OrderResult struct {
	OrderID     string      `json:"order_id"`
	Symbol      string      `json:"symbol"`
	Side        OrderSide   `json:"side"`
	Status      OrderStatus `json:"status"`
	FilledQty   float64     `json:"filled_qty"`
	Price       float64     `json:"price"`
	AverageCost float64     `json:"average_cost"`
	Reason      string      `json:"reason,omitempty"`
	ExecutedAt  time.Time   `json:"executed_at"`
}

// IsFilled reports whether the order executed any quantity
func (r *OrderResult) IsFilled() bool {
	return r != nil && r.Status == OrderStatusFilled && r.FilledQty > 0
}

// PriceField names the bar field used for moving averages
type PriceField string

const (
	FieldClose PriceField = "close"
	FieldOpen  PriceField = "open"
	FieldHigh  PriceField = "high"
	FieldLow   PriceField = "low"
)
