package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xfw5/Market-Research/internal/domain"
)

// OrderSizer turns a desired cash amount into a submittable order notional
type OrderSizer struct {
	LotSize     int
	LotOverflow int
	Policy      LotPolicy
}

// NewOrderSizer creates a sizer from allocator options
func NewOrderSizer(opts Options) OrderSizer {
	return OrderSizer{
		LotSize:     opts.LotSize,
		LotOverflow: opts.LotOverflow,
		Policy:      opts.LotPolicy,
	}
}

// LotValue returns the cost of quantity units at price
func LotValue(price float64, quantity int) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
}

// Clamp sizes a buy order.
//
// The notional is raised to at least one lot (plus the overflow buffer when the
// gateway trims) and never exceeds the available cash. Under LotPolicyRoundDown the
// result is a whole number of lots. Returns ErrInsufficientCash when not even one
// lot is affordable.
func (s OrderSizer) Clamp(price, desired, cash float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("price %v: %w", price, domain.ErrDataUnavailable)
	}

	available := decimal.NewFromFloat(cash)
	oneLot := LotValue(price, s.LotSize)
	if available.LessThan(oneLot) {
		return 0, fmt.Errorf("one lot costs %s, cash %s: %w",
			oneLot.StringFixed(2), available.StringFixed(2), domain.ErrInsufficientCash)
	}

	want := decimal.NewFromFloat(desired)

	switch s.Policy {
	case LotPolicyRoundDown:
		value := decimal.Min(decimal.Max(want, oneLot), available)
		lots := value.Div(oneLot).Floor()
		return lots.Mul(oneLot).InexactFloat64(), nil
	default:
		oneDeal := LotValue(price, s.LotSize+s.LotOverflow)
		value := decimal.Min(decimal.Max(want, oneDeal), available)
		return value.InexactFloat64(), nil
	}
}
