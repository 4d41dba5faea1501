package domain

import "time"

// MarketData provides prices, moving averages and daily limit bands.
// Implementations must return ErrDataUnavailable (possibly wrapped) when a value is missing.
type MarketData interface {
	// CurrentPrice returns the latest price of the symbol
	CurrentPrice(symbol string) (float64, error)

	// MovingAverage returns the simple moving average of field over the last window bars
	MovingAverage(symbol string, window int, field PriceField) (float64, error)

	// PriceLimits returns the upper and lower daily limit prices and the day open.
	// high and low are 0 when the market enforces no band for the symbol.
	PriceLimits(symbol string) (high, low, dayOpen float64, err error)

	// Instrument returns the full per-cycle snapshot of the symbol
	Instrument(symbol string) (Instrument, error)

	IsSuspended(symbol string) (bool, error)
	IsST(symbol string) (bool, error)
}

// Fundamentals provides valuation data
type Fundamentals interface {
	// MarketCap returns the market capitalization of the symbol on the given date
	MarketCap(symbol string, date time.Time) (float64, error)
}

// Portfolio exposes the account state. Read-only to the decision engine.
type Portfolio interface {
	Cash() float64
	UsedCapital() float64
	Positions() []Position
}

// OrderGateway submits orders to the execution venue
type OrderGateway interface {
	// SubmitTargetValueOrder adjusts the holding of symbol to the given notional value
	SubmitTargetValueOrder(symbol string, notional float64) (*OrderResult, error)

	// SubmitCloseOrder closes the whole holding of symbol
	SubmitCloseOrder(symbol string) (*OrderResult, error)
}

// Clock returns the current decision time. Backtests inject a simulated clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time { return time.Now() }

// HeldSymbols returns the set of symbols with a non-zero quantity
func HeldSymbols(positions []Position) map[string]bool {
	held := make(map[string]bool, len(positions))
	for _, p := range positions {
		if p.Quantity > 0 {
			held[p.Symbol] = true
		}
	}
	return held
}
