// Package marketdata is the SQLite-backed market-data and fundamentals source.
package marketdata

// DateLayout is the date format stored in every table
const DateLayout = "2006-01-02"

// Bar is one daily OHLCV bar
type Bar struct {
	Symbol string  `db:"symbol" yaml:"symbol"`
	Date   string  `db:"date" yaml:"date"`
	Open   float64 `db:"open" yaml:"open"`
	High   float64 `db:"high" yaml:"high"`
	Low    float64 `db:"low" yaml:"low"`
	Close  float64 `db:"close" yaml:"close"`
	Volume float64 `db:"volume" yaml:"volume"`
}

// Status carries the per-day trading flags and limit band of an instrument
type Status struct {
	Symbol    string  `db:"symbol" yaml:"symbol"`
	Date      string  `db:"date" yaml:"date"`
	HighLimit float64 `db:"high_limit" yaml:"high_limit"`
	LowLimit  float64 `db:"low_limit" yaml:"low_limit"`
	Suspended bool    `db:"suspended" yaml:"suspended"`
	ST        bool    `db:"st" yaml:"st"`
}

// Fundamental is a dated valuation record
type Fundamental struct {
	Symbol    string  `db:"symbol" yaml:"symbol"`
	Date      string  `db:"date" yaml:"date"`
	MarketCap float64 `db:"market_cap" yaml:"market_cap"`
}

// UniverseMember is one tradable symbol
type UniverseMember struct {
	Symbol string `db:"symbol" yaml:"symbol"`
	Name   string `db:"name" yaml:"name"`
	Active bool   `db:"active" yaml:"active"`
}
