// Package formulas holds the numeric helpers used by the market-data store.
package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// SMA returns the simple moving average of the last length values.
// Returns false when there are fewer than length values.
func SMA(values []float64, length int) (float64, bool) {
	if length <= 0 || len(values) < length {
		return 0, false
	}

	// A window of one is the latest value
	if length == 1 {
		return values[len(values)-1], true
	}

	sma := talib.Sma(values, length)
	if len(sma) > 0 {
		if last := sma[len(sma)-1]; !math.IsNaN(last) {
			return last, true
		}
	}

	// Fallback to the plain mean of the window
	return Mean(values[len(values)-length:]), true
}

// Mean calculates the arithmetic mean of values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// ChangePercent returns (current - previous) / previous * 100, false when previous <= 0
func ChangePercent(current, previous float64) (float64, bool) {
	if previous <= 0 {
		return 0, false
	}
	return (current - previous) / previous * 100, true
}
