// Package selection narrows the tradable universe to buy candidates and ranks them.
package selection

import (
	"fmt"

	"github.com/xfw5/Market-Research/internal/domain"
)

// FilterOptions configures the selection phase (universe eligibility)
type FilterOptions struct {
	FilterST        bool    // Drop special-treatment instruments
	FilterLimitUp   bool    // Drop instruments at or near the upper limit band
	FilterLimitDown bool    // Drop instruments at or near the lower limit band
	LimitTolerance  float64 // Fraction of day open treated as "at the limit"
	MarketCapMin    float64
	MarketCapMax    float64
}

// DefaultFilterOptions returns the default selection options
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		FilterST:        true,
		FilterLimitUp:   true,
		FilterLimitDown: false,
		LimitTolerance:  0.01,
		MarketCapMin:    0,
		MarketCapMax:    3000,
	}
}

// Validate checks option consistency
func (o FilterOptions) Validate() error {
	if o.LimitTolerance < 0 {
		return fmt.Errorf("%w: limit tolerance must be >= 0, got %v", domain.ErrInvalidConfig, o.LimitTolerance)
	}
	if o.MarketCapMin > o.MarketCapMax {
		return fmt.Errorf("%w: market cap min %v exceeds max %v", domain.ErrInvalidConfig, o.MarketCapMin, o.MarketCapMax)
	}
	return nil
}

// ScoreMode selects the momentum score used for ranking
type ScoreMode string

const (
	// ScorePercent ranks by percentage change versus previous close
	ScorePercent ScoreMode = "percent"
	// ScoreAbsolute ranks by absolute price change versus previous close
	ScoreAbsolute ScoreMode = "absolute"
)

// OrderInOptions configures the buy phase
type OrderInOptions struct {
	FilterHolding       bool // Drop instruments already held
	MaSamplingDays      int
	ChangePercentLow    float64
	ChangePercentHigh   float64
	ChangePercentDesire float64
	MaxAboveMA          float64 // Moving average may exceed price by at most this fraction
	ScoreMode           ScoreMode
}

// DefaultOrderInOptions returns the default buy-phase options
func DefaultOrderInOptions() OrderInOptions {
	return OrderInOptions{
		FilterHolding:       true,
		MaSamplingDays:      5,
		ChangePercentLow:    1,
		ChangePercentHigh:   11,
		ChangePercentDesire: 3,
		MaxAboveMA:          0.1,
		ScoreMode:           ScorePercent,
	}
}

// Validate checks option consistency
func (o OrderInOptions) Validate() error {
	if o.MaSamplingDays <= 0 {
		return fmt.Errorf("%w: ma sampling days must be positive, got %d", domain.ErrInvalidConfig, o.MaSamplingDays)
	}
	if o.ChangePercentLow > o.ChangePercentHigh {
		return fmt.Errorf("%w: change percent low %v exceeds high %v",
			domain.ErrInvalidConfig, o.ChangePercentLow, o.ChangePercentHigh)
	}
	if o.MaxAboveMA < 0 {
		return fmt.Errorf("%w: max above ma must be >= 0", domain.ErrInvalidConfig)
	}
	switch o.ScoreMode {
	case ScorePercent, ScoreAbsolute, "":
	default:
		return fmt.Errorf("%w: unknown score mode %q", domain.ErrInvalidConfig, o.ScoreMode)
	}
	return nil
}
