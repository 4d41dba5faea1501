package allocation

import (
	"fmt"

	"github.com/xfw5/Market-Research/internal/domain"
)

// DefaultPositionTolerance is the exposure distance treated as "target reached"
const DefaultPositionTolerance = 0.05

// LotPolicy decides who is responsible for whole-lot quantities on buy orders
type LotPolicy string

const (
	// LotPolicyBrokerTrims submits one lot plus an overflow buffer and relies on the
	// gateway to trim the quantity down to a lot multiple
	LotPolicyBrokerTrims LotPolicy = "broker_trims"
	// LotPolicyRoundDown makes the allocator round the notional down to whole lots
	LotPolicyRoundDown LotPolicy = "round_down"
)

// TerminationOrder decides which accumulation stop condition is checked first
type TerminationOrder string

const (
	TerminationExposureFirst TerminationOrder = "exposure_first"
	TerminationOpeningsFirst TerminationOrder = "openings_first"
)

// SizingPolicy decides how the cash to deploy is split per instrument
type SizingPolicy string

const (
	// SizingDailyOpenings splits the desired cash evenly across the opening cap
	SizingDailyOpenings SizingPolicy = "daily_openings"
	// SizingSlots additionally caps each order at the instrument's slot budget
	SizingSlots SizingPolicy = "slots"
)

// ProfitMeasure selects what is fed into the profit watermarks
type ProfitMeasure string

const (
	// ProfitAbsolute feeds price - average cost
	ProfitAbsolute ProfitMeasure = "absolute"
	// ProfitPercent feeds (price - average cost) / average cost * 100
	ProfitPercent ProfitMeasure = "percent"
)

// Options configures the capital allocator
type Options struct {
	TotalSlots         int
	SlotsPerInstrument int
	StopLossThreshold  float64 // Fraction of cost basis
	MaSamplingDays     int     // Moving-average window for exit checks
	OpeningsPerCycle   int     // Maximum new positions per invocation
	PositionTolerance  float64
	LotSize            int
	LotOverflow        int
	LotPolicy          LotPolicy
	TerminationOrder   TerminationOrder
	SizingPolicy       SizingPolicy
	ProfitMeasure      ProfitMeasure
}

// DefaultOptions returns the default allocator options
func DefaultOptions() Options {
	return Options{
		TotalSlots:         10,
		SlotsPerInstrument: 1,
		StopLossThreshold:  0.05,
		MaSamplingDays:     5,
		OpeningsPerCycle:   2,
		PositionTolerance:  DefaultPositionTolerance,
		LotSize:            100,
		LotOverflow:        20,
		LotPolicy:          LotPolicyBrokerTrims,
		TerminationOrder:   TerminationExposureFirst,
		SizingPolicy:       SizingDailyOpenings,
		ProfitMeasure:      ProfitAbsolute,
	}
}

// Validate checks option consistency
func (o Options) Validate() error {
	if o.TotalSlots <= 0 || o.SlotsPerInstrument <= 0 {
		return fmt.Errorf("%w: slots must be positive (total=%d, per instrument=%d)",
			domain.ErrInvalidConfig, o.TotalSlots, o.SlotsPerInstrument)
	}
	if o.SlotsPerInstrument > o.TotalSlots {
		return fmt.Errorf("%w: slots per instrument %d exceeds total %d",
			domain.ErrInvalidConfig, o.SlotsPerInstrument, o.TotalSlots)
	}
	if o.StopLossThreshold <= 0 {
		return fmt.Errorf("%w: stop-loss threshold must be positive", domain.ErrInvalidConfig)
	}
	if o.MaSamplingDays <= 0 {
		return fmt.Errorf("%w: ma sampling days must be positive", domain.ErrInvalidConfig)
	}
	if o.OpeningsPerCycle <= 0 {
		return fmt.Errorf("%w: openings per cycle must be positive", domain.ErrInvalidConfig)
	}
	if o.PositionTolerance < 0 || o.PositionTolerance >= 1 {
		return fmt.Errorf("%w: position tolerance must be in [0, 1)", domain.ErrInvalidConfig)
	}
	if o.LotSize <= 0 || o.LotOverflow < 0 {
		return fmt.Errorf("%w: lot size must be positive and overflow non-negative", domain.ErrInvalidConfig)
	}
	switch o.LotPolicy {
	case LotPolicyBrokerTrims, LotPolicyRoundDown:
	default:
		return fmt.Errorf("%w: unknown lot policy %q", domain.ErrInvalidConfig, o.LotPolicy)
	}
	switch o.TerminationOrder {
	case TerminationExposureFirst, TerminationOpeningsFirst:
	default:
		return fmt.Errorf("%w: unknown termination order %q", domain.ErrInvalidConfig, o.TerminationOrder)
	}
	switch o.SizingPolicy {
	case SizingDailyOpenings, SizingSlots:
	default:
		return fmt.Errorf("%w: unknown sizing policy %q", domain.ErrInvalidConfig, o.SizingPolicy)
	}
	switch o.ProfitMeasure {
	case ProfitAbsolute, ProfitPercent:
	default:
		return fmt.Errorf("%w: unknown profit measure %q", domain.ErrInvalidConfig, o.ProfitMeasure)
	}
	return nil
}

// IsWithinTolerance reports |current - target| < tolerance
func IsWithinTolerance(current, target, tolerance float64) bool {
	diff := current - target
	if diff < 0 {
		diff = -diff
	}
	return diff < tolerance
}
