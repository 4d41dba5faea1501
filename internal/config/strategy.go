package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xfw5/Market-Research/internal/domain"
	"github.com/xfw5/Market-Research/internal/market_regime"
	"github.com/xfw5/Market-Research/internal/modules/allocation"
	"github.com/xfw5/Market-Research/internal/modules/risk"
	"github.com/xfw5/Market-Research/internal/modules/selection"
)

// StrategyConfig groups every trading parameter.
// Precedence: defaults, then the YAML strategy file, then environment variables.
type StrategyConfig struct {
	Regime     market_regime.Options
	Filter     selection.FilterOptions
	OrderIn    selection.OrderInOptions
	Allocation allocation.Options
	Profit     risk.MonitorConfig
}

// DefaultStrategy returns the built-in parameters
func DefaultStrategy() StrategyConfig {
	return StrategyConfig{
		Regime:     market_regime.DefaultOptions(),
		Filter:     selection.DefaultFilterOptions(),
		OrderIn:    selection.DefaultOrderInOptions(),
		Allocation: allocation.DefaultOptions(),
		Profit:     risk.DefaultMonitorConfig(),
	}
}

// Validate checks every option group
func (s StrategyConfig) Validate() error {
	errs := []error{
		s.Regime.Validate(),
		s.Filter.Validate(),
		s.OrderIn.Validate(),
		s.Allocation.Validate(),
	}
	if s.Profit.ProfitLineLow >= s.Profit.ProfitLineHigh {
		errs = append(errs, fmt.Errorf("%w: profit line low %v must be below high %v",
			domain.ErrInvalidConfig, s.Profit.ProfitLineLow, s.Profit.ProfitLineHigh))
	}
	return errors.Join(errs...)
}

// strategyFile mirrors StrategyConfig for YAML. Absent keys keep their current value.
type strategyFile struct {
	Regime struct {
		Index     *string  `yaml:"index"`
		MaDays1   *int     `yaml:"ma_days_1"`
		MaDays2   *int     `yaml:"ma_days_2"`
		Breakout1 *float64 `yaml:"breakout_1"`
		Breakout2 *float64 `yaml:"breakout_2"`
		Falldown1 *float64 `yaml:"falldown_1"`
		Falldown2 *float64 `yaml:"falldown_2"`
		Neutral   *bool    `yaml:"neutral_reduce"`
	} `yaml:"regime"`
	Filter struct {
		FilterST        *bool    `yaml:"filter_st"`
		FilterLimitUp   *bool    `yaml:"filter_limit_up"`
		FilterLimitDown *bool    `yaml:"filter_limit_down"`
		LimitTolerance  *float64 `yaml:"limit_tolerance"`
		MarketCapMin    *float64 `yaml:"market_cap_min"`
		MarketCapMax    *float64 `yaml:"market_cap_max"`
	} `yaml:"filter"`
	OrderIn struct {
		FilterHolding       *bool    `yaml:"filter_holding"`
		MaSamplingDays      *int     `yaml:"ma_sampling_days"`
		ChangePercentLow    *float64 `yaml:"change_percent_low"`
		ChangePercentHigh   *float64 `yaml:"change_percent_high"`
		ChangePercentDesire *float64 `yaml:"change_percent_desire"`
		MaxAboveMA          *float64 `yaml:"max_above_ma"`
		ScoreMode           *string  `yaml:"score_mode"`
	} `yaml:"order_in"`
	Allocation struct {
		TotalSlots         *int     `yaml:"total_slots"`
		SlotsPerInstrument *int     `yaml:"slots_per_instrument"`
		StopLossThreshold  *float64 `yaml:"stop_loss_threshold"`
		MaSamplingDays     *int     `yaml:"ma_sampling_days"`
		OpeningsPerCycle   *int     `yaml:"openings_per_cycle"`
		PositionTolerance  *float64 `yaml:"position_tolerance"`
		LotSize            *int     `yaml:"lot_size"`
		LotOverflow        *int     `yaml:"lot_overflow"`
		LotPolicy          *string  `yaml:"lot_policy"`
		TerminationOrder   *string  `yaml:"termination_order"`
		SizingPolicy       *string  `yaml:"sizing_policy"`
		ProfitMeasure      *string  `yaml:"profit_measure"`
	} `yaml:"allocation"`
	Profit struct {
		LineHigh *float64 `yaml:"line_high"`
		LineLow  *float64 `yaml:"line_low"`
	} `yaml:"profit"`
}

// LoadFile overlays the YAML strategy file at path
func (s *StrategyConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read strategy file: %w", err)
	}
	return s.Apply(data)
}

// Apply overlays YAML strategy data
func (s *StrategyConfig) Apply(data []byte) error {
	var f strategyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: strategy yaml: %v", domain.ErrInvalidConfig, err)
	}

	setString(&s.Regime.IndexSymbol, f.Regime.Index)
	set(&s.Regime.MaDays1, f.Regime.MaDays1)
	set(&s.Regime.MaDays2, f.Regime.MaDays2)
	set(&s.Regime.Breakout1, f.Regime.Breakout1)
	set(&s.Regime.Breakout2, f.Regime.Breakout2)
	set(&s.Regime.Falldown1, f.Regime.Falldown1)
	set(&s.Regime.Falldown2, f.Regime.Falldown2)
	set(&s.Regime.NeutralReduce, f.Regime.Neutral)

	set(&s.Filter.FilterST, f.Filter.FilterST)
	set(&s.Filter.FilterLimitUp, f.Filter.FilterLimitUp)
	set(&s.Filter.FilterLimitDown, f.Filter.FilterLimitDown)
	set(&s.Filter.LimitTolerance, f.Filter.LimitTolerance)
	set(&s.Filter.MarketCapMin, f.Filter.MarketCapMin)
	set(&s.Filter.MarketCapMax, f.Filter.MarketCapMax)

	set(&s.OrderIn.FilterHolding, f.OrderIn.FilterHolding)
	set(&s.OrderIn.MaSamplingDays, f.OrderIn.MaSamplingDays)
	set(&s.OrderIn.ChangePercentLow, f.OrderIn.ChangePercentLow)
	set(&s.OrderIn.ChangePercentHigh, f.OrderIn.ChangePercentHigh)
	set(&s.OrderIn.ChangePercentDesire, f.OrderIn.ChangePercentDesire)
	set(&s.OrderIn.MaxAboveMA, f.OrderIn.MaxAboveMA)
	setString(&s.OrderIn.ScoreMode, f.OrderIn.ScoreMode)

	set(&s.Allocation.TotalSlots, f.Allocation.TotalSlots)
	set(&s.Allocation.SlotsPerInstrument, f.Allocation.SlotsPerInstrument)
	set(&s.Allocation.StopLossThreshold, f.Allocation.StopLossThreshold)
	set(&s.Allocation.MaSamplingDays, f.Allocation.MaSamplingDays)
	set(&s.Allocation.OpeningsPerCycle, f.Allocation.OpeningsPerCycle)
	set(&s.Allocation.PositionTolerance, f.Allocation.PositionTolerance)
	set(&s.Allocation.LotSize, f.Allocation.LotSize)
	set(&s.Allocation.LotOverflow, f.Allocation.LotOverflow)
	setString(&s.Allocation.LotPolicy, f.Allocation.LotPolicy)
	setString(&s.Allocation.TerminationOrder, f.Allocation.TerminationOrder)
	setString(&s.Allocation.SizingPolicy, f.Allocation.SizingPolicy)
	setString(&s.Allocation.ProfitMeasure, f.Allocation.ProfitMeasure)

	set(&s.Profit.ProfitLineHigh, f.Profit.LineHigh)
	set(&s.Profit.ProfitLineLow, f.Profit.LineLow)
	return nil
}

// applyEnv overrides the most frequently tuned parameters from the environment
func (s *StrategyConfig) applyEnv() {
	s.Regime.IndexSymbol = getEnv("REGIME_INDEX", s.Regime.IndexSymbol)
	s.Regime.MaDays1 = getEnvAsInt("REGIME_MA_DAYS_1", s.Regime.MaDays1)
	s.Regime.MaDays2 = getEnvAsInt("REGIME_MA_DAYS_2", s.Regime.MaDays2)

	s.Filter.MarketCapMin = getEnvAsFloat("FILTER_MARKET_CAP_MIN", s.Filter.MarketCapMin)
	s.Filter.MarketCapMax = getEnvAsFloat("FILTER_MARKET_CAP_MAX", s.Filter.MarketCapMax)

	s.OrderIn.ChangePercentDesire = getEnvAsFloat("ORDER_IN_CHANGE_PERCENT_DESIRE", s.OrderIn.ChangePercentDesire)

	s.Allocation.TotalSlots = getEnvAsInt("ALLOCATION_TOTAL_SLOTS", s.Allocation.TotalSlots)
	s.Allocation.OpeningsPerCycle = getEnvAsInt("ALLOCATION_OPENINGS_PER_CYCLE", s.Allocation.OpeningsPerCycle)
	s.Allocation.StopLossThreshold = getEnvAsFloat("ALLOCATION_STOP_LOSS", s.Allocation.StopLossThreshold)
	s.Allocation.LotSize = getEnvAsInt("ALLOCATION_LOT_SIZE", s.Allocation.LotSize)
	s.Allocation.LotPolicy = allocation.LotPolicy(getEnv("ALLOCATION_LOT_POLICY", string(s.Allocation.LotPolicy)))
	s.Allocation.TerminationOrder = allocation.TerminationOrder(
		getEnv("ALLOCATION_TERMINATION_ORDER", string(s.Allocation.TerminationOrder)))
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setString[T ~string](dst *T, src *string) {
	if src != nil {
		*dst = T(*src)
	}
}
