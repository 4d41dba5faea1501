package selection

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/xfw5/Market-Research/internal/domain"
)

// DropReason explains why an instrument left the pipeline
type DropReason string

const (
	DropSuspended       DropReason = "suspended"
	DropST              DropReason = "special_treatment"
	DropMarketCap       DropReason = "market_cap_out_of_range"
	DropNoData          DropReason = "data_unavailable"
	DropLimitUp         DropReason = "limit_up"
	DropLimitDown       DropReason = "limit_down"
	DropMovingAverage   DropReason = "moving_average"
	DropChangeOutOfBand DropReason = "change_out_of_band"
	DropHeld            DropReason = "already_held"
)

// SelectionResult is the output of the selection phase
type SelectionResult struct {
	Eligible []string
	Dropped  map[string]DropReason
}

// Candidate is a buy-eligible instrument with its momentum score
type Candidate struct {
	Symbol        string  `json:"symbol"`
	Score         float64 `json:"score"`
	ChangePercent float64 `json:"change_percent"`
	Price         float64 `json:"price"`
	MovingAverage float64 `json:"moving_average"`
}

// BuyResult is the output of the buy phase
type BuyResult struct {
	Candidates []Candidate
	Dropped    map[string]DropReason
}

// Pipeline runs the two filtering phases. Missing data is a soft drop, never an error.
type Pipeline struct {
	selectOpts   FilterOptions
	orderInOpts  OrderInOptions
	market       domain.MarketData
	fundamentals domain.Fundamentals
	log          zerolog.Logger
}

// NewPipeline creates a filter pipeline
func NewPipeline(
	selectOpts FilterOptions,
	orderInOpts OrderInOptions,
	market domain.MarketData,
	fundamentals domain.Fundamentals,
	log zerolog.Logger,
) *Pipeline {
	if orderInOpts.ScoreMode == "" {
		orderInOpts.ScoreMode = ScorePercent
	}
	return &Pipeline{
		selectOpts:   selectOpts,
		orderInOpts:  orderInOpts,
		market:       market,
		fundamentals: fundamentals,
		log:          log.With().Str("component", "selection_pipeline").Logger(),
	}
}

// OrderInOptions returns the buy-phase options
func (p *Pipeline) OrderInOptions() OrderInOptions {
	return p.orderInOpts
}

// SelectEligible runs the selection phase over the universe
func (p *Pipeline) SelectEligible(universe []string, date time.Time) SelectionResult {
	result := SelectionResult{
		Eligible: make([]string, 0, len(universe)),
		Dropped:  make(map[string]DropReason),
	}

	retained := make([]string, 0, len(universe))
	for _, symbol := range universe {
		if reason, drop := p.checkStatus(symbol, date); drop {
			result.Dropped[symbol] = reason
			continue
		}
		retained = append(retained, symbol)
	}

	for _, symbol := range retained {
		if reason, drop := p.checkLimits(symbol); drop {
			result.Dropped[symbol] = reason
			continue
		}
		result.Eligible = append(result.Eligible, symbol)
	}

	p.log.Debug().
		Int("universe", len(universe)).
		Int("eligible", len(result.Eligible)).
		Int("dropped", len(result.Dropped)).
		Msg("Selection phase completed")

	return result
}

func (p *Pipeline) checkStatus(symbol string, date time.Time) (DropReason, bool) {
	suspended, err := p.market.IsSuspended(symbol)
	if err != nil {
		p.log.Debug().Err(err).Str("symbol", symbol).Msg("Suspension status unavailable")
		return DropNoData, true
	}
	if suspended {
		return DropSuspended, true
	}

	if p.selectOpts.FilterST {
		st, err := p.market.IsST(symbol)
		if err != nil {
			p.log.Debug().Err(err).Str("symbol", symbol).Msg("ST status unavailable")
			return DropNoData, true
		}
		if st {
			return DropST, true
		}
	}

	marketCap, err := p.fundamentals.MarketCap(symbol, date)
	if err != nil {
		p.log.Debug().Err(err).Str("symbol", symbol).Msg("Market cap unavailable")
		return DropNoData, true
	}
	if marketCap < p.selectOpts.MarketCapMin || marketCap > p.selectOpts.MarketCapMax {
		return DropMarketCap, true
	}

	return "", false
}

func (p *Pipeline) checkLimits(symbol string) (DropReason, bool) {
	if !p.selectOpts.FilterLimitUp && !p.selectOpts.FilterLimitDown {
		return "", false
	}

	price, err := p.market.CurrentPrice(symbol)
	if err != nil {
		return DropNoData, true
	}
	high, low, dayOpen, err := p.market.PriceLimits(symbol)
	if err != nil {
		return DropNoData, true
	}

	tolerance := dayOpen * p.selectOpts.LimitTolerance

	if p.selectOpts.FilterLimitUp && high > 0 {
		if price >= high || high-price < tolerance {
			return DropLimitUp, true
		}
	}
	if p.selectOpts.FilterLimitDown && low > 0 {
		if price <= low || price-low < tolerance {
			return DropLimitDown, true
		}
	}
	return "", false
}

// FilterBuyCandidates runs the buy phase over the eligible universe
func (p *Pipeline) FilterBuyCandidates(eligible []string, held map[string]bool) BuyResult {
	result := BuyResult{
		Candidates: make([]Candidate, 0, len(eligible)),
		Dropped:    make(map[string]DropReason),
	}

	for _, symbol := range eligible {
		candidate, reason, ok := p.evaluateBuy(symbol)
		if !ok {
			result.Dropped[symbol] = reason
			continue
		}
		if p.orderInOpts.FilterHolding && held[symbol] {
			result.Dropped[symbol] = DropHeld
			continue
		}
		result.Candidates = append(result.Candidates, candidate)
	}

	p.log.Debug().
		Int("eligible", len(eligible)).
		Int("candidates", len(result.Candidates)).
		Msg("Buy phase completed")

	return result
}

func (p *Pipeline) evaluateBuy(symbol string) (Candidate, DropReason, bool) {
	inst, err := p.market.Instrument(symbol)
	if err != nil {
		return Candidate{}, DropNoData, false
	}
	change, ok := inst.ChangePercent()
	if !ok {
		return Candidate{}, DropNoData, false
	}

	ma, err := p.market.MovingAverage(symbol, p.orderInOpts.MaSamplingDays, domain.FieldClose)
	if err != nil {
		return Candidate{}, DropNoData, false
	}

	// Keep only instruments trading at or modestly below their recent average
	if ma < inst.Close || ma > inst.Close*(1+p.orderInOpts.MaxAboveMA) {
		return Candidate{}, DropMovingAverage, false
	}

	if change < p.orderInOpts.ChangePercentLow || change > p.orderInOpts.ChangePercentHigh {
		return Candidate{}, DropChangeOutOfBand, false
	}

	score := change
	if p.orderInOpts.ScoreMode == ScoreAbsolute {
		score = inst.Close - inst.PreClose
	}

	return Candidate{
		Symbol:        symbol,
		Score:         score,
		ChangePercent: change,
		Price:         inst.Close,
		MovingAverage: ma,
	}, "", true
}
