// Package market_regime classifies the market from an index price versus two
// moving averages and maps the result to a target exposure.
package market_regime

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/xfw5/Market-Research/internal/domain"
)

// Zone is the regime classification of the index
type Zone string

const (
	// ZoneBearish - price below both averages; liquidate everything
	ZoneBearish Zone = "bearish"
	// ZoneTransitional - MA1 <= price <= MA2
	ZoneTransitional Zone = "transitional"
	// ZoneStrong - price at or above both averages
	ZoneStrong Zone = "strong"
	// ZoneNeutral - MA2 <= price < MA1; exits only unless NeutralReduce is set
	ZoneNeutral Zone = "neutral"
	// ZoneUnknown - index data missing
	ZoneUnknown Zone = "unknown"
)

// Options configures the classifier
type Options struct {
	IndexSymbol string
	MaDays1     int // Shorter window
	MaDays2     int // Longer window
	Breakout1   float64
	Breakout2   float64
	Falldown1   float64
	Falldown2   float64

	NeutralReduce bool // Reduce toward Falldown1 in the neutral zone instead of running exits only
}

// DefaultOptions returns the default classifier options
func DefaultOptions() Options {
	return Options{
		IndexSymbol: "000001.XSHG",
		MaDays1:     20,
		MaDays2:     60,
		Breakout1:   0.6,
		Breakout2:   0.8,
		Falldown1:   0.2,
		Falldown2:   0.0,
	}
}

// Validate checks option consistency
func (o Options) Validate() error {
	if o.IndexSymbol == "" {
		return fmt.Errorf("%w: index symbol is required", domain.ErrInvalidConfig)
	}
	if o.MaDays1 <= 0 || o.MaDays2 <= 0 {
		return fmt.Errorf("%w: moving average windows must be positive", domain.ErrInvalidConfig)
	}
	for name, level := range map[string]float64{
		"breakout 1": o.Breakout1,
		"breakout 2": o.Breakout2,
		"falldown 1": o.Falldown1,
		"falldown 2": o.Falldown2,
	} {
		if level < 0 || level > 1 {
			return fmt.Errorf("%w: %s level %v outside [0, 1]", domain.ErrInvalidConfig, name, level)
		}
	}
	return nil
}

// Regime is one classification result
type Regime struct {
	Zone         Zone      `json:"zone"`
	Target       float64   `json:"target"`
	Bullish      bool      `json:"bullish"`
	Price        float64   `json:"price"`
	MA1          float64   `json:"ma1"`
	MA2          float64   `json:"ma2"`
	ReduceOnly   bool      `json:"reduce_only,omitempty"`
	ClassifiedAt time.Time `json:"classified_at"`
}

// IsTerminal reports whether the cycle must stop after liquidating everything
func (r Regime) IsTerminal() bool {
	return r.Zone == ZoneBearish
}

// AllowsAllocation reports whether the allocator should run for this regime
func (r Regime) AllowsAllocation() bool {
	switch r.Zone {
	case ZoneTransitional, ZoneStrong:
		return true
	case ZoneNeutral:
		return r.ReduceOnly
	default:
		return false
	}
}

// Classify maps price and averages to a regime. Pure function.
func Classify(price, ma1, ma2 float64, opts Options) Regime {
	r := Regime{Price: price, MA1: ma1, MA2: ma2}

	switch {
	case price >= ma1 && price >= ma2:
		r.Zone, r.Target, r.Bullish = ZoneStrong, opts.Breakout2, true
	case price < ma1 && price < ma2:
		r.Zone, r.Target, r.Bullish = ZoneBearish, opts.Falldown2, false
	case ma1 <= price && price <= ma2:
		r.Zone, r.Target, r.Bullish = ZoneTransitional, opts.Breakout1, true
	default:
		r.Zone, r.Target, r.Bullish = ZoneNeutral, opts.Falldown1, false
		r.ReduceOnly = opts.NeutralReduce
	}
	return r
}

// RegimeClassifier holds the index averages (refreshed daily) and price
// (refreshed per cycle) and classifies on demand
type RegimeClassifier struct {
	opts   Options
	market domain.MarketData
	clock  domain.Clock
	log    zerolog.Logger

	mu          sync.RWMutex
	ma1         float64
	ma2         float64
	price       float64
	maRefreshed time.Time
	last        Regime
}

// NewRegimeClassifier creates a classifier
func NewRegimeClassifier(opts Options, market domain.MarketData, clock domain.Clock, log zerolog.Logger) *RegimeClassifier {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &RegimeClassifier{
		opts:   opts,
		market: market,
		clock:  clock,
		log:    log.With().Str("component", "regime_classifier").Logger(),
		last:   Regime{Zone: ZoneUnknown},
	}
}

// Options returns the classifier options
func (c *RegimeClassifier) Options() Options {
	return c.opts
}

// RefreshMovingAverages reloads MA1 and MA2 of the index. Called once per trading day.
func (c *RegimeClassifier) RefreshMovingAverages() error {
	ma1, err := c.market.MovingAverage(c.opts.IndexSymbol, c.opts.MaDays1, domain.FieldClose)
	if err != nil {
		return fmt.Errorf("index %s MA%d: %w", c.opts.IndexSymbol, c.opts.MaDays1, err)
	}
	ma2, err := c.market.MovingAverage(c.opts.IndexSymbol, c.opts.MaDays2, domain.FieldClose)
	if err != nil {
		return fmt.Errorf("index %s MA%d: %w", c.opts.IndexSymbol, c.opts.MaDays2, err)
	}

	c.mu.Lock()
	c.ma1, c.ma2 = ma1, ma2
	c.maRefreshed = c.clock.Now()
	c.mu.Unlock()

	c.log.Info().
		Str("index", c.opts.IndexSymbol).
		Float64("ma1", ma1).
		Float64("ma2", ma2).
		Msg("Index moving averages refreshed")
	return nil
}

// RefreshPrice reloads the index price. Called once per cycle.
func (c *RegimeClassifier) RefreshPrice() (float64, error) {
	price, err := c.market.CurrentPrice(c.opts.IndexSymbol)
	if err != nil {
		return 0, fmt.Errorf("index %s price: %w", c.opts.IndexSymbol, err)
	}

	c.mu.Lock()
	c.price = price
	c.mu.Unlock()
	return price, nil
}

// Classify classifies using the last refreshed price and averages.
// Returns ErrDataUnavailable when averages or price have never been loaded.
func (c *RegimeClassifier) Classify() (Regime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maRefreshed.IsZero() || c.ma1 <= 0 || c.ma2 <= 0 {
		c.last = Regime{Zone: ZoneUnknown, ClassifiedAt: c.clock.Now()}
		return c.last, fmt.Errorf("index moving averages not loaded: %w", domain.ErrDataUnavailable)
	}
	if c.price <= 0 {
		c.last = Regime{Zone: ZoneUnknown, MA1: c.ma1, MA2: c.ma2, ClassifiedAt: c.clock.Now()}
		return c.last, fmt.Errorf("index price not loaded: %w", domain.ErrDataUnavailable)
	}

	r := Classify(c.price, c.ma1, c.ma2, c.opts)
	r.ClassifiedAt = c.clock.Now()

	if r.Zone != c.last.Zone {
		c.log.Info().
			Str("from", string(c.last.Zone)).
			Str("to", string(r.Zone)).
			Float64("price", r.Price).
			Float64("ma1", r.MA1).
			Float64("ma2", r.MA2).
			Float64("target", r.Target).
			Msg("Market regime changed")
	}
	c.last = r
	return r, nil
}

// Last returns the most recent classification
func (c *RegimeClassifier) Last() Regime {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// MovingAveragesRefreshedAt returns when the averages were last loaded
func (c *RegimeClassifier) MovingAveragesRefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maRefreshed
}

// MovingAverages returns the loaded MA1 and MA2 (0 before the first refresh)
func (c *RegimeClassifier) MovingAverages() (float64, float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ma1, c.ma2
}
