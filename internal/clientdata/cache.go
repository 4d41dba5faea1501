// Package clientdata provides the per-cycle cache in front of the market-data and
// fundamentals collaborators. Every value is fetched at most once per cycle so all
// components observe the same snapshot; Reset starts a new cycle.
package clientdata

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/xfw5/Market-Research/internal/domain"
)

type maKey struct {
	symbol string
	window int
	field  domain.PriceField
}

type capKey struct {
	symbol string
	date   string
}

type priceEntry struct {
	value float64
	err   error
}

type limitsEntry struct {
	high, low, dayOpen float64
	err                error
}

type instrumentEntry struct {
	value domain.Instrument
	err   error
}

// Stats reports cache effectiveness for the current cycle
type Stats struct {
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Entries   int       `json:"entries"`
	StartedAt time.Time `json:"started_at"`
}

// CycleCache memoizes collaborator reads for one cycle, failures included
type CycleCache struct {
	market       domain.MarketData
	fundamentals domain.Fundamentals
	log          zerolog.Logger

	mu          sync.Mutex
	prices      map[string]priceEntry
	mas         map[maKey]priceEntry
	limits      map[string]limitsEntry
	instruments map[string]instrumentEntry
	caps        map[capKey]priceEntry
	hits        int64
	misses      int64
	startedAt   time.Time
}

// NewCycleCache wraps the collaborators. fundamentals may be nil.
func NewCycleCache(market domain.MarketData, fundamentals domain.Fundamentals, log zerolog.Logger) *CycleCache {
	c := &CycleCache{
		market:       market,
		fundamentals: fundamentals,
		log:          log.With().Str("component", "cycle_cache").Logger(),
	}
	c.Reset()
	return c
}

// Reset drops every cached value
func (c *CycleCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hits+c.misses > 0 {
		c.log.Debug().
			Int64("hits", c.hits).
			Int64("misses", c.misses).
			Msg("Cycle cache reset")
	}

	c.prices = make(map[string]priceEntry)
	c.mas = make(map[maKey]priceEntry)
	c.limits = make(map[string]limitsEntry)
	c.instruments = make(map[string]instrumentEntry)
	c.caps = make(map[capKey]priceEntry)
	c.hits, c.misses = 0, 0
	c.startedAt = time.Now()
}

// Stats returns cache counters for the current cycle
func (c *CycleCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Entries:   len(c.prices) + len(c.mas) + len(c.limits) + len(c.instruments) + len(c.caps),
		StartedAt: c.startedAt,
	}
}

// lookup runs fetch under the lock on a miss. Collaborator calls are
// synchronous and cycles never overlap, so holding the lock is acceptable.
func lookup[K comparable, V any](c *CycleCache, m map[K]V, key K, fetch func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := m[key]; ok {
		c.hits++
		return v
	}
	c.misses++
	v := fetch()
	m[key] = v
	return v
}

// CurrentPrice implements domain.MarketData
func (c *CycleCache) CurrentPrice(symbol string) (float64, error) {
	e := lookup(c, c.prices, symbol, func() priceEntry {
		v, err := c.market.CurrentPrice(symbol)
		return priceEntry{v, err}
	})
	return e.value, e.err
}

// MovingAverage implements domain.MarketData
func (c *CycleCache) MovingAverage(symbol string, window int, field domain.PriceField) (float64, error) {
	e := lookup(c, c.mas, maKey{symbol, window, field}, func() priceEntry {
		v, err := c.market.MovingAverage(symbol, window, field)
		return priceEntry{v, err}
	})
	return e.value, e.err
}

// PriceLimits implements domain.MarketData
func (c *CycleCache) PriceLimits(symbol string) (float64, float64, float64, error) {
	e := lookup(c, c.limits, symbol, func() limitsEntry {
		high, low, open, err := c.market.PriceLimits(symbol)
		return limitsEntry{high, low, open, err}
	})
	return e.high, e.low, e.dayOpen, e.err
}

// Instrument implements domain.MarketData
func (c *CycleCache) Instrument(symbol string) (domain.Instrument, error) {
	e := lookup(c, c.instruments, symbol, func() instrumentEntry {
		v, err := c.market.Instrument(symbol)
		return instrumentEntry{v, err}
	})
	return e.value, e.err
}

// IsSuspended implements domain.MarketData using the cached instrument snapshot
func (c *CycleCache) IsSuspended(symbol string) (bool, error) {
	inst, err := c.Instrument(symbol)
	if err != nil {
		return false, err
	}
	return inst.Suspended, nil
}

// IsST implements domain.MarketData using the cached instrument snapshot
func (c *CycleCache) IsST(symbol string) (bool, error) {
	inst, err := c.Instrument(symbol)
	if err != nil {
		return false, err
	}
	return inst.ST, nil
}

// MarketCap implements domain.Fundamentals
func (c *CycleCache) MarketCap(symbol string, date time.Time) (float64, error) {
	if c.fundamentals == nil {
		return 0, fmt.Errorf("no fundamentals source: %w", domain.ErrDataUnavailable)
	}
	e := lookup(c, c.caps, capKey{symbol, date.Format("2006-01-02")}, func() priceEntry {
		v, err := c.fundamentals.MarketCap(symbol, date)
		return priceEntry{v, err}
	})
	return e.value, e.err
}
