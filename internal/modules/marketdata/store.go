package marketdata

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/xfw5/Market-Research/internal/domain"
	"github.com/xfw5/Market-Research/pkg/formulas"
)

// Store implements domain.MarketData and domain.Fundamentals over the market database.
// "Today" comes from the injected clock so backtests can replay history.
type Store struct {
	db    *sqlx.DB
	clock domain.Clock
	log   zerolog.Logger
}

// NewStore wraps an open market database. driverName is the database/sql driver
// the connection was opened with ("sqlite" in production, "sqlite3" in tests).
func NewStore(db *sql.DB, driverName string, clock domain.Clock, log zerolog.Logger) *Store {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Store{
		db:    sqlx.NewDb(db, driverName),
		clock: clock,
		log:   log.With().Str("repo", "marketdata").Logger(),
	}
}

func (s *Store) today() string {
	return s.clock.Now().Format(DateLayout)
}

func unavailable(what, symbol string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s for %s: %w", what, symbol, domain.ErrDataUnavailable)
	}
	return fmt.Errorf("failed to load %s for %s: %w", what, symbol, err)
}

// SaveBars upserts daily bars
func (s *Store) SaveBars(bars []Bar) error {
	return s.withTx(func(tx *sqlx.Tx) error {
		for _, b := range bars {
			if _, err := tx.Exec(`INSERT OR REPLACE INTO daily_prices
				(symbol, date, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				return fmt.Errorf("failed to save bar %s %s: %w", b.Symbol, b.Date, err)
			}
		}
		return nil
	})
}

// SaveStatuses upserts per-day instrument flags
func (s *Store) SaveStatuses(statuses []Status) error {
	return s.withTx(func(tx *sqlx.Tx) error {
		for _, st := range statuses {
			if _, err := tx.Exec(`INSERT OR REPLACE INTO instrument_status
				(symbol, date, high_limit, low_limit, suspended, st) VALUES (?, ?, ?, ?, ?, ?)`,
				st.Symbol, st.Date, st.HighLimit, st.LowLimit, st.Suspended, st.ST); err != nil {
				return fmt.Errorf("failed to save status %s %s: %w", st.Symbol, st.Date, err)
			}
		}
		return nil
	})
}

// SaveFundamentals upserts valuation records
func (s *Store) SaveFundamentals(records []Fundamental) error {
	return s.withTx(func(tx *sqlx.Tx) error {
		for _, f := range records {
			if _, err := tx.Exec(`INSERT OR REPLACE INTO fundamentals
				(symbol, date, market_cap) VALUES (?, ?, ?)`,
				f.Symbol, f.Date, f.MarketCap); err != nil {
				return fmt.Errorf("failed to save fundamentals %s %s: %w", f.Symbol, f.Date, err)
			}
		}
		return nil
	})
}

// SaveUniverse upserts universe members
func (s *Store) SaveUniverse(members []UniverseMember) error {
	return s.withTx(func(tx *sqlx.Tx) error {
		for _, m := range members {
			if _, err := tx.Exec(`INSERT OR REPLACE INTO universe (symbol, name, active) VALUES (?, ?, ?)`,
				m.Symbol, m.Name, m.Active); err != nil {
				return fmt.Errorf("failed to save universe member %s: %w", m.Symbol, err)
			}
		}
		return nil
	})
}

// Universe returns the active symbols in symbol order
func (s *Store) Universe() ([]string, error) {
	var symbols []string
	if err := s.db.Select(&symbols, `SELECT symbol FROM universe WHERE active = 1 ORDER BY symbol`); err != nil {
		return nil, fmt.Errorf("failed to load universe: %w", err)
	}
	return symbols, nil
}

func (s *Store) withTx(fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

// latestBars returns up to n bars on or before date, newest first
func (s *Store) latestBars(symbol, date string, n int) ([]Bar, error) {
	var bars []Bar
	err := s.db.Select(&bars, `SELECT symbol, date, open, high, low, close, volume
		FROM daily_prices WHERE symbol = ? AND date <= ?
		ORDER BY date DESC LIMIT ?`, symbol, date, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load bars for %s: %w", symbol, err)
	}
	return bars, nil
}

// CurrentPrice returns the latest close on or before today
func (s *Store) CurrentPrice(symbol string) (float64, error) {
	var price float64
	err := s.db.Get(&price, `SELECT close FROM daily_prices
		WHERE symbol = ? AND date <= ? ORDER BY date DESC LIMIT 1`, symbol, s.today())
	if err != nil {
		return 0, unavailable("price", symbol, err)
	}
	return price, nil
}

var fieldColumns = map[domain.PriceField]string{
	domain.FieldClose: "close",
	domain.FieldOpen:  "open",
	domain.FieldHigh:  "high",
	domain.FieldLow:   "low",
}

// MovingAverage averages field over the last window completed bars (before today)
func (s *Store) MovingAverage(symbol string, window int, field domain.PriceField) (float64, error) {
	column, ok := fieldColumns[field]
	if !ok {
		return 0, fmt.Errorf("unknown price field %q", field)
	}
	if window <= 0 {
		return 0, fmt.Errorf("%w: moving average window %d", domain.ErrInvalidConfig, window)
	}

	var desc []float64
	query := fmt.Sprintf(`SELECT %s FROM daily_prices
		WHERE symbol = ? AND date < ? ORDER BY date DESC LIMIT ?`, column)
	if err := s.db.Select(&desc, query, symbol, s.today(), window); err != nil {
		return 0, fmt.Errorf("failed to load %s history for %s: %w", column, symbol, err)
	}

	values := make([]float64, len(desc))
	for i, v := range desc {
		values[len(desc)-1-i] = v
	}

	ma, ok := formulas.SMA(values, window)
	if !ok {
		return 0, fmt.Errorf("MA%d for %s needs %d bars, have %d: %w",
			window, symbol, window, len(values), domain.ErrDataUnavailable)
	}
	return ma, nil
}

// status returns today's status row, or a zero status when none is stored
func (s *Store) status(symbol string) (Status, error) {
	var st Status
	err := s.db.Get(&st, `SELECT symbol, date, high_limit, low_limit, suspended, st
		FROM instrument_status WHERE symbol = ? AND date = ?`, symbol, s.today())
	if errors.Is(err, sql.ErrNoRows) {
		return Status{Symbol: symbol, Date: s.today()}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("failed to load status for %s: %w", symbol, err)
	}
	return st, nil
}

// PriceLimits returns today's limit band and open. The band is 0/0 when none is stored.
func (s *Store) PriceLimits(symbol string) (float64, float64, float64, error) {
	st, err := s.status(symbol)
	if err != nil {
		return 0, 0, 0, err
	}

	var open float64
	err = s.db.Get(&open, `SELECT open FROM daily_prices WHERE symbol = ? AND date = ?`, symbol, s.today())
	if err != nil {
		return 0, 0, 0, unavailable("day open", symbol, err)
	}
	return st.HighLimit, st.LowLimit, open, nil
}

// Instrument assembles today's snapshot. An instrument without a bar today is
// reported as suspended.
func (s *Store) Instrument(symbol string) (domain.Instrument, error) {
	today := s.today()
	bars, err := s.latestBars(symbol, today, 2)
	if err != nil {
		return domain.Instrument{}, err
	}
	if len(bars) == 0 {
		return domain.Instrument{}, fmt.Errorf("no bars for %s: %w", symbol, domain.ErrDataUnavailable)
	}

	st, err := s.status(symbol)
	if err != nil {
		return domain.Instrument{}, err
	}

	inst := domain.Instrument{
		Symbol:    symbol,
		Close:     bars[0].Close,
		DayOpen:   bars[0].Open,
		HighLimit: st.HighLimit,
		LowLimit:  st.LowLimit,
		Suspended: st.Suspended || bars[0].Date != today,
		ST:        st.ST,
	}
	if len(bars) > 1 {
		inst.PreClose = bars[1].Close
	}

	if mc, err := s.MarketCap(symbol, s.clock.Now()); err == nil {
		inst.MarketCap = mc
	}
	return inst, nil
}

// IsSuspended reports today's suspension flag
func (s *Store) IsSuspended(symbol string) (bool, error) {
	inst, err := s.Instrument(symbol)
	if err != nil {
		return false, err
	}
	return inst.Suspended, nil
}

// IsST reports today's special-treatment flag
func (s *Store) IsST(symbol string) (bool, error) {
	st, err := s.status(symbol)
	if err != nil {
		return false, err
	}
	return st.ST, nil
}

// MarketCap returns the latest market capitalization on or before date
func (s *Store) MarketCap(symbol string, date time.Time) (float64, error) {
	var mc float64
	err := s.db.Get(&mc, `SELECT market_cap FROM fundamentals
		WHERE symbol = ? AND date <= ? ORDER BY date DESC LIMIT 1`, symbol, date.Format(DateLayout))
	if err != nil {
		return 0, unavailable("market cap", symbol, err)
	}
	return mc, nil
}
