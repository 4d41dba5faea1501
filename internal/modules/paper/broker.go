// Package paper is a simulated broker: it holds cash and positions, fills orders
// at the cycle price in whole lots and keeps its account in the paper database.
package paper

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/xfw5/Market-Research/internal/database"
	"github.com/xfw5/Market-Research/internal/domain"
)

// Options configures the paper broker
type Options struct {
	LotSize      int
	StartingCash float64
}

type holding struct {
	quantity int64
	avgCost  decimal.Decimal
}

// Fill is one executed paper trade
type Fill struct {
	OrderID    string           `json:"order_id"`
	Symbol     string           `json:"symbol"`
	Side       domain.OrderSide `json:"side"`
	Quantity   int64            `json:"quantity"`
	Price      float64          `json:"price"`
	Amount     float64          `json:"amount"`
	ExecutedAt int64            `json:"executed_at"`
}

// Broker implements domain.Portfolio and domain.OrderGateway
type Broker struct {
	db     *sql.DB
	market domain.MarketData
	clock  domain.Clock
	lot    int64
	log    zerolog.Logger

	mu       sync.Mutex
	cash     decimal.Decimal
	holdings map[string]*holding
}

// NewBroker loads the account from db, creating it with StartingCash on first use
func NewBroker(db *sql.DB, market domain.MarketData, opts Options, clock domain.Clock, log zerolog.Logger) (*Broker, error) {
	if opts.LotSize <= 0 {
		return nil, fmt.Errorf("%w: lot size must be positive", domain.ErrInvalidConfig)
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}

	b := &Broker{
		db:       db,
		market:   market,
		clock:    clock,
		lot:      int64(opts.LotSize),
		log:      log.With().Str("component", "paper_broker").Logger(),
		holdings: make(map[string]*holding),
	}

	if err := b.load(opts.StartingCash); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Broker) load(startingCash float64) error {
	var cash string
	err := b.db.QueryRow(`SELECT cash FROM paper_account WHERE id = 1`).Scan(&cash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		b.cash = decimal.NewFromFloat(startingCash)
		if _, err := b.db.Exec(`INSERT INTO paper_account (id, cash, updated_at) VALUES (1, ?, ?)`,
			b.cash.String(), b.clock.Now().Unix()); err != nil {
			return fmt.Errorf("failed to create paper account: %w", err)
		}
		b.log.Info().Str("cash", b.cash.StringFixed(2)).Msg("Paper account created")
		return nil
	case err != nil:
		return fmt.Errorf("failed to load paper account: %w", err)
	}

	if b.cash, err = decimal.NewFromString(cash); err != nil {
		return fmt.Errorf("corrupt paper cash %q: %w", cash, err)
	}

	rows, err := b.db.Query(`SELECT symbol, quantity, average_cost FROM paper_positions`)
	if err != nil {
		return fmt.Errorf("failed to load paper positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var symbol, avg string
		var qty int64
		if err := rows.Scan(&symbol, &qty, &avg); err != nil {
			return fmt.Errorf("failed to scan paper position: %w", err)
		}
		cost, err := decimal.NewFromString(avg)
		if err != nil {
			return fmt.Errorf("corrupt average cost for %s: %w", symbol, err)
		}
		b.holdings[symbol] = &holding{quantity: qty, avgCost: cost}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	b.log.Info().
		Str("cash", b.cash.StringFixed(2)).
		Int("positions", len(b.holdings)).
		Msg("Paper account loaded")
	return nil
}

// Cash implements domain.Portfolio
func (b *Broker) Cash() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash.InexactFloat64()
}

// priceOf returns the market price, falling back to cost when unavailable
func (b *Broker) priceOf(symbol string, h *holding) decimal.Decimal {
	if p, err := b.market.CurrentPrice(symbol); err == nil && p > 0 {
		return decimal.NewFromFloat(p)
	}
	return h.avgCost
}

// UsedCapital implements domain.Portfolio: market value of all holdings
func (b *Broker) UsedCapital() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	used := decimal.Zero
	for symbol, h := range b.holdings {
		used = used.Add(b.priceOf(symbol, h).Mul(decimal.NewFromInt(h.quantity)))
	}
	return used.InexactFloat64()
}

// Positions implements domain.Portfolio, sorted by symbol
func (b *Broker) Positions() []domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.Position, 0, len(b.holdings))
	for symbol, h := range b.holdings {
		out = append(out, domain.Position{
			Symbol:       symbol,
			Quantity:     float64(h.quantity),
			AverageCost:  h.avgCost.InexactFloat64(),
			CurrentPrice: b.priceOf(symbol, h).InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (b *Broker) reject(symbol string, side domain.OrderSide, reason string) *domain.OrderResult {
	b.log.Warn().
		Str("symbol", symbol).
		Str("side", string(side)).
		Str("reason", reason).
		Msg("Paper order rejected")
	return &domain.OrderResult{
		OrderID:    uuid.New().String(),
		Symbol:     symbol,
		Side:       side,
		Status:     domain.OrderStatusRejected,
		Reason:     reason,
		ExecutedAt: b.clock.Now(),
	}
}

// SubmitTargetValueOrder moves the holding of symbol toward notional.
// Quantities are whole lots; buys are trimmed to the available cash.
func (b *Broker) SubmitTargetValueOrder(symbol string, notional float64) (*domain.OrderResult, error) {
	price, err := b.market.CurrentPrice(symbol)
	if err != nil || price <= 0 {
		return b.reject(symbol, domain.OrderSideBuy, "price unavailable"), nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p := decimal.NewFromFloat(price)
	lotValue := p.Mul(decimal.NewFromInt(b.lot))

	h := b.holdings[symbol]
	current := decimal.Zero
	if h != nil {
		current = p.Mul(decimal.NewFromInt(h.quantity))
	}
	delta := decimal.NewFromFloat(notional).Sub(current)

	if delta.IsNegative() {
		lots := delta.Neg().Div(lotValue).Floor().IntPart()
		qty := lots * b.lot
		if qty > h.quantity {
			qty = h.quantity
		}
		if qty <= 0 {
			return b.reject(symbol, domain.OrderSideSell, "reduction below one lot"), nil
		}
		return b.sell(symbol, qty, p)
	}

	affordable := decimal.Min(delta, b.cash)
	lots := affordable.Div(lotValue).Floor().IntPart()
	if lots < 1 {
		reason := "quantity below one lot"
		if b.cash.LessThan(lotValue) {
			reason = "insufficient cash"
		}
		return b.reject(symbol, domain.OrderSideBuy, reason), nil
	}
	return b.buy(symbol, lots*b.lot, p)
}

// SubmitCloseOrder sells the whole holding of symbol
func (b *Broker) SubmitCloseOrder(symbol string) (*domain.OrderResult, error) {
	price, err := b.market.CurrentPrice(symbol)

	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.holdings[symbol]
	if !ok {
		return b.reject(symbol, domain.OrderSideSell, "no position"), nil
	}
	if err != nil || price <= 0 {
		return b.reject(symbol, domain.OrderSideSell, "price unavailable"), nil
	}
	return b.sell(symbol, h.quantity, decimal.NewFromFloat(price))
}

// buy executes under b.mu
func (b *Broker) buy(symbol string, qty int64, price decimal.Decimal) (*domain.OrderResult, error) {
	amount := price.Mul(decimal.NewFromInt(qty))
	h := b.holdings[symbol]

	next := &holding{quantity: qty, avgCost: price}
	if h != nil {
		total := h.avgCost.Mul(decimal.NewFromInt(h.quantity)).Add(amount)
		next.quantity = h.quantity + qty
		next.avgCost = total.Div(decimal.NewFromInt(next.quantity))
	}
	cash := b.cash.Sub(amount)

	result := b.result(symbol, domain.OrderSideBuy, qty, price, next.avgCost)
	if err := b.persist(result, amount, cash, symbol, next); err != nil {
		return nil, err
	}

	b.cash = cash
	b.holdings[symbol] = next
	b.logFill(result, amount)
	return result, nil
}

// sell executes under b.mu
func (b *Broker) sell(symbol string, qty int64, price decimal.Decimal) (*domain.OrderResult, error) {
	h := b.holdings[symbol]
	amount := price.Mul(decimal.NewFromInt(qty))
	cash := b.cash.Add(amount)

	var next *holding
	if remaining := h.quantity - qty; remaining > 0 {
		next = &holding{quantity: remaining, avgCost: h.avgCost}
	}

	result := b.result(symbol, domain.OrderSideSell, qty, price, h.avgCost)
	if err := b.persist(result, amount, cash, symbol, next); err != nil {
		return nil, err
	}

	b.cash = cash
	if next == nil {
		delete(b.holdings, symbol)
	} else {
		b.holdings[symbol] = next
	}
	b.logFill(result, amount)
	return result, nil
}

func (b *Broker) result(symbol string, side domain.OrderSide, qty int64, price, avgCost decimal.Decimal) *domain.OrderResult {
	return &domain.OrderResult{
		OrderID:     uuid.New().String(),
		Symbol:      symbol,
		Side:        side,
		Status:      domain.OrderStatusFilled,
		FilledQty:   float64(qty),
		Price:       price.InexactFloat64(),
		AverageCost: avgCost.InexactFloat64(),
		ExecutedAt:  b.clock.Now(),
	}
}

// persist writes the fill, the new cash and the new holding (nil = closed) atomically
func (b *Broker) persist(r *domain.OrderResult, amount, cash decimal.Decimal, symbol string, next *holding) error {
	now := r.ExecutedAt.Unix()
	return database.WithTransaction(b.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO paper_fills
			(order_id, symbol, side, quantity, price, amount, executed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.OrderID, symbol, string(r.Side), int64(r.FilledQty),
			decimal.NewFromFloat(r.Price).String(), amount.String(), now); err != nil {
			return fmt.Errorf("failed to record fill: %w", err)
		}
		if _, err := tx.Exec(`UPDATE paper_account SET cash = ?, updated_at = ? WHERE id = 1`,
			cash.String(), now); err != nil {
			return fmt.Errorf("failed to update cash: %w", err)
		}
		if next == nil {
			_, err := tx.Exec(`DELETE FROM paper_positions WHERE symbol = ?`, symbol)
			return err
		}
		_, err := tx.Exec(`INSERT INTO paper_positions (symbol, quantity, average_cost, opened_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(symbol) DO UPDATE SET quantity = excluded.quantity, average_cost = excluded.average_cost`,
			symbol, next.quantity, next.avgCost.String(), now)
		return err
	})
}

// logFill mirrors every executed order into the log with its economics
func (b *Broker) logFill(r *domain.OrderResult, amount decimal.Decimal) {
	b.log.Info().
		Str("order_id", r.OrderID).
		Str("symbol", r.Symbol).
		Str("side", string(r.Side)).
		Float64("quantity", r.FilledQty).
		Float64("price", r.Price).
		Str("amount", amount.StringFixed(2)).
		Float64("average_cost", r.AverageCost).
		Str("cash", b.cash.StringFixed(2)).
		Msg("Paper order filled")
}

// Fills returns the most recent fills, newest first
func (b *Broker) Fills(limit int) ([]Fill, error) {
	rows, err := b.db.Query(`SELECT order_id, symbol, side, quantity, price, amount, executed_at
		FROM paper_fills ORDER BY executed_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fills: %w", err)
	}
	defer rows.Close()

	var fills []Fill
	for rows.Next() {
		var f Fill
		var side, price, amount string
		if err := rows.Scan(&f.OrderID, &f.Symbol, &side, &f.Quantity, &price, &amount, &f.ExecutedAt); err != nil {
			return nil, err
		}
		f.Side = domain.OrderSide(side)
		if p, err := decimal.NewFromString(price); err == nil {
			f.Price = p.InexactFloat64()
		}
		if a, err := decimal.NewFromString(amount); err == nil {
			f.Amount = a.InexactFloat64()
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}
