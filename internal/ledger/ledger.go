// Package ledger implements the authoritative paper-trading account: cash,
// open positions, and the append-only trade log. Every mutation passes
// through one exclusive gate so concurrent signals cannot race on the shared
// cash balance.
package ledger

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"TradeSentinel/internal/model"
)

var (
	ErrInsufficientCash     = errors.New("insufficient cash")
	ErrNoPosition           = errors.New("no open position")
	ErrInsufficientQuantity = errors.New("sell quantity exceeds position")
)

// Ledger guards all account state behind a single mutex. Buy and sell are
// all-or-nothing: state is validated before any field is touched.
type Ledger struct {
	mu       sync.Mutex
	state    *model.LedgerState
	filePath string
	now      func() time.Time
}

// New creates a Ledger, loading state from disk or seeding a fresh account
// with the initial cash balance.
func New(filePath string, initialCash float64) (*Ledger, error) {
	state, err := LoadState(filePath)
	if err != nil {
		return nil, err
	}
	if state.Positions == nil {
		state.Positions = make(map[string]model.Position)
	}

	// Fresh account: no cash, no history
	if state.Cash == 0 && len(state.Trades) == 0 && len(state.Positions) == 0 {
		state.Cash = initialCash
	}

	l := &Ledger{state: state, filePath: filePath, now: time.Now}
	if err := l.save(); err != nil {
		return nil, err
	}
	return l, nil
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Cash
}

// Position returns the open position for a symbol, if any.
func (l *Ledger) Position(symbol string) (model.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.state.Positions[symbol]
	return pos, ok
}

// Positions returns all open positions ordered by symbol.
func (l *Ledger) Positions() []model.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positionsLocked()
}

func (l *Ledger) positionsLocked() []model.Position {
	out := make([]model.Position, 0, len(l.state.Positions))
	for _, pos := range l.state.Positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Trades returns a copy of the trade history.
func (l *Ledger) Trades() []model.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Trade, len(l.state.Trades))
	copy(out, l.state.Trades)
	return out
}

// TotalValue returns cash plus the market value of all open positions at
// their last seen prices.
func (l *Ledger) TotalValue() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := l.state.Cash
	for _, pos := range l.state.Positions {
		total += pos.MarketValue()
	}
	return total
}

// ExecuteBuy atomically debits cash, opens or increases the position, and
// appends a trade. Fails without side effects when cash is insufficient.
func (l *Ledger) ExecuteBuy(symbol string, quantity, price float64, escalated bool) (model.Trade, error) {
	if quantity <= 0 || price <= 0 {
		return model.Trade{}, fmt.Errorf("buy %s: quantity and price must be positive", symbol)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cost := quantity * price
	if cost > l.state.Cash {
		return model.Trade{}, fmt.Errorf("buy %s: cost %.2f > cash %.2f: %w", symbol, cost, l.state.Cash, ErrInsufficientCash)
	}

	now := l.now()
	l.state.Cash -= cost

	if pos, ok := l.state.Positions[symbol]; ok {
		// Average up the entry price across the combined position
		totalCost := pos.Quantity*pos.EntryPrice + cost
		pos.Quantity += quantity
		pos.EntryPrice = totalCost / pos.Quantity
		pos.LastPrice = price
		pos.UnrealizedPnL = pos.Quantity * (price - pos.EntryPrice)
		l.state.Positions[symbol] = pos
	} else {
		l.state.Positions[symbol] = model.Position{
			Symbol:     symbol,
			Quantity:   quantity,
			EntryPrice: price,
			EntryTime:  now,
			LastPrice:  price,
		}
	}

	trade := model.Trade{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Action:    model.ActionBuy,
		Quantity:  quantity,
		Price:     price,
		Time:      now,
		Escalated: escalated,
	}
	l.state.Trades = append(l.state.Trades, trade)

	if err := l.save(); err != nil {
		log.Printf("[ERROR] failed to save ledger state: %v", err)
	}
	return trade, nil
}

// ExecuteSell atomically credits cash, decreases or closes the position, and
// appends a trade with the realized P&L. Fails without side effects when the
// position is missing or too small.
func (l *Ledger) ExecuteSell(symbol string, quantity, price float64, escalated bool) (model.Trade, error) {
	if quantity <= 0 || price <= 0 {
		return model.Trade{}, fmt.Errorf("sell %s: quantity and price must be positive", symbol)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.state.Positions[symbol]
	if !ok {
		return model.Trade{}, fmt.Errorf("sell %s: %w", symbol, ErrNoPosition)
	}
	if quantity > pos.Quantity+quantityEpsilon {
		return model.Trade{}, fmt.Errorf("sell %s: %.4f > held %.4f: %w", symbol, quantity, pos.Quantity, ErrInsufficientQuantity)
	}

	now := l.now()
	l.state.Cash += quantity * price

	realized := quantity * (price - pos.EntryPrice)
	pos.Quantity -= quantity
	if pos.Quantity <= quantityEpsilon {
		delete(l.state.Positions, symbol)
	} else {
		pos.LastPrice = price
		pos.UnrealizedPnL = pos.Quantity * (price - pos.EntryPrice)
		l.state.Positions[symbol] = pos
	}

	trade := model.Trade{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		Action:      model.ActionSell,
		Quantity:    quantity,
		Price:       price,
		Time:        now,
		Escalated:   escalated,
		RealizedPnL: realized,
	}
	l.state.Trades = append(l.state.Trades, trade)

	if err := l.save(); err != nil {
		log.Printf("[ERROR] failed to save ledger state: %v", err)
	}
	return trade, nil
}

const quantityEpsilon = 1e-4

// MarkToMarket revalues every open position at the supplied prices without
// touching cash or trade history. Symbols absent from prices keep their last
// seen price.
func (l *Ledger) MarkToMarket(prices map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for symbol, pos := range l.state.Positions {
		price, ok := prices[symbol]
		if !ok || price <= 0 {
			continue
		}
		pos.LastPrice = price
		pos.UnrealizedPnL = pos.Quantity * (price - pos.EntryPrice)
		l.state.Positions[symbol] = pos
	}

	if err := l.save(); err != nil {
		log.Printf("[ERROR] failed to save ledger state after revaluation: %v", err)
	}
}

func (l *Ledger) save() error {
	return SaveState(l.filePath, l.state)
}
