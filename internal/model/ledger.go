package model

import "time"

// Position is an open holding in the paper ledger. Quantity is always
// positive while the position is open; closed positions are removed.
type Position struct {
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	EntryPrice    float64   `json:"entry_price"`
	EntryTime     time.Time `json:"entry_time"`
	LastPrice     float64   `json:"last_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
}

// MarketValue returns the position value at the last seen price.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.LastPrice
}

// Trade is an immutable, append-only record of an executed order.
type Trade struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Action      Action    `json:"action"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Time        time.Time `json:"time"`
	Escalated   bool      `json:"escalated"`
	RealizedPnL float64   `json:"realized_pnl"`
}

// LedgerState is the persisted snapshot of the paper account.
type LedgerState struct {
	Cash      float64             `json:"cash"`
	Positions map[string]Position `json:"positions"`
	Trades    []Trade             `json:"trades"`
	UpdatedAt time.Time           `json:"updated_at"`
}
