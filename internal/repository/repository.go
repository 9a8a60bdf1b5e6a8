package repository

import (
	"time"

	"TradeSentinel/internal/model"
)

// Repository persists instruments, positions, trades, and decisions. The
// trade query backs the once-per-day rule; planned decisions are re-read when
// the market next opens. Implementations must be safe for concurrent use.
type Repository interface {
	UpsertInstrument(inst model.Instrument) error
	Instruments() ([]model.Instrument, error)

	SavePosition(pos model.Position) error
	DeletePosition(symbol string) error
	Positions() ([]model.Position, error)

	AppendTrade(trade model.Trade) error
	TradesBetween(symbol string, from, to time.Time) ([]model.Trade, error)

	SaveDecision(d *model.Decision) error
	UpdateDecision(d *model.Decision) error
	PlannedDecisions() ([]model.Decision, error)

	Close() error
}
