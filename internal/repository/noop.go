package repository

import (
	"time"

	"TradeSentinel/internal/model"
)

// NoopRepository is a no-op implementation used when SQLite is not configured.
// Queries return empty results; history-dependent behavior like planned
// decision retry then only covers the current process lifetime.
type NoopRepository struct{}

func NewNoopRepository() *NoopRepository { return &NoopRepository{} }

func (n *NoopRepository) UpsertInstrument(_ model.Instrument) error { return nil }
func (n *NoopRepository) Instruments() ([]model.Instrument, error)  { return nil, nil }
func (n *NoopRepository) SavePosition(_ model.Position) error       { return nil }
func (n *NoopRepository) DeletePosition(_ string) error             { return nil }
func (n *NoopRepository) Positions() ([]model.Position, error)      { return nil, nil }
func (n *NoopRepository) AppendTrade(_ model.Trade) error           { return nil }
func (n *NoopRepository) TradesBetween(_ string, _, _ time.Time) ([]model.Trade, error) {
	return nil, nil
}
func (n *NoopRepository) SaveDecision(_ *model.Decision) error      { return nil }
func (n *NoopRepository) UpdateDecision(_ *model.Decision) error    { return nil }
func (n *NoopRepository) PlannedDecisions() ([]model.Decision, error) { return nil, nil }
func (n *NoopRepository) Close() error                              { return nil }
