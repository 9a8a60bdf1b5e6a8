package repository

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"TradeSentinel/internal/model"
)

// SQLiteRepository persists trading state to a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRepository opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite repository opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS instruments (
			symbol TEXT PRIMARY KEY,
			name   TEXT,
			kind   TEXT,
			active INTEGER NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS positions (
			symbol         TEXT PRIMARY KEY,
			quantity       REAL NOT NULL,
			entry_price    REAL NOT NULL,
			entry_time     INTEGER NOT NULL,
			last_price     REAL,
			unrealized_pnl REAL
		)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id           TEXT PRIMARY KEY,
			symbol       TEXT NOT NULL,
			action       TEXT NOT NULL,
			quantity     REAL NOT NULL,
			price        REAL NOT NULL,
			timestamp    INTEGER NOT NULL,
			escalated    INTEGER NOT NULL DEFAULT 0,
			realized_pnl REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol_ts ON trades(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS decisions (
			id            TEXT PRIMARY KEY,
			symbol        TEXT NOT NULL,
			action        TEXT NOT NULL,
			confidence    REAL,
			size_fraction REAL,
			source        TEXT,
			remote_origin INTEGER NOT NULL DEFAULT 0,
			reasoning     TEXT,
			outcome       TEXT NOT NULL,
			verdict       TEXT,
			comments      TEXT,
			reason        TEXT,
			escalated     INTEGER NOT NULL DEFAULT 0,
			quantity      REAL,
			price         REAL,
			created_at    INTEGER NOT NULL,
			executed_at   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_outcome ON decisions(outcome)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRepository) UpsertInstrument(inst model.Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO instruments (symbol, name, kind, active)
		VALUES (?,?,?,?)
		ON CONFLICT(symbol) DO UPDATE SET name=excluded.name, kind=excluded.kind, active=excluded.active`,
		inst.Symbol, inst.Name, string(inst.Kind), boolToInt(inst.Active),
	)
	return err
}

func (r *SQLiteRepository) Instruments() ([]model.Instrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT symbol, name, kind, active FROM instruments ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		var inst model.Instrument
		var kind string
		var active int
		if err := rows.Scan(&inst.Symbol, &inst.Name, &kind, &active); err != nil {
			return nil, err
		}
		inst.Kind = model.InstrumentKind(kind)
		inst.Active = active != 0
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SavePosition(pos model.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO positions
		(symbol, quantity, entry_price, entry_time, last_price, unrealized_pnl)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(symbol) DO UPDATE SET
			quantity=excluded.quantity,
			entry_price=excluded.entry_price,
			entry_time=excluded.entry_time,
			last_price=excluded.last_price,
			unrealized_pnl=excluded.unrealized_pnl`,
		pos.Symbol, pos.Quantity, pos.EntryPrice, pos.EntryTime.Unix(),
		pos.LastPrice, pos.UnrealizedPnL,
	)
	return err
}

func (r *SQLiteRepository) DeletePosition(symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`DELETE FROM positions WHERE symbol = ?`, symbol)
	return err
}

func (r *SQLiteRepository) Positions() ([]model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT symbol, quantity, entry_price, entry_time, last_price, unrealized_pnl
		FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		var pos model.Position
		var entryTime int64
		if err := rows.Scan(&pos.Symbol, &pos.Quantity, &pos.EntryPrice, &entryTime,
			&pos.LastPrice, &pos.UnrealizedPnL); err != nil {
			return nil, err
		}
		pos.EntryTime = time.Unix(entryTime, 0).UTC()
		out = append(out, pos)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AppendTrade(trade model.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO trades
		(id, symbol, action, quantity, price, timestamp, escalated, realized_pnl)
		VALUES (?,?,?,?,?,?,?,?)`,
		trade.ID, trade.Symbol, string(trade.Action), trade.Quantity, trade.Price,
		trade.Time.Unix(), boolToInt(trade.Escalated), trade.RealizedPnL,
	)
	return err
}

func (r *SQLiteRepository) TradesBetween(symbol string, from, to time.Time) ([]model.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, symbol, action, quantity, price, timestamp, escalated, realized_pnl
		FROM trades
		WHERE symbol = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp`,
		symbol, from.Unix(), to.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Trade
	for rows.Next() {
		var tr model.Trade
		var action string
		var ts int64
		var escalated int
		if err := rows.Scan(&tr.ID, &tr.Symbol, &action, &tr.Quantity, &tr.Price,
			&ts, &escalated, &tr.RealizedPnL); err != nil {
			return nil, err
		}
		tr.Action = model.Action(action)
		tr.Time = time.Unix(ts, 0).UTC()
		tr.Escalated = escalated != 0
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveDecision(d *model.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO decisions
		(id, symbol, action, confidence, size_fraction, source, remote_origin, reasoning,
		 outcome, verdict, comments, reason, escalated, quantity, price, created_at, executed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.Recommendation.Symbol, string(d.Recommendation.Action),
		d.Recommendation.Confidence, d.Recommendation.SizeFraction,
		string(d.Recommendation.Source), boolToInt(d.Recommendation.RemoteOrigin),
		d.Recommendation.Reasoning,
		string(d.Outcome), string(d.Verdict), d.Comments, d.Reason,
		boolToInt(d.Escalated), d.Quantity, d.Price,
		d.CreatedAt.Unix(), timeOrZero(d.ExecutedAt),
	)
	return err
}

func (r *SQLiteRepository) UpdateDecision(d *model.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`UPDATE decisions SET
		outcome=?, verdict=?, comments=?, reason=?, escalated=?, quantity=?, price=?, executed_at=?
		WHERE id=?`,
		string(d.Outcome), string(d.Verdict), d.Comments, d.Reason,
		boolToInt(d.Escalated), d.Quantity, d.Price, timeOrZero(d.ExecutedAt), d.ID,
	)
	return err
}

func (r *SQLiteRepository) PlannedDecisions() ([]model.Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, symbol, action, confidence, size_fraction, source,
		remote_origin, reasoning, outcome, verdict, comments, reason, escalated,
		quantity, price, created_at, executed_at
		FROM decisions WHERE outcome = ? ORDER BY created_at`,
		string(model.OutcomePlanned),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Decision
	for rows.Next() {
		var d model.Decision
		var action, source, outcome, verdict string
		var remoteOrigin, escalated int
		var createdAt, executedAt int64
		if err := rows.Scan(&d.ID, &d.Recommendation.Symbol, &action,
			&d.Recommendation.Confidence, &d.Recommendation.SizeFraction, &source,
			&remoteOrigin, &d.Recommendation.Reasoning,
			&outcome, &verdict, &d.Comments, &d.Reason, &escalated,
			&d.Quantity, &d.Price, &createdAt, &executedAt); err != nil {
			return nil, err
		}
		d.Recommendation.Action = model.Action(action)
		d.Recommendation.Source = model.Tier(source)
		d.Recommendation.RemoteOrigin = remoteOrigin != 0
		d.Outcome = model.Outcome(outcome)
		d.Verdict = model.Verdict(verdict)
		d.Escalated = escalated != 0
		d.CreatedAt = time.Unix(createdAt, 0).UTC()
		if executedAt > 0 {
			d.ExecutedAt = time.Unix(executedAt, 0).UTC()
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	log.Println("[INFO] closing sqlite repository")
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
