package execution

import (
	"database/sql"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"cryptopaper/internal/model"
)

// Journal persists paper trade fills to SQLite for analysis and audit.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string, log *slog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_id        TEXT NOT NULL,
		asset           TEXT NOT NULL,
		action          TEXT NOT NULL,
		trade_percent   REAL NOT NULL,
		trade_value     REAL NOT NULL,
		price           REAL NOT NULL,
		amount          REAL NOT NULL,
		composite_score REAL NOT NULL,
		reason          TEXT,
		executed_at     INTEGER NOT NULL,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_asset ON trades(asset);
	CREATE INDEX IF NOT EXISTS idx_trades_executed_at ON trades(executed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	if log != nil {
		log.Info("opened trade journal", slog.String("path", dbPath))
	}
	return &Journal{db: db}, nil
}

// Record persists one fill to the journal.
func (j *Journal) Record(rec model.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO trades (trade_id, asset, action, trade_percent, trade_value, price, amount, composite_score, reason, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Asset,
		string(rec.Action),
		rec.TradePercent,
		rec.TradeValue,
		rec.Price,
		rec.Amount,
		rec.CompositeScore,
		rec.Reason,
		rec.ExecutedAt,
	)
	return err
}

// Recent returns the last N fills, newest first.
func (j *Journal) Recent(limit int) ([]model.TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT trade_id, asset, action, trade_percent, trade_value, price, amount, composite_score, reason, executed_at
		 FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TradeRecord
	for rows.Next() {
		var r model.TradeRecord
		var action string
		if err := rows.Scan(&r.ID, &r.Asset, &action, &r.TradePercent, &r.TradeValue,
			&r.Price, &r.Amount, &r.CompositeScore, &r.Reason, &r.ExecutedAt); err != nil {
			return nil, err
		}
		r.Action = model.Action(action)
		r.Status = "FILLED"
		r.Type = "PAPER_TRADE"
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
