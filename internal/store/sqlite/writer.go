// Package sqlite persists price history, daily trading state, and portfolio
// snapshots. Writes go through a single-connection Writer; Reader opens its
// own small pool so backfill reads never contend with the write path.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cryptopaper/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Snapshots kept after each prune.
const snapshotKeep = 30

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/history.db"
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db  *sql.DB
	log *slog.Logger
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig, log *slog.Logger) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}
	log.Info("opened database", slog.String("path", cfg.DBPath))
	return &Writer{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS price_history (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			asset TEXT    NOT NULL,
			ts    INTEGER NOT NULL,
			price REAL    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_price_history_asset_ts ON price_history(asset, ts);

		CREATE TABLE IF NOT EXISTS daily_state (
			date       TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS portfolio_snapshots (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			data       TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	return err
}

// AppendPrices inserts one asset's sampled prices in a single transaction.
// Rows are keyed by rowid, not (asset, ts), so repeated samples at the same
// millisecond all survive and series length tracks sample count exactly.
func (w *Writer) AppendPrices(ctx context.Context, asset string, points []model.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO price_history (asset, ts, price) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(asset, p.TS, p.Price); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// AppendPrice records a single price sample.
func (w *Writer) AppendPrice(ctx context.Context, asset string, p model.PricePoint) error {
	_, err := w.db.ExecContext(ctx,
		`INSERT INTO price_history (asset, ts, price) VALUES (?, ?, ?)`,
		asset, p.TS, p.Price)
	return err
}

// SaveDailyState upserts the state row for its calendar day.
func (w *Writer) SaveDailyState(ctx context.Context, state *model.DailyState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal daily state: %w", err)
	}
	_, err = w.db.ExecContext(ctx, `
		INSERT INTO daily_state (date, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, state.Date, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite save daily state: %w", err)
	}
	return nil
}

// SaveSnapshot appends a portfolio snapshot and prunes old ones.
func (w *Writer) SaveSnapshot(ctx context.Context, pf *model.Portfolio) error {
	data, err := json.Marshal(pf)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if _, err := w.db.ExecContext(ctx, `INSERT INTO portfolio_snapshots (data) VALUES (?)`, string(data)); err != nil {
		return fmt.Errorf("sqlite insert snapshot: %w", err)
	}

	_, err = w.db.ExecContext(ctx, `
		DELETE FROM portfolio_snapshots
		WHERE id NOT IN (SELECT id FROM portfolio_snapshots ORDER BY created_at DESC, id DESC LIMIT ?)
	`, snapshotKeep)
	if err != nil {
		w.log.Warn("prune snapshots", slog.String("error", err.Error()))
	}
	return nil
}

// PrunePrices drops price rows older than the cutoff.
func (w *Writer) PrunePrices(ctx context.Context, before time.Time) (int64, error) {
	res, err := w.db.ExecContext(ctx,
		`DELETE FROM price_history WHERE ts < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		w.log.Info("pruned price history", slog.Int64("rows", n))
	}
	return n, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
