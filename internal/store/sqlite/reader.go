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

// Reader provides read-only access to SQLite for history backfill and state restore.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string, log *slog.Logger) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	if log != nil {
		log.Info("opened reader", slog.String("path", dbPath))
	}
	return &Reader{db: db}, nil
}

// LoadPriceSeries returns one asset's samples from the lookback window,
// ordered oldest to newest for correct indicator input. An asset with no
// stored history yields an empty series, not an error.
func (r *Reader) LoadPriceSeries(ctx context.Context, asset string, lookbackDays int) (model.PriceSeries, error) {
	cutoff := time.Now().AddDate(0, 0, -lookbackDays).UnixMilli()

	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, price FROM price_history
		WHERE asset = ? AND ts >= ?
		ORDER BY ts ASC, id ASC
	`, asset, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sqlite query price_history: %w", err)
	}
	defer rows.Close()

	var series model.PriceSeries
	for rows.Next() {
		var p model.PricePoint
		if err := rows.Scan(&p.TS, &p.Price); err != nil {
			return nil, fmt.Errorf("sqlite scan price_history: %w", err)
		}
		series = append(series, p)
	}
	return series, rows.Err()
}

// LoadDailyState returns the stored state for the given day key, or a fresh
// empty state when the day has no row yet.
func (r *Reader) LoadDailyState(ctx context.Context, date string) (*model.DailyState, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM daily_state WHERE date = ?`, date).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.NewDailyState(date), nil
		}
		return nil, fmt.Errorf("sqlite read daily state: %w", err)
	}

	var state model.DailyState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("unmarshal daily state: %w", err)
	}
	if state.Trades == nil {
		state.Trades = make([]model.TradeRecord, 0, 8)
	}
	return &state, nil
}

// LatestSnapshot loads the most recent portfolio snapshot, or nil when none exists.
func (r *Reader) LatestSnapshot(ctx context.Context) (*model.Portfolio, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `
		SELECT data FROM portfolio_snapshots
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite read snapshot: %w", err)
	}

	var pf model.Portfolio
	if err := json.Unmarshal([]byte(data), &pf); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &pf, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
