package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"srsignals/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNoRun is returned by LatestRun when no run matches.
var ErrNoRun = errors.New("sqlite: no run recorded")

// Reader provides read-only access to bars, runs and signals.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading. The schema is created if
// missing so a reader can be opened against a fresh file.
func NewReader(dbPath string) (*Reader, error) {
	db, err := open(dbPath, 2)
	if err != nil {
		return nil, err
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// ReadBars returns the bars of one series with ts >= fromUnix, oldest first.
func (r *Reader) ReadBars(ctx context.Context, symbol, interval string, fromUnix int64) ([]model.Bar, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT symbol, interval, ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND interval = ? AND ts >= ?
		ORDER BY ts ASC
	`, symbol, interval, fromUnix)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		var vol sql.NullFloat64
		if err := rows.Scan(&b.Symbol, &b.Interval, &tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &vol); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = time.Unix(tsUnix, 0).UTC()
		b.Volume = vol.Float64
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Series lists every symbol@interval pair that has bars.
func (r *Reader) Series(ctx context.Context) ([][2]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT symbol, interval FROM bars ORDER BY symbol, interval`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query series: %w", err)
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var s [2]string
		if err := rows.Scan(&s[0], &s[1]); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReadSignals returns every stored result of a run in index order.
func (r *Reader) ReadSignals(ctx context.Context, runID string) ([]model.SignalResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, symbol, interval, idx, ts, signal, rejection, resistance, support, level_count
		FROM signals
		WHERE run_id = ?
		ORDER BY symbol, interval, idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	var out []model.SignalResult
	for rows.Next() {
		var s model.SignalResult
		var tsUnix int64
		var sig, rej int
		if err := rows.Scan(&s.RunID, &s.Symbol, &s.Interval, &s.Index, &tsUnix, &sig, &rej,
			&s.Resistance, &s.Support, &s.LevelCount); err != nil {
			return nil, fmt.Errorf("sqlite scan signals: %w", err)
		}
		s.TS = time.Unix(tsUnix, 0).UTC()
		s.Signal, s.Rejection = model.Signal(sig), model.Signal(rej)
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestRun returns the most recent run for a series.
func (r *Reader) LatestRun(ctx context.Context, symbol, interval string) (RunInfo, error) {
	var run RunInfo
	var params string
	var created int64
	err := r.db.QueryRowContext(ctx, `
		SELECT run_id, symbol, interval, params, created_at
		FROM runs
		WHERE symbol = ? AND interval = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, symbol, interval).Scan(&run.ID, &run.Symbol, &run.Interval, &params, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunInfo{}, ErrNoRun
		}
		return RunInfo{}, fmt.Errorf("sqlite read run: %w", err)
	}
	run.Params = []byte(params)
	run.CreatedAt = time.Unix(0, created).UTC()
	return run, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
