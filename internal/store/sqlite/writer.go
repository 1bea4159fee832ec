package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"srsignals/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath     string // path to SQLite database file, e.g. "data/signals.db"
	BatchSize  int    // live signal batch size, default 100
	FlushDelay time.Duration

	// OnCommit, if set, observes every committed batch.
	OnCommit func(rows int, d time.Duration)
}

// RunInfo describes one detector run.
type RunInfo struct {
	ID        string          `json:"run_id"`
	Symbol    string          `json:"symbol"`
	Interval  string          `json:"interval"`
	Params    json.RawMessage `json:"params"`
	CreatedAt time.Time       `json:"created_at"`
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db  *sql.DB
	cfg WriterConfig
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database in WAL mode and creates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = defaultFlushDelay
	}

	db, err := open(cfg.DBPath, 1)
	if err != nil {
		return nil, err
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db, cfg: cfg}, nil
}

// WriteBars upserts bars in one transaction. Invalid bars abort the batch.
func (w *Writer) WriteBars(ctx context.Context, bars []model.Bar) error {
	for i := range bars {
		if err := bars[i].Validate(); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
	}
	return w.inTx(ctx, `
		INSERT OR REPLACE INTO bars (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, len(bars), func(stmt *sql.Stmt, i int) error {
		b := &bars[i]
		_, err := stmt.ExecContext(ctx, b.Symbol, b.Interval, b.TS.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume)
		return err
	})
}

// SaveRun records the parameters a run was evaluated with.
func (w *Writer) SaveRun(ctx context.Context, run RunInfo) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	params := run.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	_, err := w.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (run_id, symbol, interval, params, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Symbol, run.Interval, string(params), run.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite save run: %w", err)
	}
	return nil
}

// WriteSignals upserts signal results in one transaction.
func (w *Writer) WriteSignals(ctx context.Context, results []model.SignalResult) error {
	return w.inTx(ctx, `
		INSERT OR REPLACE INTO signals
			(run_id, symbol, interval, idx, ts, signal, rejection, resistance, support, level_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(results), func(stmt *sql.Stmt, i int) error {
		r := &results[i]
		_, err := stmt.ExecContext(ctx, r.RunID, r.Symbol, r.Interval, r.Index, r.TS.Unix(),
			int(r.Signal), int(r.Rejection), r.Resistance, r.Support, r.LevelCount)
		return err
	})
}

// Run reads signals from ch and inserts them in batched transactions.
// Flushes every BatchSize signals OR every FlushDelay, whichever first.
// Blocks until ctx is cancelled or ch is closed.
func (w *Writer) Run(ctx context.Context, ch <-chan model.SignalResult) {
	batch := make([]model.SignalResult, 0, w.cfg.BatchSize)
	timer := time.NewTimer(w.cfg.FlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// ctx may already be cancelled on shutdown; the final flush still commits
		if err := w.WriteSignals(context.Background(), batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case r, ok := <-ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, r)
			if len(batch) >= w.cfg.BatchSize {
				flush()
				timer.Reset(w.cfg.FlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(w.cfg.FlushDelay)
		}
	}
}

// LastBarTime returns the newest stored bar time for a series, or the zero
// time when the series is empty.
func (w *Writer) LastBarTime(ctx context.Context, symbol, interval string) (time.Time, error) {
	var ts sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM bars WHERE symbol = ? AND interval = ?`,
		symbol, interval,
	).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// inTx prepares query once and executes it n times in a single transaction.
func (w *Writer) inTx(ctx context.Context, query string, n int, exec func(*sql.Stmt, int) error) error {
	if n == 0 {
		return nil
	}
	start := time.Now()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if w.cfg.OnCommit != nil {
		w.cfg.OnCommit(n, time.Since(start))
	}
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
