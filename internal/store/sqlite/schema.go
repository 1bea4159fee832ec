package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

func open(dbPath string, maxConns int) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol   TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   REAL,
			PRIMARY KEY (symbol, interval, ts)
		);

		CREATE TABLE IF NOT EXISTS runs (
			run_id     TEXT    NOT NULL,
			symbol     TEXT    NOT NULL,
			interval   TEXT    NOT NULL,
			params     TEXT    NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (run_id, symbol, interval)
		);

		CREATE TABLE IF NOT EXISTS signals (
			run_id      TEXT    NOT NULL,
			symbol      TEXT    NOT NULL,
			interval    TEXT    NOT NULL,
			idx         INTEGER NOT NULL,
			ts          INTEGER NOT NULL,
			signal      INTEGER NOT NULL,
			rejection   INTEGER NOT NULL,
			resistance  REAL,
			support     REAL,
			level_count INTEGER,
			PRIMARY KEY (run_id, symbol, interval, idx)
		);

		CREATE INDEX IF NOT EXISTS idx_signals_series ON signals (symbol, interval, ts);
	`)
	return err
}
