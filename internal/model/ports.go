package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the signal pipeline from concrete storage
// implementations (SQLite, Redis).

// BarReader reads historical bars for one series.
type BarReader interface {
	// ReadBars returns bars with TS at or after fromUnix, ordered by TS ascending.
	ReadBars(ctx context.Context, symbol, interval string, fromUnix int64) ([]Bar, error)

	// Close releases underlying resources.
	Close() error
}

// BarWriter persists bars.
type BarWriter interface {
	// WriteBars upserts bars in a single transaction.
	WriteBars(ctx context.Context, bars []Bar) error

	// Close releases underlying resources.
	Close() error
}

// SignalWriter persists signal results.
type SignalWriter interface {
	// WriteSignals upserts results in a single transaction.
	WriteSignals(ctx context.Context, results []SignalResult) error

	// Run reads results from ch and writes them in batches.
	// Blocks until ctx is cancelled or ch is closed.
	Run(ctx context.Context, ch <-chan SignalResult)

	// Close releases underlying resources.
	Close() error
}

// SignalPublisher pushes signal results to a message bus.
type SignalPublisher interface {
	// Publish delivers one result. Implementations may buffer.
	Publish(ctx context.Context, r SignalResult) error
}
