// Package indicator provides technical indicators over bar data.
//
// Streaming indicators implement Indicator and are fed one finalized bar at
// a time by the Engine. Batch series helpers in series.go compute whole
// columns at once for scans and reports.
package indicator

import "srsignals/internal/model"

// Indicator is the interface for all streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA", "EMA").
	Name() string

	// Update feeds a new finalized bar and recalculates.
	Update(bar model.Bar)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Peek computes what Value() would be if a bar with this close were
	// added next, WITHOUT mutating internal state.
	Peek(close float64) float64
}
