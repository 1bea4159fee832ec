package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Signal is the ternary per-bar direction used both for rejection
// classifications and for the final support/resistance signal.
type Signal uint8

const (
	SignalNone    Signal = 0
	SignalBearish Signal = 1
	SignalBullish Signal = 2
)

func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalBearish:
		return "bearish"
	case SignalBullish:
		return "bullish"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the three defined values.
func (s Signal) Valid() bool {
	return s <= SignalBullish
}

// ParseSignal converts the integer wire form (0/1/2) to a Signal.
func ParseSignal(n int) (Signal, error) {
	if n < 0 || n > int(SignalBullish) {
		return SignalNone, fmt.Errorf("signal %d out of range [0,2]", n)
	}
	return Signal(n), nil
}

// LevelKind tags a pivot as support (from a low) or resistance (from a high).
type LevelKind uint8

const (
	Support LevelKind = iota + 1
	Resistance
)

func (k LevelKind) String() string {
	switch k {
	case Support:
		return "support"
	case Resistance:
		return "resistance"
	default:
		return "unknown"
	}
}

// Pivot is a local extremum derived from exactly one bar.
type Pivot struct {
	Index int       `json:"index"`
	Price float64   `json:"price"`
	Kind  LevelKind `json:"kind"`
}

// SignalResult is the pipeline output for one bar index.
// Resistance and Support hold the confirmed level, or 0 when none was confirmed.
type SignalResult struct {
	RunID      string    `json:"run_id,omitempty"`
	Symbol     string    `json:"symbol"`
	Interval   string    `json:"interval"`
	Index      int       `json:"index"`
	TS         time.Time `json:"ts"`
	Signal     Signal    `json:"signal"`
	Rejection  Signal    `json:"rejection"`
	Resistance float64   `json:"resistance"`
	Support    float64   `json:"support"`
	LevelCount int       `json:"level_count"`
}

// Key returns "symbol@interval".
func (r *SignalResult) Key() string {
	return SeriesKey(r.Symbol, r.Interval)
}

// StreamKey returns the Redis stream key: "sig:{interval}:{symbol}".
func (r *SignalResult) StreamKey() string {
	return "sig:" + r.Interval + ":" + r.Symbol
}

// LatestKey returns the Redis key holding the newest signal: "sig:{interval}:latest:{symbol}".
func (r *SignalResult) LatestKey() string {
	return "sig:" + r.Interval + ":latest:" + r.Symbol
}

// PubSubChannel returns the Redis PubSub channel: "pub:sig:{interval}:{symbol}".
func (r *SignalResult) PubSubChannel() string {
	return "pub:sig:" + r.Interval + ":" + r.Symbol
}

// JSON returns the JSON-encoded result.
func (r *SignalResult) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// IndicatorResult holds a streaming indicator value for one series.
type IndicatorResult struct {
	Name     string    `json:"name"` // e.g. "SMA_20", "RSI_14"
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Value    float64   `json:"value"`
	TS       time.Time `json:"ts"`
	Ready    bool      `json:"ready"`
}

// JSON returns the JSON-encoded indicator result.
func (r *IndicatorResult) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
