package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidBar is returned by Bar.Validate for malformed OHLC values.
var ErrInvalidBar = errors.New("invalid bar")

// Bar represents one finalized OHLC observation of an instrument.
// Position in its series is the bar's implicit index.
type Bar struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"` // e.g. "1d", "1h"
	TS       time.Time `json:"ts"`       // bar open time (UTC)
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Key returns "symbol@interval".
func (b *Bar) Key() string {
	return SeriesKey(b.Symbol, b.Interval)
}

// SeriesKey builds the key shared by every bar of one symbol+interval series.
func SeriesKey(symbol, interval string) string {
	return symbol + "@" + interval
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	data, _ := json.Marshal(b)
	return data
}

// BodyTop returns max(open, close).
func (b *Bar) BodyTop() float64 { return math.Max(b.Open, b.Close) }

// BodyBottom returns min(open, close).
func (b *Bar) BodyBottom() float64 { return math.Min(b.Open, b.Close) }

// Body returns |close - open|.
func (b *Bar) Body() float64 { return math.Abs(b.Close - b.Open) }

// Validate checks that prices are finite, positive and geometrically consistent.
func (b *Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite price at %s", ErrInvalidBar, b.TS.Format(time.RFC3339))
		}
	}
	if b.Low <= 0 {
		return fmt.Errorf("%w: low %.6f must be positive", ErrInvalidBar, b.Low)
	}
	if b.High < b.BodyTop() || b.Low > b.BodyBottom() {
		return fmt.Errorf("%w: high/low %.6f/%.6f do not contain body at %s",
			ErrInvalidBar, b.High, b.Low, b.TS.Format(time.RFC3339))
	}
	return nil
}

// Highs extracts the high of every bar.
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].High
	}
	return out
}

// Lows extracts the low of every bar.
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Low
	}
	return out
}

// Closes extracts the close of every bar.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}

// Volumes extracts the volume of every bar.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Volume
	}
	return out
}
