// Package trend labels bars with trend direction and band/oscillator entry
// signals. Every function takes aligned columns (out[i] belongs to bar i)
// and returns model.Signal values: 2 long/up, 1 short/down, 0 none.
package trend

import (
	"errors"
	"fmt"

	"srsignals/internal/model"
)

// ErrLengthMismatch is returned when input columns are not aligned.
var ErrLengthMismatch = errors.New("trend: column length mismatch")

// Classify labels bar i as uptrend when each of the backCandles closes
// before it is above the moving average, downtrend when each is below.
// The first backCandles bars and any window touching an unset (zero)
// average are none.
func Classify(closes, ma []float64, backCandles int) ([]model.Signal, error) {
	if len(closes) != len(ma) {
		return nil, fmt.Errorf("%w: closes=%d ma=%d", ErrLengthMismatch, len(closes), len(ma))
	}
	out := make([]model.Signal, len(closes))
	if backCandles <= 0 {
		return out, nil
	}
	for i := backCandles; i < len(closes); i++ {
		above, below := true, true
		for j := i - backCandles; j < i; j++ {
			if ma[j] == 0 {
				above, below = false, false
				break
			}
			above = above && closes[j] > ma[j]
			below = below && closes[j] < ma[j]
		}
		switch {
		case above:
			out[i] = model.SignalBullish
		case below:
			out[i] = model.SignalBearish
		}
	}
	return out, nil
}

// BollingerEntries opens long when an uptrend bar opens below the lower band
// and closes back above it, short on the mirror at the upper band.
func BollingerEntries(bars []model.Bar, trend []model.Signal, upper, lower []float64) ([]model.Signal, error) {
	if err := aligned(len(bars), len(trend), len(upper), len(lower)); err != nil {
		return nil, err
	}
	out := make([]model.Signal, len(bars))
	for i, b := range bars {
		if lower[i] == 0 || upper[i] == 0 {
			continue
		}
		switch {
		case trend[i] == model.SignalBullish && b.Open < lower[i] && b.Close > lower[i]:
			out[i] = model.SignalBullish
		case trend[i] == model.SignalBearish && b.Open > upper[i] && b.Close < upper[i]:
			out[i] = model.SignalBearish
		}
	}
	return out, nil
}

// RSIThresholds bounds the oscillator confirmation for band pierces.
type RSIThresholds struct {
	BuyBelow  float64 `toml:"buy_below"`  // long needs RSI under this
	SellAbove float64 `toml:"sell_above"` // short needs RSI over this
}

// DefaultRSIThresholds are the loose bounds used with 10-period bands.
func DefaultRSIThresholds() RSIThresholds {
	return RSIThresholds{BuyBelow: 55, SellAbove: 45}
}

// RSISignals flags a close under the lower band with RSI below BuyBelow as
// long and a close over the upper band with RSI above SellAbove as short.
// When both hold the short wins.
func RSISignals(closes, rsi, upper, lower []float64, th RSIThresholds) ([]model.Signal, error) {
	if err := aligned(len(closes), len(rsi), len(upper), len(lower)); err != nil {
		return nil, err
	}
	out := make([]model.Signal, len(closes))
	for i, c := range closes {
		if upper[i] == 0 || lower[i] == 0 {
			continue
		}
		if c < lower[i] && rsi[i] < th.BuyBelow {
			out[i] = model.SignalBullish
		}
		if c > upper[i] && rsi[i] > th.SellAbove {
			out[i] = model.SignalBearish
		}
	}
	return out, nil
}

// RSIBandEntries requires trend, RSI signal and a wick through the band to
// agree.
func RSIBandEntries(bars []model.Bar, trend, rsiSignal []model.Signal, upper, lower []float64) ([]model.Signal, error) {
	if err := aligned(len(bars), len(trend), len(rsiSignal), len(upper), len(lower)); err != nil {
		return nil, err
	}
	out := make([]model.Signal, len(bars))
	for i, b := range bars {
		switch {
		case trend[i] == model.SignalBullish && rsiSignal[i] == model.SignalBullish && b.Low < lower[i]:
			out[i] = model.SignalBullish
		case trend[i] == model.SignalBearish && rsiSignal[i] == model.SignalBearish && b.High > upper[i]:
			out[i] = model.SignalBearish
		}
	}
	return out, nil
}

// MACrossover marks the bar where fast crosses above slow as long and the
// bar where it crosses below as short. Bars where either average is unset
// are skipped.
func MACrossover(fast, slow []float64) ([]model.Signal, error) {
	if len(fast) != len(slow) {
		return nil, fmt.Errorf("%w: fast=%d slow=%d", ErrLengthMismatch, len(fast), len(slow))
	}
	out := make([]model.Signal, len(fast))
	for i := 1; i < len(fast); i++ {
		if fast[i-1] == 0 || slow[i-1] == 0 || fast[i] == 0 || slow[i] == 0 {
			continue
		}
		switch {
		case fast[i-1] <= slow[i-1] && fast[i] > slow[i]:
			out[i] = model.SignalBullish
		case fast[i-1] >= slow[i-1] && fast[i] < slow[i]:
			out[i] = model.SignalBearish
		}
	}
	return out, nil
}

func aligned(n int, others ...int) error {
	for _, m := range others {
		if m != n {
			return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, n, m)
		}
	}
	return nil
}
