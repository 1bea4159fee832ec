// Package levels detects support/resistance levels over an OHLC bar series
// and turns them into per-bar trade signals.
//
// The pipeline for one bar index l is:
//
//	pivot scan -> level merge -> proximity confirmation -> breakout filter -> decision
//
// Every function here is pure: inputs are read-only bar slices and results are
// returned by value, so distinct indices can be evaluated concurrently.
package levels

import (
	"fmt"
	"strings"

	"srsignals/internal/model"
)

// BoundaryPolicy decides what happens when a window reaches past either end
// of the series.
type BoundaryPolicy uint8

const (
	// BoundaryTruncate clips the window to the bars that exist.
	BoundaryTruncate BoundaryPolicy = iota
	// BoundaryError fails with ErrWindowOutOfRange.
	BoundaryError
	// BoundarySkip treats an incomplete window as "no evidence": the bar is
	// not a pivot and a breakout check reports false.
	BoundarySkip
)

func (p BoundaryPolicy) String() string {
	switch p {
	case BoundaryTruncate:
		return "truncate"
	case BoundaryError:
		return "error"
	case BoundarySkip:
		return "skip"
	default:
		return "unknown"
	}
}

// ParseBoundaryPolicy parses "truncate", "error" or "skip".
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "truncate":
		return BoundaryTruncate, nil
	case "error":
		return BoundaryError, nil
	case "skip":
		return BoundarySkip, nil
	}
	return BoundaryTruncate, fmt.Errorf("%w: unknown boundary policy %q", ErrInvalidParams, s)
}

// MarshalText encodes the policy by name.
func (p BoundaryPolicy) MarshalText() ([]byte, error) {
	if p > BoundarySkip {
		return nil, fmt.Errorf("%w: boundary policy %d", ErrInvalidParams, uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText accepts the names ParseBoundaryPolicy accepts.
func (p *BoundaryPolicy) UnmarshalText(b []byte) error {
	v, err := ParseBoundaryPolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// IsSupport reports whether bars[i].Low is <= every low in the n1 bars
// before it and the n2 bars after it.
func IsSupport(bars []model.Bar, i, n1, n2 int, policy BoundaryPolicy) (bool, error) {
	return isExtremum(bars, i, n1, n2, policy, func(b *model.Bar) float64 { return b.Low }, lowerThan)
}

// IsResistance reports whether bars[i].High is >= every high in the n1 bars
// before it and the n2 bars after it.
func IsResistance(bars []model.Bar, i, n1, n2 int, policy BoundaryPolicy) (bool, error) {
	return isExtremum(bars, i, n1, n2, policy, func(b *model.Bar) float64 { return b.High }, higherThan)
}

func lowerThan(v, ref float64) bool  { return v < ref }
func higherThan(v, ref float64) bool { return v > ref }

// isExtremum scans [i-n1, i-1] and [i+1, i+n2]; any value for which beats
// returns true disqualifies bar i.
func isExtremum(bars []model.Bar, i, n1, n2 int, policy BoundaryPolicy,
	price func(*model.Bar) float64, beats func(v, ref float64) bool) (bool, error) {
	if len(bars) == 0 {
		return false, ErrEmptySeries
	}
	if i < 0 || i >= len(bars) {
		return false, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(bars))
	}
	if n1 < 0 || n2 < 0 {
		return false, fmt.Errorf("%w: n1=%d n2=%d", ErrInvalidParams, n1, n2)
	}

	lo, hi := i-n1, i+n2
	if lo < 0 || hi >= len(bars) {
		switch policy {
		case BoundaryError:
			return false, fmt.Errorf("%w: pivot window [%d,%d] for %d bars", ErrWindowOutOfRange, lo, hi, len(bars))
		case BoundarySkip:
			return false, nil
		}
		if lo < 0 {
			lo = 0
		}
		if hi >= len(bars) {
			hi = len(bars) - 1
		}
	}

	ref := price(&bars[i])
	for j := lo; j <= hi; j++ {
		if j == i {
			continue
		}
		if beats(price(&bars[j]), ref) {
			return false, nil
		}
	}
	return true, nil
}

// Scanner bundles the pivot window sizes with a boundary policy.
type Scanner struct {
	N1     int // bars before the candidate
	N2     int // bars after the candidate
	Policy BoundaryPolicy
}

// IsSupport is IsSupport with the scanner's window.
func (s Scanner) IsSupport(bars []model.Bar, i int) (bool, error) {
	return IsSupport(bars, i, s.N1, s.N2, s.Policy)
}

// IsResistance is IsResistance with the scanner's window.
func (s Scanner) IsResistance(bars []model.Bar, i int) (bool, error) {
	return IsResistance(bars, i, s.N1, s.N2, s.Policy)
}

// Pivots returns every support and resistance pivot for indices in
// [from, to], in index order. A bar can yield both kinds.
func (s Scanner) Pivots(bars []model.Bar, from, to int) ([]model.Pivot, error) {
	var pivots []model.Pivot
	for i := from; i <= to; i++ {
		sup, err := s.IsSupport(bars, i)
		if err != nil {
			return nil, err
		}
		if sup {
			pivots = append(pivots, model.Pivot{Index: i, Price: bars[i].Low, Kind: model.Support})
		}
		res, err := s.IsResistance(bars, i)
		if err != nil {
			return nil, err
		}
		if res {
			pivots = append(pivots, model.Pivot{Index: i, Price: bars[i].High, Kind: model.Resistance})
		}
	}
	return pivots, nil
}
