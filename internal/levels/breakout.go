package levels

import (
	"fmt"

	"srsignals/internal/model"
)

// IsBelowResistance reports whether every high in the window bars strictly
// before l stays below level, i.e. price has not already traded through it.
// An empty window reports false.
func IsBelowResistance(bars []model.Bar, l, window int, level float64, policy BoundaryPolicy) (bool, error) {
	lo, hi, ok, err := trailingWindow(len(bars), l, window, policy)
	if err != nil || !ok {
		return false, err
	}
	maxHigh := bars[lo].High
	for j := lo + 1; j <= hi; j++ {
		if bars[j].High > maxHigh {
			maxHigh = bars[j].High
		}
	}
	return maxHigh < level, nil
}

// IsAboveSupport reports whether every low in the window bars strictly
// before l stays above level. An empty window reports false.
func IsAboveSupport(bars []model.Bar, l, window int, level float64, policy BoundaryPolicy) (bool, error) {
	lo, hi, ok, err := trailingWindow(len(bars), l, window, policy)
	if err != nil || !ok {
		return false, err
	}
	minLow := bars[lo].Low
	for j := lo + 1; j <= hi; j++ {
		if bars[j].Low < minLow {
			minLow = bars[j].Low
		}
	}
	return minLow > level, nil
}

// trailingWindow resolves [l-window, l-1] against the boundary policy.
func trailingWindow(n, l, window int, policy BoundaryPolicy) (lo, hi int, ok bool, err error) {
	if n == 0 {
		return 0, 0, false, ErrEmptySeries
	}
	if l < 0 || l >= n {
		return 0, 0, false, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, l, n)
	}
	if window <= 0 {
		return 0, 0, false, nil
	}
	lo, hi = l-window, l-1
	if lo < 0 {
		switch policy {
		case BoundaryError:
			return 0, 0, false, fmt.Errorf("%w: breakout window starts at %d", ErrWindowOutOfRange, lo)
		case BoundarySkip:
			return 0, 0, false, nil
		}
		lo = 0
	}
	if hi < lo {
		return 0, 0, false, nil
	}
	return lo, hi, true, nil
}
