package levels

import (
	"math"

	"srsignals/internal/model"
)

// DefaultProximityPct is the conventional confirmation tolerance as a
// fraction of the target bar's close (0.3%).
const DefaultProximityPct = 0.003

// ProximityTolerance converts a fractional tolerance into a price distance.
func ProximityTolerance(close, pct float64) float64 {
	return close * pct
}

// Nearest returns the level with the smallest absolute distance to target.
// Ties go to the level that appears first in levels.
func Nearest(levels []float64, target float64) (float64, bool) {
	if len(levels) == 0 {
		return 0, false
	}
	best := levels[0]
	bestDist := math.Abs(best - target)
	for _, lv := range levels[1:] {
		if d := math.Abs(lv - target); d < bestDist {
			best, bestDist = lv, d
		}
	}
	return best, true
}

// CloseToResistance confirms the level nearest to bar.High when
//
//	(|High-lvl| <= tol or |max(Open,Close)-lvl| <= tol) and
//	min(Open,Close) < lvl and Low < lvl
//
// i.e. price reached the level while the body stayed underneath it.
func CloseToResistance(bar model.Bar, levels []float64, tol float64) (float64, bool) {
	lvl, ok := Nearest(levels, bar.High)
	if !ok {
		return 0, false
	}
	touched := math.Abs(bar.High-lvl) <= tol || math.Abs(bar.BodyTop()-lvl) <= tol
	if touched && bar.BodyBottom() < lvl && bar.Low < lvl {
		return lvl, true
	}
	return 0, false
}

// CloseToSupport is the mirror of CloseToResistance around bar.Low.
func CloseToSupport(bar model.Bar, levels []float64, tol float64) (float64, bool) {
	lvl, ok := Nearest(levels, bar.Low)
	if !ok {
		return 0, false
	}
	touched := math.Abs(bar.Low-lvl) <= tol || math.Abs(bar.BodyBottom()-lvl) <= tol
	if touched && bar.BodyTop() > lvl && bar.High > lvl {
		return lvl, true
	}
	return 0, false
}
