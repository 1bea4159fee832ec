// Package candle labels single bars and bar pairs with directional
// candlestick patterns. Labels use model.Signal: 2 bullish, 1 bearish, 0 none.
package candle

import (
	"fmt"
	"math"

	"srsignals/internal/model"
)

// RejectionParams sets the wick/body ratios of a rejection candle.
type RejectionParams struct {
	WickRatio     float64 `toml:"wick_ratio"`     // rejecting wick must exceed WickRatio*body
	OppositeRatio float64 `toml:"opposite_ratio"` // other wick must stay under OppositeRatio*body
	MinBodyPct    float64 `toml:"min_body_pct"`   // body must exceed MinBodyPct*open
}

// DefaultRejectionParams is the rejection rule used to feed the level detector.
func DefaultRejectionParams() RejectionParams {
	return RejectionParams{WickRatio: 1.5, OppositeRatio: 0.8, MinBodyPct: 0.001}
}

// ShootingStarParams is the same shape as the rejection rule with a ten
// times larger minimum body.
func ShootingStarParams() RejectionParams {
	return RejectionParams{WickRatio: 1.5, OppositeRatio: 0.8, MinBodyPct: 0.01}
}

// Rejection labels a bar with a long lower wick bullish and a bar with a
// long upper wick bearish. Bullish is tested first.
func Rejection(b model.Bar, p RejectionParams) model.Signal {
	body := b.Body()
	if body <= b.Open*p.MinBodyPct {
		return model.SignalNone
	}
	upper := b.High - b.BodyTop()
	lower := b.BodyBottom() - b.Low
	switch {
	case lower > p.WickRatio*body && upper < p.OppositeRatio*body:
		return model.SignalBullish
	case upper > p.WickRatio*body && lower < p.OppositeRatio*body:
		return model.SignalBearish
	}
	return model.SignalNone
}

// ShootingStar is Rejection with ShootingStarParams.
func ShootingStar(b model.Bar) model.Signal {
	return Rejection(b, ShootingStarParams())
}

// PinBar is the strict variant: the body sits at one extreme (opposite wick
// under a tenth of the body) and the rejecting wick is over five bodies.
func PinBar(b model.Bar) model.Signal {
	body := math.Abs(b.Open - b.Close)
	switch {
	case b.Open < b.Close && b.High-b.Close < body/10 && b.Open-b.Low > body*5:
		return model.SignalBullish
	case b.Open > b.Close && b.High-b.Open > body*5 && b.Close-b.Low < body/10:
		return model.SignalBearish
	}
	return model.SignalNone
}

// Engulfing labels cur against prev: bullish when a down bar is followed by
// a bar opening below its close and closing above its open, bearish mirrored.
func Engulfing(prev, cur model.Bar) model.Signal {
	switch {
	case cur.Close > prev.Open && cur.Open < prev.Close && prev.Open > prev.Close:
		return model.SignalBullish
	case cur.Open > prev.Close && cur.Close < prev.Open && prev.Close > prev.Open:
		return model.SignalBearish
	}
	return model.SignalNone
}

// ClassifyAll applies fn to every bar.
func ClassifyAll(bars []model.Bar, fn func(model.Bar) model.Signal) []model.Signal {
	out := make([]model.Signal, len(bars))
	for i := range bars {
		out[i] = fn(bars[i])
	}
	return out
}

// RejectionSeries is ClassifyAll with Rejection(p).
func RejectionSeries(bars []model.Bar, p RejectionParams) []model.Signal {
	return ClassifyAll(bars, func(b model.Bar) model.Signal { return Rejection(b, p) })
}

// EngulfingSeries labels every bar against its predecessor; bar 0 is none.
func EngulfingSeries(bars []model.Bar) []model.Signal {
	out := make([]model.Signal, len(bars))
	for i := 1; i < len(bars); i++ {
		out[i] = Engulfing(bars[i-1], bars[i])
	}
	return out
}

// Patterns lists the names accepted by PatternSeries.
var Patterns = []string{"rejection", "shooting-star", "pin-bar", "engulfing"}

// PatternSeries labels bars with the named pattern. p applies to
// "rejection" only.
func PatternSeries(name string, bars []model.Bar, p RejectionParams) ([]model.Signal, error) {
	switch name {
	case "rejection", "":
		return RejectionSeries(bars, p), nil
	case "shooting-star":
		return ClassifyAll(bars, ShootingStar), nil
	case "pin-bar":
		return ClassifyAll(bars, PinBar), nil
	case "engulfing":
		return EngulfingSeries(bars), nil
	default:
		return nil, fmt.Errorf("candle: unknown pattern %q (want one of %v)", name, Patterns)
	}
}
