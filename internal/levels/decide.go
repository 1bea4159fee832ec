package levels

import "srsignals/internal/model"

// Decision carries every precomputed fact the decider needs for one bar.
type Decision struct {
	Rejection       model.Signal
	Resistance      float64 // confirmed resistance, 0 if none
	Support         float64 // confirmed support, 0 if none
	BelowResistance bool
	AboveSupport    bool
}

// Decide combines the rejection label with the confirmed level and the
// breakout filter on the same side.
func Decide(d Decision) model.Signal {
	switch {
	case d.Rejection == model.SignalBearish && d.Resistance != 0 && d.BelowResistance:
		return model.SignalBearish
	case d.Rejection == model.SignalBullish && d.Support != 0 && d.AboveSupport:
		return model.SignalBullish
	default:
		return model.SignalNone
	}
}
