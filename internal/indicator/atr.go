package indicator

import (
	"math"

	"srsignals/internal/model"
)

// ATR is Wilder's Average True Range.
type ATR struct {
	period    int
	count     int
	prevClose float64
	sum       float64
	current   float64
}

// NewATR creates a new ATR indicator with the given period.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string { return "ATR" }

func (a *ATR) Update(bar model.Bar) {
	a.count++
	if a.count == 1 {
		a.prevClose = bar.Close
		return
	}
	tr := trueRange(bar.High, bar.Low, a.prevClose)
	a.prevClose = bar.Close

	if a.count <= a.period+1 {
		a.sum += tr
		if a.count == a.period+1 {
			a.current = a.sum / float64(a.period)
		}
		return
	}
	a.current = (a.current*float64(a.period-1) + tr) / float64(a.period)
}

func (a *ATR) Value() float64 { return a.current }
func (a *ATR) Ready() bool    { return a.count > a.period }

// Peek assumes a bar whose high and low both equal price.
func (a *ATR) Peek(price float64) float64 {
	if a.count <= a.period {
		return a.current
	}
	tr := trueRange(price, price, a.prevClose)
	return (a.current*float64(a.period-1) + tr) / float64(a.period)
}

func trueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}
