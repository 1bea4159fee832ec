package trend

import (
	"errors"
	"slices"
	"testing"

	"srsignals/internal/model"
)

func TestClassify(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 9, 8, 7, 6}
	ma := []float64{0, 10, 10, 10, 10, 10, 10, 10}
	got, err := Classify(closes, ma, 2)
	if err != nil {
		t.Fatal(err)
	}
	// bar 2 window {0,1} has an unset average
	want := []model.Signal{0, 0, 0, 2, 2, 0, 1, 1}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := Classify(closes, ma[:3], 2); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("mismatch: got %v", err)
	}
}

func TestBollingerEntries(t *testing.T) {
	bars := []model.Bar{
		{Open: 94, High: 97, Low: 93, Close: 96},
		{Open: 106, High: 107, Low: 103, Close: 104},
		{Open: 94, High: 97, Low: 93, Close: 96},
	}
	tr := []model.Signal{2, 1, 1}
	upper := []float64{105, 105, 105}
	lower := []float64{95, 95, 95}
	got, err := BollingerEntries(bars, tr, upper, lower)
	if err != nil {
		t.Fatal(err)
	}
	if want := []model.Signal{2, 1, 0}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRSISignals(t *testing.T) {
	closes := []float64{94, 94, 106, 106, 100}
	rsi := []float64{40, 60, 50, 40, 50}
	upper := []float64{105, 105, 105, 105, 105}
	lower := []float64{95, 95, 95, 95, 95}
	got, err := RSISignals(closes, rsi, upper, lower, DefaultRSIThresholds())
	if err != nil {
		t.Fatal(err)
	}
	if want := []model.Signal{2, 0, 1, 0, 0}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRSIBandEntries(t *testing.T) {
	bars := []model.Bar{
		{Open: 96, High: 97, Low: 94, Close: 94.5},
		{Open: 104, High: 106, Low: 103, Close: 105.5},
		{Open: 96, High: 97, Low: 95.5, Close: 96},
	}
	tr := []model.Signal{2, 1, 2}
	sig := []model.Signal{2, 1, 2}
	upper := []float64{105, 105, 105}
	lower := []float64{95, 95, 95}
	got, err := RSIBandEntries(bars, tr, sig, upper, lower)
	if err != nil {
		t.Fatal(err)
	}
	if want := []model.Signal{2, 1, 0}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMACrossover(t *testing.T) {
	fast := []float64{0, 9, 11, 12, 9, 8}
	slow := []float64{0, 10, 10, 10, 10, 10}
	got, err := MACrossover(fast, slow)
	if err != nil {
		t.Fatal(err)
	}
	if want := []model.Signal{0, 0, 2, 0, 1, 0}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
