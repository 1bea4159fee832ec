package candle

import (
	"testing"

	"srsignals/internal/model"
)

func closes(cs ...float64) []model.Bar {
	out := make([]model.Bar, len(cs))
	for i, c := range cs {
		out[i] = ohlc(c, c+1, c-1, c)
	}
	return out
}

func TestPriceTarget(t *testing.T) {
	bars := closes(100, 101, 102, 99, 98, 100, 100, 100, 100)
	tests := []struct {
		i, n   int
		want   model.Signal
		wantOK bool
	}{
		{0, 2, model.SignalBullish, true},
		{2, 2, model.SignalBearish, true},
		{4, 4, model.SignalBullish, true},
		{5, 3, model.SignalNone, true},
		{5, 4, model.SignalNone, false},
		{0, 0, model.SignalNone, false},
	}
	for _, tt := range tests {
		got, ok := PriceTarget(bars, tt.i, tt.n)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("PriceTarget(%d,%d) = %v,%v want %v,%v", tt.i, tt.n, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestHitRate(t *testing.T) {
	signals := []model.Signal{0, 2, 1, 2, 0, 1}
	targets := []model.Signal{2, 2, 2, 2, 1, 1}
	s := HitRate(signals, targets)
	if s.Total != 4 || s.Equal != 3 || s.Different != 1 {
		t.Fatalf("got %+v", s)
	}
	if s.EqualPct != 75 || s.DiffPct != 25 {
		t.Errorf("percentages %+v", s)
	}
	if empty := HitRate(nil, nil); empty.Total != 0 || empty.EqualPct != 0 {
		t.Errorf("empty: %+v", empty)
	}
}

func TestFollowThrough(t *testing.T) {
	bars := []model.Bar{
		ohlc(100, 101, 99, 100),
		ohlc(100, 102, 99, 101),
		ohlc(101, 102, 99, 100),
		ohlc(100, 101, 99, 100),
		ohlc(100, 101, 99, 100.5),
	}
	signals := []model.Signal{2, 2, 2, 0, 2}
	f := FollowThrough(bars, signals, model.SignalBullish)
	if f.Total != 3 || f.Up != 1 || f.Down != 1 {
		t.Errorf("got %+v", f)
	}
}
