package levels

import (
	"slices"
	"testing"
)

func TestNearest(t *testing.T) {
	if _, ok := Nearest(nil, 10); ok {
		t.Error("empty levels should not match")
	}
	got, _ := Nearest([]float64{90, 100, 110}, 104)
	if got != 100 {
		t.Errorf("got %v, want 100", got)
	}
	got, _ = Nearest([]float64{95, 105}, 100)
	if got != 95 {
		t.Errorf("tie: got %v, want first level 95", got)
	}
}

func TestCloseToResistance(t *testing.T) {
	levels := []float64{95, 110}
	tests := []struct {
		name string
		b    bool
		bar  [4]float64 // o h l c
		want float64
	}{
		{"wick touches", true, [4]float64{108, 110.2, 107.6, 108.2}, 110},
		{"body top touches", true, [4]float64{108, 111, 107.6, 109.9}, 110},
		{"too far", false, [4]float64{104, 106, 103, 105}, 0},
		{"body above level", false, [4]float64{110.1, 110.3, 109, 110.2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bar(0, tt.bar[0], tt.bar[1], tt.bar[2], tt.bar[3])
			got, ok := CloseToResistance(b, levels, ProximityTolerance(b.Close, DefaultProximityPct))
			if ok != tt.b || got != tt.want {
				t.Errorf("got (%v, %v), want (%v, %v)", got, ok, tt.want, tt.b)
			}
		})
	}
}

func TestCloseToSupport(t *testing.T) {
	levels := []float64{95, 110}
	b := bar(0, 96, 97, 95.1, 96.5)
	got, ok := CloseToSupport(b, levels, ProximityTolerance(b.Close, DefaultProximityPct))
	if !ok || got != 95 {
		t.Errorf("got (%v, %v), want (95, true)", got, ok)
	}
	b = bar(0, 94.9, 95.2, 94, 94.95)
	if _, ok := CloseToSupport(b, levels, ProximityTolerance(b.Close, DefaultProximityPct)); ok {
		t.Error("body below support should not confirm")
	}
}

func TestConfirmedLevelIsMember(t *testing.T) {
	levels := []float64{98.7, 99.9, 101.3, 102}
	for i := 0; i < 40; i++ {
		mid := 98 + float64(i)*0.1
		b := bar(i, mid, mid+0.4, mid-0.4, mid+0.1)
		tol := ProximityTolerance(b.Close, DefaultProximityPct)
		if lv, ok := CloseToResistance(b, levels, tol); ok && !slices.Contains(levels, lv) {
			t.Errorf("resistance %v not in level set", lv)
		}
		if lv, ok := CloseToSupport(b, levels, tol); ok && !slices.Contains(levels, lv) {
			t.Errorf("support %v not in level set", lv)
		}
	}
}

func TestProximityToleranceMonotone(t *testing.T) {
	levels := []float64{100, 104}
	b := bar(0, 101.5, 99.4, 99.2, 101)
	b.High = 102.5
	prev := false
	for _, pct := range []float64{0, 0.001, 0.003, 0.006, 0.01, 0.02} {
		_, ok := CloseToSupport(b, levels, ProximityTolerance(b.Close, pct))
		if prev && !ok {
			t.Fatalf("confirmation lost when tolerance widened to %v", pct)
		}
		prev = ok
	}
	if !prev {
		t.Error("expected confirmation at the widest tolerance")
	}
}
