package emcfand

import (
	"errors"
	"testing"
)

func TestCurveEval(t *testing.T) {
	curve, err := NewCurve([]CurvePoint{
		{Temperature: 40, Percent: 30},
		{Temperature: 70, Percent: 100},
	})
	if err != nil {
		t.Fatalf("NewCurve: %v", err)
	}

	cases := []struct {
		temperature float64
		want        int
	}{
		{0, 30},  // flat below the first point
		{25, 30},
		{40, 30},
		{50, 53}, // 30 + 10/30*70
		{55, 65},
		{70, 100},
		{90, 100}, // capped past the last point
	}

	for _, c := range cases {
		if got := curve.Eval(c.temperature); got != c.want {
			t.Errorf("Eval(%v) = %d, want %d", c.temperature, got, c.want)
		}
	}
}

func TestCurveJumpsToFullSpeed(t *testing.T) {
	// A curve that stops short of 100% gets a synthetic vertical jump so
	// anything hotter than the last point runs the fan flat out.
	curve, err := NewCurve([]CurvePoint{
		{Temperature: 40, Percent: 30},
		{Temperature: 60, Percent: 60},
	})
	if err != nil {
		t.Fatalf("NewCurve: %v", err)
	}

	if got := curve.Eval(50); got != 45 {
		t.Errorf("Eval(50) = %d, want 45", got)
	}
	if got := curve.Eval(59.9); got < 59 || got > 60 {
		t.Errorf("Eval(59.9) = %d, want ~60", got)
	}
	if got := curve.Eval(61); got != 100 {
		t.Errorf("Eval(61) = %d, want 100", got)
	}
}

func TestCurveEmpty(t *testing.T) {
	if _, err := NewCurve(nil); !errors.Is(err, ErrEmptyCurve) {
		t.Errorf("NewCurve(nil) error = %v, want ErrEmptyCurve", err)
	}
}

func TestCurvePoints(t *testing.T) {
	points := []CurvePoint{{Temperature: 40, Percent: 30}}
	curve, err := NewCurve(points)
	if err != nil {
		t.Fatalf("NewCurve: %v", err)
	}

	// The synthetic extensions must not leak into the configured points.
	if got := curve.Points(); len(got) != 1 || got[0] != points[0] {
		t.Errorf("Points() = %v, want %v", got, points)
	}
}
