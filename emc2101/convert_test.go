package emc2101

import (
	"errors"
	"math"
	"testing"
)

func TestTemperatureFromBytes(t *testing.T) {
	cases := []struct {
		msb, lsb uint8
		want     float64
	}{
		{0x00, 0x00, 0},
		{0x0C, 0xE0, 12.9},
		{0x2A, 0x80, 42.5},
		{0x2A, 0x60, 42.4},
		{0x2A, 0x20, 42.15},
		{0xFF, 0x00, -1},
		{0xFF, 0x80, -0.5},
	}

	for _, c := range cases {
		got := TemperatureFromBytes(c.msb, c.lsb)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("TemperatureFromBytes(0x%02X, 0x%02X) = %v, want %v", c.msb, c.lsb, got, c.want)
		}
	}
}

func TestTemperatureRoundTrip(t *testing.T) {
	// The greedy encoding reaches these fractions; 0.40 decodes but is
	// absorbed into 0.50 on encode.
	fractions := []float64{0, 0.15, 0.25, 0.50, 0.65, 0.75, 0.90}

	for whole := 0; whole < 100; whole++ {
		for _, frac := range fractions {
			value := float64(whole) + frac
			msb, lsb := TemperatureToBytes(value)
			got := TemperatureFromBytes(msb, lsb)
			if math.Abs(got-value) > 1e-9 {
				t.Fatalf("round trip %v -> (0x%02X, 0x%02X) -> %v", value, msb, lsb, got)
			}
		}
	}
}

func TestTemperatureToBytesCarry(t *testing.T) {
	msb, lsb := TemperatureToBytes(41.95)
	if msb != 42 || lsb != 0x00 {
		t.Errorf("TemperatureToBytes(41.95) = (0x%02X, 0x%02X), want (0x2A, 0x00)", msb, lsb)
	}

	msb, lsb = TemperatureToBytes(41.40)
	if got := TemperatureFromBytes(msb, lsb); got != 41.5 {
		t.Errorf("TemperatureToBytes(41.40) decodes to %v, want 41.5", got)
	}
}

func TestTachToRPM(t *testing.T) {
	if _, ok := TachToRPM(0xFF, 0xFF); ok {
		t.Error("TachToRPM(0xFFFF) should report a stalled fan")
	}

	rpm, ok := TachToRPM(0x10, 0x00) // count 4096
	if !ok || rpm != 1318 {
		t.Errorf("TachToRPM(0x1000) = (%d, %t), want (1318, true)", rpm, ok)
	}

	rpm, ok = TachToRPM(0x00, 0x00) // count 0 clamps to 1
	if !ok || rpm != tachFrequency {
		t.Errorf("TachToRPM(0x0000) = (%d, %t), want (%d, true)", rpm, ok, tachFrequency)
	}
}

func TestRPMToTachLimit(t *testing.T) {
	if _, _, err := RPMToTachLimit(81); !errors.Is(err, ErrRPMRange) {
		t.Errorf("RPMToTachLimit(81) error = %v, want ErrRPMRange", err)
	}

	msb, lsb, err := RPMToTachLimit(82) // count overflows, clamps to 0xFFFE
	if err != nil || msb != 0xFF || lsb != 0xFE {
		t.Errorf("RPMToTachLimit(82) = (0x%02X, 0x%02X, %v), want (0xFF, 0xFE, nil)", msb, lsb, err)
	}

	msb, lsb, err = RPMToTachLimit(1000) // count 5400 = 0x1518
	if err != nil || msb != 0x15 || lsb != 0x18 {
		t.Errorf("RPMToTachLimit(1000) = (0x%02X, 0x%02X, %v), want (0x15, 0x18, nil)", msb, lsb, err)
	}
}

func TestDutyCycleRoundTrip(t *testing.T) {
	for raw := uint8(0); raw <= stepHardMax; raw++ {
		percent, err := DutyCycleFromRaw(raw)
		if err != nil {
			t.Fatalf("DutyCycleFromRaw(%d): %v", raw, err)
		}
		back, err := DutyCycleToRaw(percent)
		if err != nil {
			t.Fatalf("DutyCycleToRaw(%d): %v", percent, err)
		}
		if back != raw {
			t.Errorf("raw %d -> %d%% -> raw %d", raw, percent, back)
		}
	}
}

func TestDutyCycleBounds(t *testing.T) {
	if _, err := DutyCycleToRaw(101); !errors.Is(err, ErrDutyCycleRange) {
		t.Errorf("DutyCycleToRaw(101) error = %v, want ErrDutyCycleRange", err)
	}
	if _, err := DutyCycleToRaw(-1); !errors.Is(err, ErrDutyCycleRange) {
		t.Errorf("DutyCycleToRaw(-1) error = %v, want ErrDutyCycleRange", err)
	}
	if _, err := DutyCycleFromRaw(64); !errors.Is(err, ErrDutyCycleRange) {
		t.Errorf("DutyCycleFromRaw(64) error = %v, want ErrDutyCycleRange", err)
	}
}

func TestCalculatePWMFactors(t *testing.T) {
	cases := []struct {
		frequency  int
		pwmD, pwmF int
	}{
		{22500, 1, 8},
		{45000, 1, 4},
		{1000, 6, 30},
		{180000, 1, 1},
	}

	for _, c := range cases {
		pwmD, pwmF, err := CalculatePWMFactors(c.frequency)
		if err != nil {
			t.Fatalf("CalculatePWMFactors(%d): %v", c.frequency, err)
		}
		if pwmD != c.pwmD || pwmF != c.pwmF {
			t.Errorf("CalculatePWMFactors(%d) = (%d, %d), want (%d, %d)", c.frequency, pwmD, pwmF, c.pwmD, c.pwmF)
		}
	}

	for _, frequency := range []int{0, -1, 180001} {
		if _, _, err := CalculatePWMFactors(frequency); !errors.Is(err, ErrFrequencyRange) {
			t.Errorf("CalculatePWMFactors(%d) error = %v, want ErrFrequencyRange", frequency, err)
		}
	}
}

func TestPWMFrequency(t *testing.T) {
	if got := PWMFrequency(1, 8); got != 22500 {
		t.Errorf("PWMFrequency(1, 8) = %v, want 22500", got)
	}
}
