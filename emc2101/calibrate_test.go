package emc2101

import (
	"errors"
	"testing"
	"time"
)

func newTestCalibrator(sim *SimulatedBus) *Calibrator {
	c := NewCalibrator(sim)
	c.Sleep = func(time.Duration) {} // no mechanical fan to wait for
	return c
}

func TestCalibrate(t *testing.T) {
	sim := NewSimulatedBus()
	sim.SpeedCurve = func(step int) int {
		return 500 + step*100 // responsive at every step, including 0
	}

	profile, err := newTestCalibrator(sim).Calibrate("test fan", 22500)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	if profile.Model != "test fan" || profile.ControlMode != PWM || profile.PWMFrequency != 22500 {
		t.Errorf("profile header = %+v", profile)
	}
	if profile.MinimumRPM != 500 || profile.MaximumRPM != 2000 {
		t.Errorf("speed envelope = [%d, %d], want [500, 2000]", profile.MinimumRPM, profile.MaximumRPM)
	}
	if profile.MinimumDutyCycle != 0 || profile.MaximumDutyCycle != 93 {
		t.Errorf("duty envelope = [%d, %d], want [0, 93]", profile.MinimumDutyCycle, profile.MaximumDutyCycle)
	}

	// 22.5kHz yields 16 distinct steps, all 100 RPM apart so none prunes.
	if len(profile.Steps) != 16 {
		t.Errorf("len(Steps) = %d, want 16", len(profile.Steps))
	}
	record, ok := profile.Steps[10]
	if !ok || record.DutyCycle != 62 || record.RPM == nil || *record.RPM != 1500 {
		t.Errorf("Steps[10] = %+v", record)
	}
}

func TestCalibrateStalledFan(t *testing.T) {
	sim := NewSimulatedBus()
	sim.SpeedCurve = func(step int) int { return 0 }

	_, err := newTestCalibrator(sim).Calibrate("test fan", 22500)
	if !errors.Is(err, ErrNoProfile) {
		t.Errorf("error = %v, want ErrNoProfile", err)
	}
	if !errors.Is(err, ErrUnreliableReading) {
		t.Errorf("error = %v, want ErrUnreliableReading", err)
	}
}

func TestCalibrateUnresponsiveFan(t *testing.T) {
	sim := NewSimulatedBus()
	sim.SpeedCurve = func(step int) int { return 1000 } // spins, never reacts

	_, err := newTestCalibrator(sim).Calibrate("test fan", 22500)
	if !errors.Is(err, ErrNoProfile) || !errors.Is(err, ErrUnresponsiveFan) {
		t.Errorf("error = %v, want ErrNoProfile and ErrUnresponsiveFan", err)
	}
}

func TestCalibrateInsufficientSteps(t *testing.T) {
	// 180kHz leaves only 2 steps, nothing to map.
	_, err := newTestCalibrator(NewSimulatedBus()).Calibrate("test fan", 180000)
	if !errors.Is(err, ErrNoProfile) || !errors.Is(err, ErrInsufficientSteps) {
		t.Errorf("error = %v, want ErrNoProfile and ErrInsufficientSteps", err)
	}
}

func TestCalibrateBadFrequency(t *testing.T) {
	_, err := newTestCalibrator(NewSimulatedBus()).Calibrate("test fan", -1)
	if !errors.Is(err, ErrFrequencyRange) {
		t.Errorf("error = %v, want ErrFrequencyRange", err)
	}
}

func TestCompactPrunesIndistinctSteps(t *testing.T) {
	c := NewCalibrator(nil)

	samples := []calibrationSample{
		{step: 0, dutyCycle: 0, rpm: 100},
		{step: 1, dutyCycle: 25, rpm: 101}, // within 1.1% of the previous kept step
		{step: 2, dutyCycle: 50, rpm: 200},
		{step: 3, dutyCycle: 75, rpm: 400},
	}

	profile, err := c.compact("test fan", 22500, samples)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}

	if len(profile.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3", len(profile.Steps))
	}
	if _, ok := profile.Steps[1]; ok {
		t.Error("step 1 should have been pruned")
	}
	for _, step := range []int{0, 2, 3} {
		if _, ok := profile.Steps[step]; !ok {
			t.Errorf("step %d should have been kept", step)
		}
	}
	if profile.MinimumRPM != 100 || profile.MaximumRPM != 400 {
		t.Errorf("speed envelope = [%d, %d], want [100, 400]", profile.MinimumRPM, profile.MaximumRPM)
	}
}

func TestCompactAlwaysKeepsEndpoints(t *testing.T) {
	c := NewCalibrator(nil)

	// The last sample is within the pruning distance of its predecessor
	// but survives because it is the full duty endpoint.
	samples := []calibrationSample{
		{step: 0, dutyCycle: 0, rpm: 1000},
		{step: 1, dutyCycle: 50, rpm: 1500},
		{step: 2, dutyCycle: 100, rpm: 1505},
	}

	profile, err := c.compact("test fan", 22500, samples)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if _, ok := profile.Steps[2]; !ok {
		t.Error("the final step should always survive")
	}
	if profile.MaximumDutyCycle != 100 {
		t.Errorf("MaximumDutyCycle = %d, want 100", profile.MaximumDutyCycle)
	}
}
