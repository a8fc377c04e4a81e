package emc2101

import (
	"errors"
	"testing"
)

func TestSetFixedSpeedPercent(t *testing.T) {
	sim := NewSimulatedBus()
	device, err := NewPWM(sim, GenericPWMFan(), Sensor2N3904)
	if err != nil {
		t.Fatalf("NewPWM: %v", err)
	}

	effective, err := device.SetFixedSpeed(50, UnitPercent)
	if err != nil || effective != 50 { // step 8 carries exactly 50%
		t.Errorf("SetFixedSpeed(50%%) = (%d, %v), want (50, nil)", effective, err)
	}
	if got := sim.Register(uint8(RegFanSetting)); got != 8 {
		t.Errorf("fan setting register = %d, want 8", got)
	}

	percent, err := device.FixedSpeed(UnitPercent)
	if err != nil || percent != 50 {
		t.Errorf("FixedSpeed() = (%d, %v), want (50, nil)", percent, err)
	}

	// 52% has no exact step, the closest one wins and its duty comes back.
	effective, err = device.SetFixedSpeed(52, UnitPercent)
	if err != nil || effective != 50 {
		t.Errorf("SetFixedSpeed(52%%) = (%d, %v), want (50, nil)", effective, err)
	}

	if _, err = device.SetFixedSpeed(120, UnitPercent); !errors.Is(err, ErrDutyCycleRange) {
		t.Errorf("SetFixedSpeed(120%%) error = %v, want ErrDutyCycleRange", err)
	}
}

func TestSetFixedSpeedRPM(t *testing.T) {
	sim := NewSimulatedBus()

	// Generic profiles carry no measured speeds.
	device, err := NewPWM(sim, GenericPWMFan(), Sensor2N3904)
	if err != nil {
		t.Fatalf("NewPWM: %v", err)
	}
	if _, err = device.SetFixedSpeed(1000, UnitRPM); !errors.Is(err, ErrNoRPMMapping) {
		t.Errorf("SetFixedSpeed(1000 RPM) error = %v, want ErrNoRPMMapping", err)
	}
	if _, err = device.SetFixedSpeed(9999, UnitRPM); !errors.Is(err, ErrRPMRange) {
		t.Errorf("SetFixedSpeed(9999 RPM) error = %v, want ErrRPMRange", err)
	}

	// The calibrated DC profile resolves speeds.
	device, err = NewDAC(sim, GenericDCFan())
	if err != nil {
		t.Fatalf("NewDAC: %v", err)
	}
	effective, err := device.SetFixedSpeed(500, UnitRPM)
	if err != nil || effective != 479 { // step 4
		t.Errorf("SetFixedSpeed(500 RPM) = (%d, %v), want (479, nil)", effective, err)
	}
}

func TestSetFixedSpeedStep(t *testing.T) {
	device, err := NewDAC(NewSimulatedBus(), GenericDCFan())
	if err != nil {
		t.Fatalf("NewDAC: %v", err)
	}

	effective, err := device.SetFixedSpeed(4, UnitStep)
	if err != nil || effective != 4 {
		t.Errorf("SetFixedSpeed(step 4) = (%d, %v), want (4, nil)", effective, err)
	}

	// Step 2 is not part of the DC profile.
	if _, err = device.SetFixedSpeed(2, UnitStep); !errors.Is(err, ErrStepRange) {
		t.Errorf("SetFixedSpeed(step 2) error = %v, want ErrStepRange", err)
	}
}

func TestUpdateLookupTableSpeeds(t *testing.T) {
	sim := NewSimulatedBus()
	device, err := NewPWM(sim, GenericPWMFan(), Sensor2N3904)
	if err != nil {
		t.Fatalf("NewPWM: %v", err)
	}

	err = device.UpdateLookupTableSpeeds(map[int]int{30: 25, 50: 75}, UnitPercent)
	if err != nil {
		t.Fatalf("UpdateLookupTableSpeeds: %v", err)
	}

	want := []uint8{30, 4, 50, 12} // 25% -> step 4, 75% -> step 12
	for offset, value := range want {
		if got := sim.Register(uint8(RegLUTBase) + uint8(offset)); got != value {
			t.Errorf("table register 0x%02X = %d, want %d", uint8(RegLUTBase)+uint8(offset), got, value)
		}
	}
}

func TestUpdateLookupTableSpeedsUnresolvable(t *testing.T) {
	device, err := NewPWM(NewSimulatedBus(), GenericPWMFan(), Sensor2N3904)
	if err != nil {
		t.Fatalf("NewPWM: %v", err)
	}

	// No step carries a measured speed, nothing resolves.
	err = device.UpdateLookupTableSpeeds(map[int]int{30: 500}, UnitRPM)
	if err == nil {
		t.Error("UpdateLookupTableSpeeds should fail when nothing resolves")
	}
}
