package emc2101

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestDeviceIdentity(t *testing.T) {
	sim := NewSimulatedBus()
	device, err := New(sim, ConfigRegister{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	description, err := device.Describe()
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !strings.Contains(description, "SMSC") || !strings.Contains(description, "EMC2101") {
		t.Errorf("Describe() = %q", description)
	}
}

func TestDeviceConfigRegister(t *testing.T) {
	sim := NewSimulatedBus()
	device, err := New(sim, ConfigRegister{AltTach: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	config, err := device.GetConfigRegister()
	if err != nil {
		t.Fatalf("GetConfigRegister: %v", err)
	}
	if !config.AltTach || config.DAC {
		t.Errorf("GetConfigRegister() = %+v, want AltTach only", config)
	}
}

func TestDeviceRPM(t *testing.T) {
	sim := NewSimulatedBus()
	device, err := New(sim, ConfigRegister{AltTach: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// The synthetic fan is stopped at step 0.
	if _, err = device.RPM(); !errors.Is(err, ErrStalledFan) {
		t.Errorf("RPM() at step 0 error = %v, want ErrStalledFan", err)
	}

	if err = device.SetDriverStrength(10); err != nil {
		t.Fatalf("SetDriverStrength: %v", err)
	}
	rpm, err := device.RPM()
	if err != nil || rpm != 1000 { // curve: 400 + 10*60, tach count divides evenly
		t.Errorf("RPM() = (%d, %v), want (1000, nil)", rpm, err)
	}
}

func TestDeviceRPMRequiresTachMode(t *testing.T) {
	device, err := New(NewSimulatedBus(), ConfigRegister{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err = device.RPM(); !errors.Is(err, ErrNoTachMode) {
		t.Errorf("RPM() error = %v, want ErrNoTachMode", err)
	}
}

func TestDeviceDriverStrengthBounds(t *testing.T) {
	device, err := New(NewSimulatedBus(), ConfigRegister{AltTach: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err = device.SetDriverStrength(64); !errors.Is(err, ErrStepRange) {
		t.Errorf("SetDriverStrength(64) error = %v, want ErrStepRange", err)
	}
	if err = device.SetDriverStrength(-1); !errors.Is(err, ErrStepRange) {
		t.Errorf("SetDriverStrength(-1) error = %v, want ErrStepRange", err)
	}

	if err = device.SetDriverStrength(63); err != nil {
		t.Errorf("SetDriverStrength(63): %v", err)
	}
	step, err := device.DriverStrength()
	if err != nil || step != 63 {
		t.Errorf("DriverStrength() = (%d, %v), want (63, nil)", step, err)
	}
}

func TestDevicePWMControlRefusedInDACMode(t *testing.T) {
	device, err := New(NewSimulatedBus(), ConfigRegister{AltTach: true, DAC: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err = device.ConfigurePWMControl(1, 8, 15); !errors.Is(err, ErrDACMode) {
		t.Errorf("ConfigurePWMControl error = %v, want ErrDACMode", err)
	}
}

func TestDeviceSpinUpRequiresTachMode(t *testing.T) {
	device, err := New(NewSimulatedBus(), ConfigRegister{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = device.ConfigureSpinUp(SpinUpStrength100, SpinUpTime0_80, true)
	if !errors.Is(err, ErrAlertMode) {
		t.Errorf("ConfigureSpinUp error = %v, want ErrAlertMode", err)
	}
}

func TestDeviceTemperatures(t *testing.T) {
	sim := NewSimulatedBus()
	device, err := New(sim, ConfigRegister{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sim.SetInternalTemperature(42)
	temp, err := device.InternalTemperature()
	if err != nil || temp != 42 {
		t.Errorf("InternalTemperature() = (%v, %v), want (42, nil)", temp, err)
	}

	sim.SetExternalTemperature(12.9)
	temp, err = device.ExternalTemperature()
	if err != nil || temp != 12.9 {
		t.Errorf("ExternalTemperature() = (%v, %v), want (12.9, nil)", temp, err)
	}

	sim.DisconnectExternalSensor()
	temp, err = device.ExternalTemperature()
	if err != nil || !math.IsNaN(temp) {
		t.Errorf("ExternalTemperature() disconnected = (%v, %v), want (NaN, nil)", temp, err)
	}

	connected, err := device.HasExternalSensor()
	if err != nil || connected {
		t.Errorf("HasExternalSensor() disconnected = (%t, %v), want (false, nil)", connected, err)
	}
	state, err := device.ExternalSensorState()
	if err != nil || state != SensorFaultOpen {
		t.Errorf("ExternalSensorState() = (%d, %v), want (SensorFaultOpen, nil)", state, err)
	}
}

func TestDeviceExternalLimits(t *testing.T) {
	device, err := New(NewSimulatedBus(), ConfigRegister{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// 54.4 is not representable, it clamps to 54.5.
	clamped, err := device.SetExternalHighTemperatureLimit(54.4)
	if err != nil || clamped != 54.5 {
		t.Errorf("SetExternalHighTemperatureLimit(54.4) = (%v, %v), want (54.5, nil)", clamped, err)
	}
	limit, err := device.ExternalHighTemperatureLimit()
	if err != nil || limit != 54.5 {
		t.Errorf("ExternalHighTemperatureLimit() = (%v, %v), want (54.5, nil)", limit, err)
	}

	if _, err = device.SetExternalLowTemperatureLimit(-5); !errors.Is(err, ErrTemperatureRange) {
		t.Errorf("SetExternalLowTemperatureLimit(-5) error = %v, want ErrTemperatureRange", err)
	}
	if _, err = device.SetExternalHighTemperatureLimit(101); !errors.Is(err, ErrTemperatureRange) {
		t.Errorf("SetExternalHighTemperatureLimit(101) error = %v, want ErrTemperatureRange", err)
	}
}

func TestDeviceConversionRate(t *testing.T) {
	device, err := New(NewSimulatedBus(), ConfigRegister{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rate, err := device.ConversionRate()
	if err != nil || rate != "16" { // power-on default
		t.Errorf("ConversionRate() = (%q, %v), want (\"16\", nil)", rate, err)
	}

	if err = device.SetConversionRate("32"); err != nil {
		t.Fatalf("SetConversionRate: %v", err)
	}
	rate, err = device.ConversionRate()
	if err != nil || rate != "32" {
		t.Errorf("ConversionRate() = (%q, %v), want (\"32\", nil)", rate, err)
	}

	if err = device.SetConversionRate("64"); !errors.Is(err, ErrConversionRate) {
		t.Errorf("SetConversionRate(64) error = %v, want ErrConversionRate", err)
	}
}

func TestDeviceForcedTemperature(t *testing.T) {
	sim := NewSimulatedBus()
	device, err := New(sim, ConfigRegister{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err = device.ForceTemperature(35.7); err != nil {
		t.Fatalf("ForceTemperature: %v", err)
	}
	if got := sim.Register(uint8(RegForcedTemp)); got != 36 {
		t.Errorf("forced register = %d, want 36", got)
	}
	if sim.Register(uint8(RegFanConfig))&fancfgForceTemp == 0 {
		t.Error("force bit should be set")
	}

	if err = device.ClearForcedTemperature(); err != nil {
		t.Fatalf("ClearForcedTemperature: %v", err)
	}
	if sim.Register(uint8(RegFanConfig))&fancfgForceTemp != 0 {
		t.Error("force bit should be clear")
	}
	if got := sim.Register(uint8(RegForcedTemp)); got != 0 {
		t.Errorf("forced register = %d, want 0", got)
	}
}

func TestDeviceResetRegisters(t *testing.T) {
	sim := NewSimulatedBus()
	device, err := New(sim, ConfigRegister{AltTach: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err = device.SetDriverStrength(30); err != nil {
		t.Fatalf("SetDriverStrength: %v", err)
	}

	if err = device.ResetRegisters(); err != nil {
		t.Fatalf("ResetRegisters: %v", err)
	}

	registers, err := device.ReadRegisters()
	if err != nil {
		t.Fatalf("ReadRegisters: %v", err)
	}
	for reg, want := range Defaults {
		if registers[reg] != want {
			t.Errorf("register 0x%02X = 0x%02X, want default 0x%02X", uint8(reg), registers[reg], want)
		}
	}
}
