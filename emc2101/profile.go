package emc2101

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

// ControlMode tells how the fan's speed is driven.
type ControlMode string

const (
	// Voltage varies the supply voltage (2 and 3 pin fans).
	Voltage ControlMode = "VOLTAGE"
	// PWM pulse-width modulates the control pin (4 pin fans).
	PWM ControlMode = "PWM"
)

// Step is one driver strength code's observed behavior. RPM is nil when the
// speed for that step was never measured.
type Step struct {
	DutyCycle int  `yaml:"dutycycle"`
	RPM       *int `yaml:"rpm"`
}

// Steps maps driver strength codes to their observed behavior.
type Steps map[int]Step

// FanProfile describes a fan's operating envelope. It is built once, by
// calibration or deserialization, and never mutated afterwards; build a new
// device to adopt a new profile.
type FanProfile struct {
	Model            string      `yaml:"model"`
	ControlMode      ControlMode `yaml:"control_mode"`
	PWMFrequency     int         `yaml:"pwm_frequency,omitempty"`
	MinimumDutyCycle int         `yaml:"minimum_duty_cycle,omitempty"`
	MaximumDutyCycle int         `yaml:"maximum_duty_cycle,omitempty"`
	MinimumRPM       int         `yaml:"minimum_rpm"`
	MaximumRPM       int         `yaml:"maximum_rpm"`
	Steps            Steps       `yaml:"steps"`
}

// Validate checks the profile's invariants. It does not mutate the profile.
func (p *FanProfile) Validate() error {
	switch p.ControlMode {
	case Voltage:
	case PWM:
		if p.PWMFrequency <= 0 {
			return fmt.Errorf("%s: a pwm fan must provide a carrier frequency", p.Model)
		}
	default:
		return fmt.Errorf("%s: unknown control mode %q", p.Model, p.ControlMode)
	}

	if p.MinimumDutyCycle < 0 {
		return fmt.Errorf("%s: minimum duty cycle can't be negative", p.Model)
	}
	if p.MinimumDutyCycle > p.MaximumDutyCycle {
		return fmt.Errorf("%s: minimum duty cycle must be smaller than maximum duty cycle", p.Model)
	}
	if p.MaximumDutyCycle > 100 {
		return fmt.Errorf("%s: maximum duty cycle can't exceed 100%%", p.Model)
	}

	for step, record := range p.Steps {
		if step < 0 || step > stepHardMax {
			return fmt.Errorf("%s: step %d: %w", p.Model, step, ErrStepRange)
		}
		if record.DutyCycle < 0 || record.DutyCycle > 100 {
			return fmt.Errorf("%s: step %d: %w", p.Model, step, ErrDutyCycleRange)
		}
	}

	return nil
}

// LoadProfile reads and validates a fan profile.
func LoadProfile(path string) (*FanProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var p FanProfile
	codec := yaml.NewDecoder(f)
	if err = codec.Decode(&p); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}

	if err = p.Validate(); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}

	return &p, nil
}

// SaveProfile writes a fan profile.
func SaveProfile(path string, p *FanProfile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("profile: %w", err)
	}

	payload, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("profile: %w", err)
	}

	return os.WriteFile(path, payload, 0o644)
}

// GenericDCFan is a reasonable default for voltage controlled fans.
// Providing less than 50% supply voltage is probably a bad idea, the fan
// might fail to start properly.
func GenericDCFan() *FanProfile {
	return &FanProfile{
		Model:            "generic DC fan",
		ControlMode:      Voltage,
		MinimumDutyCycle: 50,
		MaximumDutyCycle: 100,
		MinimumRPM:       100,
		MaximumRPM:       2000,
		Steps:            continuousDriveSteps(),
	}
}

// GenericPWMFan is a reasonable default for 4 pin fans. Some fans treat a
// duty cycle below 20% as 'no signal' and go full speed instead.
func GenericPWMFan() *FanProfile {
	return &FanProfile{
		Model:            "generic PWM fan",
		ControlMode:      PWM,
		PWMFrequency:     22500,
		MinimumDutyCycle: 20,
		MaximumDutyCycle: 100,
		MinimumRPM:       100,
		MaximumRPM:       2000,
		Steps:            pulseWidthSteps(),
	}
}

func rpm(v int) *int {
	return &v
}

// Behavior measured on a reference DC fan.
func continuousDriveSteps() Steps {
	return Steps{
		3:  {DutyCycle: 34, RPM: rpm(409)},
		4:  {DutyCycle: 40, RPM: rpm(479)},
		5:  {DutyCycle: 44, RPM: rpm(526)},
		6:  {DutyCycle: 49, RPM: rpm(591)},
		7:  {DutyCycle: 52, RPM: rpm(629)},
		8:  {DutyCycle: 58, RPM: rpm(697)},
		9:  {DutyCycle: 65, RPM: rpm(785)},
		10: {DutyCycle: 72, RPM: rpm(868)},
		11: {DutyCycle: 79, RPM: rpm(950)},
		12: {DutyCycle: 87, RPM: rpm(1040)},
		13: {DutyCycle: 93, RPM: rpm(1113)},
		14: {DutyCycle: 100, RPM: rpm(1194)},
	}
}

// Evenly spread duty cycles with unknown speeds, calibrate for real values.
func pulseWidthSteps() Steps {
	steps := make(Steps, 16)
	for step := range 16 {
		steps[step] = Step{DutyCycle: step * 100 / 16}
	}
	return steps
}
