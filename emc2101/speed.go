package emc2101

import "fmt"

// FanSpeedUnit selects how a fan speed value is expressed.
type FanSpeedUnit uint8

const (
	UnitStep    FanSpeedUnit = iota // raw driver strength code
	UnitPercent                     // duty cycle 0..100%
	UnitRPM                         // rotations per minute
)

// ConfigureSpeedControl installs the speed control map and aligns the chip
// with it: for a pulse width map the divider registers and maximum step
// are programmed, for a continuous drive map only the step ceiling moves.
func (d *Device) ConfigureSpeedControl(scm *SpeedControlMap) error {
	if scm.Mode() == PWM {
		pwmD, pwmF := scm.PWMSettings()
		if err := d.ConfigurePWMControl(pwmD, pwmF, scm.MaxStep()); err != nil {
			return err
		}
	} else {
		d.stepMax = scm.MaxStep()
	}

	d.scm = scm
	return nil
}

// SpeedControl returns the installed speed control map, nil when the
// device was built without a fan profile.
func (d *Device) SpeedControl() *SpeedControlMap {
	return d.scm
}

// SetFixedSpeed drives the fan at the provided speed, converting to the
// nearest available step first. It returns the effective value in the same
// unit, which may differ from the request because of the step resolution.
func (d *Device) SetFixedSpeed(value int, unit FanSpeedUnit) (int, error) {
	if d.scm == nil {
		return 0, fmt.Errorf("set speed: no speed control map installed")
	}

	var step int
	switch unit {
	case UnitPercent:
		if value < 0 || value > 100 {
			return 0, ErrDutyCycleRange
		}
		step = d.scm.PercentToStep(value)
	case UnitRPM:
		if value < 0 || value > d.maxRPM {
			return 0, ErrRPMRange
		}
		var err error
		if step, err = d.scm.RPMToStep(value); err != nil {
			return 0, err
		}
	case UnitStep:
		if !d.scm.IsValidStep(value) {
			return 0, ErrStepRange
		}
		step = value
	default:
		return 0, ErrUnknownUnit
	}

	if err := d.SetDriverStrength(step); err != nil {
		return 0, err
	}
	return d.speedFromStep(step, unit)
}

// FixedSpeed reads the configured fan speed in the provided unit.
func (d *Device) FixedSpeed(unit FanSpeedUnit) (int, error) {
	if d.scm == nil {
		return 0, fmt.Errorf("get speed: no speed control map installed")
	}

	step, err := d.DriverStrength()
	if err != nil {
		return 0, err
	}
	return d.speedFromStep(step, unit)
}

// UpdateLookupTableSpeeds resolves each temperature→speed pair to a step
// through the speed control map and rewrites the lookup table with the
// result. Values that cannot be resolved to a valid step are skipped; if
// nothing remains the table is left untouched.
func (d *Device) UpdateLookupTableSpeeds(slots map[int]int, unit FanSpeedUnit) error {
	if d.scm == nil {
		return fmt.Errorf("lookup table: no speed control map installed")
	}

	resolved := make(map[int]int, len(slots))
	for temp, value := range slots {
		var step int
		switch unit {
		case UnitPercent:
			step = d.scm.PercentToStep(value)
		case UnitRPM:
			var err error
			if step, err = d.scm.RPMToStep(value); err != nil {
				continue
			}
		case UnitStep:
			step = value
		default:
			return ErrUnknownUnit
		}

		if !d.scm.IsValidStep(step) {
			if d.log != nil {
				d.log.Errorf("Unable to resolve value '%d' to a valid step! Skipping.", value)
			}
			continue
		}
		resolved[temp] = step
	}

	if len(resolved) == 0 {
		return fmt.Errorf("lookup table: no resolvable slots")
	}
	return d.UpdateLookupTable(resolved)
}

func (d *Device) speedFromStep(step int, unit FanSpeedUnit) (int, error) {
	switch unit {
	case UnitPercent:
		return d.scm.StepToPercent(step)
	case UnitRPM:
		return d.scm.StepToRPM(step)
	case UnitStep:
		return step, nil
	default:
		return 0, ErrUnknownUnit
	}
}
