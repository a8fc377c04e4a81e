package emc2101

import (
	"fmt"
	"math"
	"slices"
)

// SpeedControlMap converts between the three fan speed units (step,
// duty cycle percent, RPM) for a given fan. The continuous drive and pulse
// width variants share the conversion algorithm and differ only in how the
// table is populated, so they are a mode tag on the same type rather than
// two implementations.
//
// Tables are small (16 entries at most), a linear nearest-match scan is all
// that is needed. The scan walks steps in ascending order, so a conversion
// that hits two equally close entries resolves to the lower step.
type SpeedControlMap struct {
	mode  ControlMode
	steps Steps
	order []int

	// pulse width only
	pwmD    int
	pwmF    int
	dutyMin uint8
	dutyMax uint8
}

// NewContinuousDriveMap builds the map for a voltage controlled fan.
func NewContinuousDriveMap(profile *FanProfile) (*SpeedControlMap, error) {
	if profile.ControlMode != Voltage {
		return nil, fmt.Errorf("speed control: %s is not voltage controlled", profile.Model)
	}
	if len(profile.Steps) == 0 {
		return nil, fmt.Errorf("speed control: %s: profile must have at least 1 step", profile.Model)
	}

	return &SpeedControlMap{
		mode:  Voltage,
		steps: profile.Steps,
		order: sortedSteps(profile.Steps),
	}, nil
}

// NewPulseWidthMap builds the map for a PWM controlled fan. The duty cycle
// floor and ceiling are derived from the profile's configured percentages
// and the divider factors from its carrier frequency.
func NewPulseWidthMap(profile *FanProfile) (*SpeedControlMap, error) {
	if profile.ControlMode != PWM {
		return nil, fmt.Errorf("speed control: %s is not pwm controlled", profile.Model)
	}
	if len(profile.Steps) == 0 {
		return nil, fmt.Errorf("speed control: %s: profile must have at least 1 step", profile.Model)
	}

	pwmD, pwmF, err := CalculatePWMFactors(profile.PWMFrequency)
	if err != nil {
		return nil, fmt.Errorf("speed control: %s: %w", profile.Model, err)
	}

	dutyMin, err := DutyCycleToRaw(profile.MinimumDutyCycle)
	if err != nil {
		return nil, fmt.Errorf("speed control: %s: %w", profile.Model, err)
	}
	dutyMax, err := DutyCycleToRaw(profile.MaximumDutyCycle)
	if err != nil {
		return nil, fmt.Errorf("speed control: %s: %w", profile.Model, err)
	}

	return &SpeedControlMap{
		mode:    PWM,
		steps:   profile.Steps,
		order:   sortedSteps(profile.Steps),
		pwmD:    pwmD,
		pwmF:    pwmF,
		dutyMin: dutyMin,
		dutyMax: dutyMax,
	}, nil
}

// Mode returns the control strategy this map was built for.
func (m *SpeedControlMap) Mode() ControlMode {
	return m.mode
}

// PWMSettings returns the divider factors (PWM_D, PWM_F). Both are zero for
// a continuous drive map.
func (m *SpeedControlMap) PWMSettings() (pwmD, pwmF int) {
	return m.pwmD, m.pwmF
}

// Steps returns the available driver strength codes in ascending order.
func (m *SpeedControlMap) Steps() []int {
	return slices.Clone(m.order)
}

// MaxStep returns the highest driver strength code.
func (m *SpeedControlMap) MaxStep() int {
	return m.order[len(m.order)-1]
}

// IsValidStep reports whether the value is one of the fan's steps.
func (m *SpeedControlMap) IsValidStep(value int) bool {
	_, ok := m.steps[value]
	return ok
}

// StepToPercent returns the duty cycle for a step.
func (m *SpeedControlMap) StepToPercent(step int) (int, error) {
	record, ok := m.steps[step]
	if !ok {
		return 0, ErrStepRange
	}
	return record.DutyCycle, nil
}

// StepToRPM returns the observed speed for a step. It fails with
// ErrNoRPMMapping when the speed for that step was never measured.
func (m *SpeedControlMap) StepToRPM(step int) (int, error) {
	record, ok := m.steps[step]
	if !ok {
		return 0, ErrStepRange
	}
	if record.RPM == nil {
		return 0, ErrNoRPMMapping
	}
	return *record.RPM, nil
}

// PercentToStep finds the step whose duty cycle is relatively closest to
// the provided value.
func (m *SpeedControlMap) PercentToStep(percent int) int {
	step := m.order[0]
	deviation := math.Inf(1)
	for _, candidate := range m.order {
		d := relativeDeviation(percent, m.steps[candidate].DutyCycle)
		if d < deviation {
			step = candidate
			deviation = d
		}
	}
	return step
}

// RPMToStep finds the step whose observed speed is relatively closest to
// the provided value, skipping steps with an unknown speed. It fails with
// ErrNoRPMMapping when no step has a known speed.
func (m *SpeedControlMap) RPMToStep(rpm int) (int, error) {
	step := 0
	found := false
	deviation := math.Inf(1)
	for _, candidate := range m.order {
		record := m.steps[candidate]
		if record.RPM == nil {
			continue
		}
		if d := relativeDeviation(rpm, *record.RPM); d < deviation {
			step = candidate
			found = true
			deviation = d
		}
	}
	if !found {
		return 0, ErrNoRPMMapping
	}
	return step, nil
}

// relativeDeviation computes |1 - target/reference|, substituting 1 for a
// zero reference to avoid dividing by zero.
func relativeDeviation(target, reference int) float64 {
	if reference == 0 {
		reference = 1
	}
	return math.Abs(1 - float64(target)/float64(reference))
}

func sortedSteps(steps Steps) []int {
	order := make([]int, 0, len(steps))
	for step := range steps {
		order = append(order, step)
	}
	slices.Sort(order)
	return order
}
