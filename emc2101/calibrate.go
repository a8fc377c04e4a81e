package emc2101

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/emcfan/emcfand/bus"
	"github.com/mdouchement/logger"
)

// Calibrator probes a physically unknown PWM fan and derives its operating
// envelope (duty cycle to RPM curve) without prior knowledge. It drives
// the device through a sequence of driver strengths and waits for the
// mechanical fan to settle after each change, so a full run takes a few
// minutes of wall clock time.
//
// Expected negative outcomes (no fan attached, an unresponsive fan, a
// wiring fault) are reported as errors matching ErrNoProfile; bus faults
// abort the run and propagate as-is.
type Calibrator struct {
	rb  bus.RegisterBus
	log logger.Logger

	// SettleDelay is the wait after a large speed change, SampleDelay the
	// wait between RPM samples while hunting for a stable reading.
	SettleDelay time.Duration
	SampleDelay time.Duration

	// Sleep is swappable so tests don't wait for a mechanical fan.
	Sleep func(time.Duration)
}

// NewCalibrator builds a calibrator with the default settle timings.
func NewCalibrator(rb bus.RegisterBus) *Calibrator {
	return &Calibrator{
		rb:          rb,
		SettleDelay: 5 * time.Second,
		SampleDelay: 500 * time.Millisecond,
		Sleep:       time.Sleep,
	}
}

func (c *Calibrator) SetLogger(l logger.Logger) {
	c.log = l
}

type calibrationSample struct {
	step      int
	dutyCycle int
	rpm       int
}

// Calibrate walks through every speed control step the carrier frequency
// allows and records the fan's response, then compresses the measured
// curve into a FanProfile.
func (c *Calibrator) Calibrate(model string, pwmFrequency int) (*FanProfile, error) {
	c.infof("Calibrating fan parameters.")

	pwmD, pwmF, err := CalculatePWMFactors(pwmFrequency)
	if err != nil {
		return nil, fmt.Errorf("calibrate: %w", err)
	}
	numSteps := 2 * pwmF

	// Tacho signal on pin 6, device uses PWM control.
	device, err := New(c.rb, ConfigRegister{AltTach: true})
	if err != nil {
		return nil, fmt.Errorf("calibrate: %w", err)
	}
	device.SetLogger(c.log)
	if err = device.ConfigurePWMControl(pwmD, pwmF, numSteps-1); err != nil {
		return nil, fmt.Errorf("calibrate: %w", err)
	}

	if err = c.probeResponsiveness(device, numSteps); err != nil {
		return nil, err
	}

	samples, err := c.mapCurve(device, numSteps)
	if err != nil {
		return nil, err
	}

	return c.compact(model, pwmFrequency, samples)
}

// probeResponsiveness checks that the fan shows a significant speed delta
// between a mid and a near-maximum duty cycle. A fan that doesn't react to
// the control signal is not worth mapping for 10+ minutes.
func (c *Calibrator) probeResponsiveness(device *Device, numSteps int) error {
	stepMid := numSteps / 2
	stepHigh := numSteps - 2
	if numSteps <= 2 || stepMid == stepHigh {
		c.warnf("Fan does not have enough steps to calibrate!")
		return fmt.Errorf("calibrate: %w: %w", ErrNoProfile, ErrInsufficientSteps)
	}

	c.infof("Testing if fan responds to PWM signal:")

	rpmMid, err := c.sampleRPM(device, stepMid, c.SettleDelay)
	if err != nil {
		return err
	}
	rpmHigh, err := c.sampleRPM(device, stepHigh, c.SettleDelay)
	if err != nil {
		return err
	}

	// Require at least a 4% relative RPM increase to prove the fan
	// follows the control signal.
	if rpmMid*100/rpmHigh >= 96 {
		c.warnf("Failed to observe a significant speed change in response to PWM signal! Aborting.")
		c.warnf("Please verify wiring and configuration.")
		return fmt.Errorf("calibrate: %w: %w", ErrNoProfile, ErrUnresponsiveFan)
	}

	dutyMid := stepMid * 100 / numSteps
	dutyHigh := stepHigh * 100 / numSteps
	c.infof("Yes, it does. Observed an RPM change in response to PWM signal. (%d%%: %d -> %d%%: %d RPM)", dutyMid, rpmMid, dutyHigh, rpmHigh)
	return nil
}

func (c *Calibrator) sampleRPM(device *Device, step int, settle time.Duration) (int, error) {
	if err := device.SetDriverStrength(step); err != nil {
		return 0, fmt.Errorf("calibrate: %w", err)
	}
	c.Sleep(settle)

	rpm, err := device.RPM()
	if err != nil {
		if errors.Is(err, ErrStalledFan) {
			c.errorf("Unable to get a reliable RPM reading. Aborting.")
			return 0, fmt.Errorf("calibrate: %w: %w", ErrNoProfile, ErrUnreliableReading)
		}
		return 0, fmt.Errorf("calibrate: %w", err)
	}
	return rpm, nil
}

// mapCurve measures the settled RPM of every step in ascending order. A
// step whose reading never stabilizes within the sample budget is recorded
// with the last rolling average, that is a soft failure.
func (c *Calibrator) mapCurve(device *Device, numSteps int) ([]calibrationSample, error) {
	c.infof("Mapping PWM dutycycle to RPM. Please wait.")

	const (
		sampleBudget = 24
		windowSize   = 3
	)

	samples := make([]calibrationSample, 0, numSteps)
	for step := range numSteps {
		dutyCycle := step * 100 / numSteps

		if err := device.SetDriverStrength(step); err != nil {
			return nil, fmt.Errorf("calibrate: %w", err)
		}
		c.Sleep(c.SampleDelay)

		// Seed the rolling window with absurd values so the average
		// cannot settle before the window holds real measurements.
		window := [windowSize]int{99999, 99999, 99999}
		average := 0.0
		settled := false

		for i := range sampleBudget {
			rpm, err := device.RPM()
			if err != nil {
				if errors.Is(err, ErrStalledFan) {
					c.errorf("Unable to get a reliable RPM reading. Aborting.")
					return nil, fmt.Errorf("calibrate: %w: %w", ErrNoProfile, ErrUnreliableReading)
				}
				return nil, fmt.Errorf("calibrate: %w", err)
			}

			// Order is important, update the window before computing the
			// average the new sample deviates from.
			window[i%windowSize] = rpm
			average = float64(window[0]+window[1]+window[2]) / windowSize
			deviation := float64(rpm) / average
			c.debugf("step: %2d i: %2d -> rpm: %4d deviation: %1.2f", step, i%windowSize, rpm, deviation)

			if deviation >= 0.99 && deviation <= 1.01 {
				settled = true
				break
			}
			c.Sleep(c.SampleDelay)
		}

		// RPM is never exact and fluctuates slightly, round to the
		// nearest multiple of 5 to absorb the jitter.
		rpm := int(math.Round(average/5)) * 5
		if settled {
			c.debugf("Fan has settled: (step: %d -> dutycycle: %3d%%, rpm: %d)", step, dutyCycle, rpm)
		} else {
			c.warnf("Fan never settled! (step: %d -> dutycycle: %3d%%, rpm: %d)", step, dutyCycle, rpm)
		}
		samples = append(samples, calibrationSample{step: step, dutyCycle: dutyCycle, rpm: rpm})
	}

	return samples, nil
}

// compact prunes steps that are not meaningfully distinct (multiple steps
// may settle at the same RPM, e.g. around the minimum) and assembles the
// profile from the survivors.
func (c *Calibrator) compact(model string, pwmFrequency int, samples []calibrationSample) (*FanProfile, error) {
	rpmMax := 0
	for _, s := range samples {
		rpmMax = max(rpmMax, s.rpm)
	}
	c.infof("Maximum RPM: %d", rpmMax)

	// Each kept step must be at least 1.1% of the maximum RPM above the
	// previously kept one. The final step always survives so the full
	// duty endpoint is preserved.
	minDelta := float64(rpmMax) * 0.011

	steps := make(Steps, len(samples))
	minDuty, maxDuty := 100, 0
	minRPM, maxRPM := 0, 0

	lastKept := math.Inf(-1)
	for i, s := range samples {
		keep := i == 0 || i == len(samples)-1 || lastKept+minDelta <= float64(s.rpm)
		c.infof("step: %2d dutycycle: %3d%% -> RPM: %5d (%3.0f%%) keep: %t", s.step, s.dutyCycle, s.rpm, float64(s.rpm)*100/float64(rpmMax), keep)
		if !keep {
			continue
		}
		lastKept = float64(s.rpm)

		steps[s.step] = Step{DutyCycle: s.dutyCycle, RPM: rpm(s.rpm)}
		minDuty = min(minDuty, s.dutyCycle)
		maxDuty = max(maxDuty, s.dutyCycle)
		if minRPM == 0 || s.rpm < minRPM {
			minRPM = s.rpm
		}
		maxRPM = max(maxRPM, s.rpm)
	}

	profile := &FanProfile{
		Model:            model,
		ControlMode:      PWM,
		PWMFrequency:     pwmFrequency,
		MinimumDutyCycle: minDuty, // e.g. 20%
		MaximumDutyCycle: maxDuty, // typically close to 100%
		MinimumRPM:       minRPM,
		MaximumRPM:       maxRPM,
		Steps:            steps,
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("calibrate: %w", err)
	}
	return profile, nil
}

func (c *Calibrator) infof(format string, args ...any) {
	if c.log != nil {
		c.log.Infof(format, args...)
	}
}

func (c *Calibrator) debugf(format string, args ...any) {
	if c.log != nil {
		c.log.Debugf(format, args...)
	}
}

func (c *Calibrator) warnf(format string, args ...any) {
	if c.log != nil {
		c.log.Warnf(format, args...)
	}
}

func (c *Calibrator) errorf(format string, args ...any) {
	if c.log != nil {
		c.log.Errorf(format, args...)
	}
}
