package emc2101

import "errors"

// Validation errors. They are returned before any register is touched.
var (
	ErrTemperatureRange = errors.New("temperature is out of range")
	ErrStepRange        = errors.New("step is out of range")
	ErrDutyCycleRange   = errors.New("duty cycle is out of range")
	ErrRPMRange         = errors.New("rpm is out of range")
	ErrFrequencyRange   = errors.New("pwm frequency is out of range")
	ErrTooManyEntries   = errors.New("too many entries in lookup table (max: 8)")
	ErrConversionRate   = errors.New("unknown conversion rate")
	ErrUnknownUnit      = errors.New("unsupported fan speed unit")
)

// Degraded hardware conditions. They are expected outcomes, not faults of
// this driver, and callers are supposed to inspect them.
var (
	ErrStalledFan       = errors.New("no valid tach reading (fan stalled or disconnected)")
	ErrNoExternalSensor = errors.New("no external temperature sensor connected")
	ErrSensorFault      = errors.New("external temperature sensor diode fault")
	ErrNoTachMode       = errors.New("pin 6 is not configured for tacho mode")
	ErrAlertMode        = errors.New("pin 6 is in alert mode")
	ErrDACMode          = errors.New("device is configured for direct current control")
	ErrNoRPMMapping     = errors.New("no step with a known rpm")
)

// ErrNoProfile is the expected negative outcome of a calibration run. The
// specific reason is wrapped alongside so errors.Is matches both.
var (
	ErrNoProfile         = errors.New("no profile")
	ErrInsufficientSteps = errors.New("not enough speed control steps to calibrate")
	ErrUnresponsiveFan   = errors.New("fan does not respond to the control signal")
	ErrUnreliableReading = errors.New("unable to get a reliable rpm reading")
)
