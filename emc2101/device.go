// Package emc2101 is a driver for the SMSC/Microchip EMC2101 fan
// controller and thermal monitor.
//
// Datasheet: https://ww1.microchip.com/downloads/en/DeviceDoc/2101.pdf
package emc2101

import (
	"fmt"
	"math"
	"slices"

	"github.com/emcfan/emcfand/bus"
	"github.com/mdouchement/logger"
)

// Device is the low-level interface to the chip. Access to the underlying
// register bus is not safe to interleave across callers: multi-byte
// sequences (tach reads, lookup table updates) assume a single owner.
type Device struct {
	rb  bus.RegisterBus
	log logger.Logger

	scm    *SpeedControlMap
	maxRPM int

	stepMin, stepMax int
	tempMin, tempMax int
}

// New initializes the chip with the provided configuration.
//
// Make sure config.AltTach and config.DAC match the electric circuit.
// If these flags are wrong you won't get sensible readings.
func New(rb bus.RegisterBus, config ConfigRegister) (*Device, error) {
	d := &Device{
		rb:      rb,
		stepMax: stepHardMax,
		tempMax: 100,
	}
	if err := d.SetConfigRegister(config); err != nil {
		return nil, err
	}
	return d, nil
}

// NewPWM initializes the chip for a 4 pin fan described by the profile:
// tacho signal on pin 6, pulse width control, external sensor configured.
func NewPWM(rb bus.RegisterBus, profile *FanProfile, ets SensorConfig) (*Device, error) {
	scm, err := NewPulseWidthMap(profile)
	if err != nil {
		return nil, err
	}

	d, err := New(rb, ConfigRegister{AltTach: true})
	if err != nil {
		return nil, err
	}

	if err = d.ConfigureMinimumRPM(profile.MinimumRPM); err != nil {
		return nil, err
	}
	d.maxRPM = profile.MaximumRPM

	if err = d.ConfigureSpeedControl(scm); err != nil {
		return nil, err
	}

	if err = d.ConfigureExternalSensor(ets); err != nil && err != ErrSensorFault {
		return nil, err
	}

	return d, nil
}

// NewDAC initializes the chip for a fan controlled through its supply
// voltage: tacho signal on pin 6, DAC output on the FAN pin.
func NewDAC(rb bus.RegisterBus, profile *FanProfile) (*Device, error) {
	scm, err := NewContinuousDriveMap(profile)
	if err != nil {
		return nil, err
	}

	d, err := New(rb, ConfigRegister{AltTach: true, DAC: true})
	if err != nil {
		return nil, err
	}

	if err = d.ConfigureMinimumRPM(profile.MinimumRPM); err != nil {
		return nil, err
	}
	d.maxRPM = profile.MaximumRPM

	if err = d.ConfigureSpeedControl(scm); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Device) SetLogger(l logger.Logger) {
	d.log = l
}

// ---------------------------------------------------------------------
// identity
// ---------------------------------------------------------------------

// ManufacturerID reads the manufacturer ID (0x5D for SMSC).
func (d *Device) ManufacturerID() (uint8, error) {
	return d.rb.ReadRegister(uint8(RegManufacturerID))
}

// ProductID reads the product ID (0x16 for EMC2101, 0x28 for EMC2101-R).
func (d *Device) ProductID() (uint8, error) {
	return d.rb.ReadRegister(uint8(RegProductID))
}

// Revision reads the product revision.
func (d *Device) Revision() (uint8, error) {
	return d.rb.ReadRegister(uint8(RegRevision))
}

// Describe returns a human readable description of the chip.
func (d *Device) Describe() (string, error) {
	manufacturer, err := d.ManufacturerID()
	if err != nil {
		return "", err
	}
	product, err := d.ProductID()
	if err != nil {
		return "", err
	}
	revision, err := d.Revision()
	if err != nil {
		return "", err
	}

	mname, ok := manufacturerNames[manufacturer]
	if !ok {
		mname = "<unknown manufacturer>"
	}
	pname, ok := productNames[product]
	if !ok {
		pname = "<unknown product>"
	}
	return fmt.Sprintf("%s (0x%02X) %s (0x%02X) (rev: %d)", mname, manufacturer, pname, product, revision), nil
}

// ---------------------------------------------------------------------
// configuration
// ---------------------------------------------------------------------

// GetConfigRegister reads and parses the config register.
func (d *Device) GetConfigRegister() (ConfigRegister, error) {
	value, err := d.rb.ReadRegister(uint8(RegConfig))
	if err != nil {
		return ConfigRegister{}, err
	}
	return ParseConfigRegister(value), nil
}

// SetConfigRegister encodes and writes the config register.
func (d *Device) SetConfigRegister(config ConfigRegister) error {
	return d.rb.WriteRegister(uint8(RegConfig), config.Encode())
}

// Status reads and parses the status register. The chip clears the
// condition flags on read.
func (d *Device) Status() (StatusRegister, error) {
	value, err := d.rb.ReadRegister(uint8(RegStatus))
	if err != nil {
		return StatusRegister{}, err
	}
	return ParseStatusRegister(value), nil
}

// ConfigurePWMControl programs the PWM divider registers and the highest
// allowed driver strength code. It is refused when the chip is configured
// for direct current control.
func (d *Device) ConfigurePWMControl(pwmD, pwmF, stepMax int) error {
	if stepMax < 0 || stepMax > stepHardMax {
		return ErrStepRange
	}

	config, err := d.GetConfigRegister()
	if err != nil {
		return err
	}
	if config.DAC {
		return ErrDACMode
	}

	if err = d.rb.WriteRegister(uint8(RegPWMFrequency), uint8(pwmF)); err != nil {
		return err
	}
	if err = d.rb.WriteRegister(uint8(RegPWMDivide), uint8(pwmD)); err != nil {
		return err
	}

	d.stepMax = stepMax
	return nil
}

// ConfigureSpinUp programs the spin-up routine for the attached fan
// (drive strength and duration). The chip enters the routine any time it
// transitions from a fan setting of 0x00 to a higher one; it does not
// invoke it on power up. A strength of 0% or a duration of 0s disables
// spin-up entirely.
//
// Fast mode is ignored when pin 6 is in alert mode, in which case this
// call is refused.
func (d *Device) ConfigureSpinUp(strength SpinUpStrength, duration SpinUpDuration, fastMode bool) error {
	config, err := d.GetConfigRegister()
	if err != nil {
		return err
	}
	if !config.AltTach {
		return ErrAlertMode
	}

	value := uint8(strength) | uint8(duration)
	if fastMode {
		value |= 0b0010_0000
	}
	return d.rb.WriteRegister(uint8(RegFanSpinUp), value)
}

// ConfigureMinimumRPM programs the expected minimum speed. A measured
// speed below it means the fan is considered to be not spinning and the
// TACH status bit is set. The lowest representable value is 82 RPM.
func (d *Device) ConfigureMinimumRPM(rpm int) error {
	msb, lsb, err := RPMToTachLimit(rpm)
	if err != nil {
		return err
	}
	if err = d.rb.WriteRegister(uint8(RegTachLimitLSB), lsb); err != nil {
		return err
	}
	return d.rb.WriteRegister(uint8(RegTachLimitMSB), msb)
}

// ---------------------------------------------------------------------
// fan speed
// ---------------------------------------------------------------------

// RPM measures the current fan speed. Pin 6 must be configured for tacho
// mode. A stalled or disconnected fan fails with ErrStalledFan.
func (d *Device) RPM() (int, error) {
	config, err := d.GetConfigRegister()
	if err != nil {
		return 0, err
	}
	if !config.AltTach {
		return 0, ErrNoTachMode
	}

	// The low byte must be read first, reading it latches the high byte
	// (datasheet section 6.1).
	lsb, err := d.rb.ReadRegister(uint8(RegTachReadingLSB))
	if err != nil {
		return 0, err
	}
	msb, err := d.rb.ReadRegister(uint8(RegTachReadingMSB))
	if err != nil {
		return 0, err
	}

	rpm, ok := TachToRPM(msb, lsb)
	if !ok {
		return 0, ErrStalledFan
	}
	return rpm, nil
}

// DriverStrength reads the configured fan speed (raw step).
func (d *Device) DriverStrength() (int, error) {
	value, err := d.rb.ReadRegister(uint8(RegFanSetting))
	if err != nil {
		return 0, err
	}
	return int(value), nil
}

// SetDriverStrength writes the fan speed (raw step) and confirms the
// register took the value.
func (d *Device) SetDriverStrength(step int) error {
	if step < d.stepMin || step > d.stepMax {
		return ErrStepRange
	}
	if err := d.rb.WriteRegister(uint8(RegFanSetting), uint8(step)); err != nil {
		return err
	}

	value, err := d.rb.ReadRegister(uint8(RegFanSetting))
	if err != nil {
		return err
	}
	if int(value) != step {
		return fmt.Errorf("fan setting: wrote %d but register reads %d", step, value)
	}
	return nil
}

// ---------------------------------------------------------------------
// temperature measurements
// ---------------------------------------------------------------------

// ConversionRate reads the number of temperature conversions per second.
func (d *Device) ConversionRate() (string, error) {
	value, err := d.rb.ReadRegister(uint8(RegConversionRate))
	if err != nil {
		return "", err
	}
	value = min(value, 0b1001) // all larger encodings behave like 0b1001
	for name, encoding := range ConversionRates {
		if encoding == value {
			return name, nil
		}
	}
	return "", ErrConversionRate // unreachable after the clamp
}

// SetConversionRate programs the number of temperature conversions per
// second, e.g. "1/4", "8" or "32".
func (d *Device) SetConversionRate(rate string) error {
	value, ok := ConversionRates[rate]
	if !ok {
		return fmt.Errorf("%w: %q", ErrConversionRate, rate)
	}
	return d.rb.WriteRegister(uint8(RegConversionRate), value)
}

// InternalTemperature reads the internal sensor in °C. The datasheet
// guarantees a precision of ±2°C.
func (d *Device) InternalTemperature() (float64, error) {
	value, err := d.rb.ReadRegister(uint8(RegInternalTemp))
	if err != nil {
		return 0, err
	}
	return float64(int8(value)), nil
}

// InternalTemperatureLimit reads the internal sensor's high limit in °C.
func (d *Device) InternalTemperatureLimit() (float64, error) {
	value, err := d.rb.ReadRegister(uint8(RegInternalLimit))
	if err != nil {
		return 0, err
	}
	return float64(int8(value)), nil
}

// SetInternalTemperatureLimit programs the internal sensor's high limit.
func (d *Device) SetInternalTemperatureLimit(value float64) error {
	if value < float64(d.tempMin) || value > float64(d.tempMax) {
		return ErrTemperatureRange
	}
	return d.rb.WriteRegister(uint8(RegInternalLimit), uint8(int8(value)))
}

// OneShotConversion triggers a single temperature conversion.
func (d *Device) OneShotConversion() error {
	return d.rb.WriteRegister(uint8(RegOneShot), 0x00)
}

// ---------------------------------------------------------------------
// external temperature sensor (remote diode)
// ---------------------------------------------------------------------

// SensorState describes the external diode's wiring state.
type SensorState uint8

const (
	SensorOK         SensorState = iota
	SensorFaultOpen              // open circuit or short to VDD
	SensorFaultShort             // short circuit or short to GND
)

// SensorConfig holds the external diode's electrical characteristics
// (datasheet sections 6.12 and 6.13).
type SensorConfig struct {
	IdealityFactor   uint8
	BetaCompensation uint8
}

// Temperature sensitive transistors.
var (
	Sensor2N3904 = SensorConfig{IdealityFactor: 0x12, BetaCompensation: 0x08} // NPN
	Sensor2N3906 = SensorConfig{IdealityFactor: 0x12, BetaCompensation: 0x08} // PNP
)

// HasExternalSensor probes for a connected diode. The status register's
// fault bit only covers an open circuit, so the temperature high byte is
// probed instead (0x7F means nothing is connected).
func (d *Device) HasExternalSensor() (bool, error) {
	msb, err := d.rb.ReadRegister(uint8(RegExternalTempMSB))
	if err != nil {
		return false, err
	}
	return msb != 0b0111_1111, nil
}

// ExternalSensorState discriminates between a healthy diode, an open
// circuit and a short circuit.
func (d *Device) ExternalSensorState() (SensorState, error) {
	msb, err := d.rb.ReadRegister(uint8(RegExternalTempMSB))
	if err != nil {
		return SensorOK, err
	}
	lsb, err := d.rb.ReadRegister(uint8(RegExternalTempLSB))
	if err != nil {
		return SensorOK, err
	}

	if msb != 0b0111_1111 {
		return SensorOK, nil
	}
	switch lsb {
	case 0b0000_0000:
		return SensorFaultOpen, nil
	case 0b1110_0000:
		return SensorFaultShort, nil
	default:
		return SensorOK, fmt.Errorf("unexpected external sensor state (msb: 0x%02X lsb: 0x%02X)", msb, lsb)
	}
}

// ConfigureExternalSensor programs the diode ideality and beta
// compensation factors. Refused with ErrSensorFault when the diode fault
// bit is set.
func (d *Device) ConfigureExternalSensor(ets SensorConfig) error {
	status, err := d.Status()
	if err != nil {
		return err
	}
	if status.DiodeFault {
		return ErrSensorFault
	}

	if err = d.rb.WriteRegister(uint8(RegIdealityFactor), ets.IdealityFactor); err != nil {
		return err
	}
	return d.rb.WriteRegister(uint8(RegBetaCompensation), ets.BetaCompensation)
}

// ExternalTemperature reads the external sensor in °C. The datasheet
// guarantees a precision of ±1°C. Returns NaN when no sensor is connected
// or the diode is faulty; that is a degraded capability, not an error.
func (d *Device) ExternalTemperature() (float64, error) {
	msb, err := d.rb.ReadRegister(uint8(RegExternalTempMSB)) // high byte first
	if err != nil {
		return 0, err
	}
	lsb, err := d.rb.ReadRegister(uint8(RegExternalTempLSB))
	if err != nil {
		return 0, err
	}

	if msb == 0b0111_1111 {
		return math.NaN(), nil
	}
	return TemperatureFromBytes(msb, lsb), nil
}

// ExternalLowTemperatureLimit reads the lower alerting limit in °C.
func (d *Device) ExternalLowTemperatureLimit() (float64, error) {
	return d.readTemperaturePair(RegExternalLowMSB, RegExternalLowLSB)
}

// SetExternalLowTemperatureLimit programs the lower alerting limit. The
// fractional part has limited precision and is clamped to the nearest
// available step; the clamped value is returned.
func (d *Device) SetExternalLowTemperatureLimit(value float64) (float64, error) {
	return d.writeTemperaturePair(RegExternalLowMSB, RegExternalLowLSB, value)
}

// ExternalHighTemperatureLimit reads the upper alerting limit in °C.
func (d *Device) ExternalHighTemperatureLimit() (float64, error) {
	return d.readTemperaturePair(RegExternalHighMSB, RegExternalHighLSB)
}

// SetExternalHighTemperatureLimit programs the upper alerting limit. The
// fractional part has limited precision and is clamped to the nearest
// available step; the clamped value is returned.
func (d *Device) SetExternalHighTemperatureLimit(value float64) (float64, error) {
	return d.writeTemperaturePair(RegExternalHighMSB, RegExternalHighLSB, value)
}

// ForceTemperature makes the chip take readings from the forced register
// instead of the external sensor. Useful to debug the lookup table.
func (d *Device) ForceTemperature(value float64) error {
	if err := d.rb.WriteRegister(uint8(RegForcedTemp), uint8(int8(math.Round(value)))); err != nil {
		return err
	}

	fancfg, err := d.rb.ReadRegister(uint8(RegFanConfig))
	if err != nil {
		return err
	}
	return d.rb.WriteRegister(uint8(RegFanConfig), fancfg|fancfgForceTemp)
}

// ClearForcedTemperature reverts ForceTemperature.
func (d *Device) ClearForcedTemperature() error {
	fancfg, err := d.rb.ReadRegister(uint8(RegFanConfig))
	if err != nil {
		return err
	}
	if err = d.rb.WriteRegister(uint8(RegFanConfig), fancfg&^uint8(fancfgForceTemp)); err != nil {
		return err
	}
	return d.rb.WriteRegister(uint8(RegForcedTemp), 0x00)
}

// ---------------------------------------------------------------------
// convenience
// ---------------------------------------------------------------------

// ReadFanConfigRegister reads the raw fan configuration register (0x4A).
func (d *Device) ReadFanConfigRegister() (uint8, error) {
	return d.rb.ReadRegister(uint8(RegFanConfig))
}

// WriteFanConfigRegister writes the raw fan configuration register (0x4A).
func (d *Device) WriteFanConfigRegister(value uint8) error {
	return d.rb.WriteRegister(uint8(RegFanConfig), value)
}

// ReadRegisters dumps every register the defaults table knows about.
func (d *Device) ReadRegisters() (map[Register]uint8, error) {
	registers := make(map[Register]uint8, len(Defaults))
	for _, reg := range sortedRegisters() {
		value, err := d.rb.ReadRegister(uint8(reg))
		if err != nil {
			return nil, err
		}
		registers[reg] = value
	}
	return registers, nil
}

// ResetRegisters restores every register to its power-on default.
func (d *Device) ResetRegisters() error {
	if d.log != nil {
		d.log.Debug("Resetting all device registers to their default values.")
	}
	for _, reg := range sortedRegisters() {
		if err := d.rb.WriteRegister(uint8(reg), Defaults[reg]); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) readTemperaturePair(msbReg, lsbReg Register) (float64, error) {
	msb, err := d.rb.ReadRegister(uint8(msbReg)) // high byte first
	if err != nil {
		return 0, err
	}
	lsb, err := d.rb.ReadRegister(uint8(lsbReg))
	if err != nil {
		return 0, err
	}
	return TemperatureFromBytes(msb, lsb), nil
}

func (d *Device) writeTemperaturePair(msbReg, lsbReg Register, value float64) (float64, error) {
	if value < float64(d.tempMin) || value > float64(d.tempMax) {
		return 0, ErrTemperatureRange
	}

	msb, lsb := TemperatureToBytes(value)
	if err := d.rb.WriteRegister(uint8(msbReg), msb); err != nil {
		return 0, err
	}
	if err := d.rb.WriteRegister(uint8(lsbReg), lsb); err != nil {
		return 0, err
	}
	return TemperatureFromBytes(msb, lsb), nil
}

func sortedRegisters() []Register {
	registers := make([]Register, 0, len(Defaults))
	for reg := range Defaults {
		registers = append(registers, reg)
	}
	slices.Sort(registers)
	return registers
}
