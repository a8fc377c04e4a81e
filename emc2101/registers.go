package emc2101

// ConfigRegister is a representation of the chip's config register (0x03).
//
// This is not the entire configuration, there are additional registers
// which configure different aspects of the chip, e.g. the fan configuration
// register (0x4A). Refer to datasheet section 6.5 for an exhaustive
// description.
type ConfigRegister struct {
	// The comment describes what happens if the flag is set.
	Mask       bool // disable ALERT/TACH when in interrupt mode
	Standby    bool // enable low power standby mode
	FanStandby bool // disable fan output while in standby
	DAC        bool // enable DAC output on the FAN pin
	DisableTO  bool // disable SMBus timeout
	AltTach    bool // configure pin 6 as tacho input
	TCritOvrd  bool // unlock the tcrit limit and allow a one-time write
	Queue      bool // alert after 3 critical temperature readings
}

// Encode computes the config register's value.
func (c ConfigRegister) Encode() uint8 {
	var value uint8
	if c.Mask {
		value |= 0b1000_0000
	}
	if c.Standby {
		value |= 0b0100_0000
	}
	if c.FanStandby {
		value |= 0b0010_0000
	}
	if c.DAC {
		value |= 0b0001_0000
	}
	if c.DisableTO {
		value |= 0b0000_1000
	}
	if c.AltTach {
		value |= 0b0000_0100
	}
	if c.TCritOvrd {
		value |= 0b0000_0010
	}
	if c.Queue {
		value |= 0b0000_0001
	}
	return value
}

// ParseConfigRegister parses the config register's value.
func ParseConfigRegister(value uint8) ConfigRegister {
	return ConfigRegister{
		Mask:       value&0b1000_0000 != 0,
		Standby:    value&0b0100_0000 != 0,
		FanStandby: value&0b0010_0000 != 0,
		DAC:        value&0b0001_0000 != 0,
		DisableTO:  value&0b0000_1000 != 0,
		AltTach:    value&0b0000_0100 != 0,
		TCritOvrd:  value&0b0000_0010 != 0,
		Queue:      value&0b0000_0001 != 0,
	}
}

// StatusRegister is a representation of the chip's status register (0x02).
// All flags are read-only conditions and clear on read.
type StatusRegister struct {
	Busy         bool // ADC is converting
	InternalHigh bool // internal sensor exceeded its high limit
	EEPROM       bool // EEPROM could not be found (EMC2101-R)
	ExternalHigh bool // external diode exceeded its high limit
	ExternalLow  bool // external diode dropped below its low limit
	DiodeFault   bool // open circuit on the external diode
	TCrit        bool // external diode exceeded the critical limit
	TachLimit    bool // tach count exceeded the tach limit
}

// Encode computes the status register's value.
func (s StatusRegister) Encode() uint8 {
	var value uint8
	if s.Busy {
		value |= 0b1000_0000
	}
	if s.InternalHigh {
		value |= 0b0100_0000
	}
	if s.EEPROM {
		value |= 0b0010_0000
	}
	if s.ExternalHigh {
		value |= 0b0001_0000
	}
	if s.ExternalLow {
		value |= 0b0000_1000
	}
	if s.DiodeFault {
		value |= 0b0000_0100
	}
	if s.TCrit {
		value |= 0b0000_0010
	}
	if s.TachLimit {
		value |= 0b0000_0001
	}
	return value
}

// ParseStatusRegister parses the status register's value.
func ParseStatusRegister(value uint8) StatusRegister {
	return StatusRegister{
		Busy:         value&0b1000_0000 != 0,
		InternalHigh: value&0b0100_0000 != 0,
		EEPROM:       value&0b0010_0000 != 0,
		ExternalHigh: value&0b0001_0000 != 0,
		ExternalLow:  value&0b0000_1000 != 0,
		DiodeFault:   value&0b0000_0100 != 0,
		TCrit:        value&0b0000_0010 != 0,
		TachLimit:    value&0b0000_0001 != 0,
	}
}
