package emc2101

// Register is an address on the chip's SMBus register map.
type Register uint8

// The I2C bus address is hardcoded by the chip.
const BusAddress = 0x4C

// Register map (datasheet sections 6.1-6.23).
const (
	RegInternalTemp     Register = 0x00
	RegExternalTempMSB  Register = 0x01 // high byte, must be read first
	RegStatus           Register = 0x02
	RegConfig           Register = 0x03
	RegConversionRate   Register = 0x04
	RegInternalLimit    Register = 0x05
	RegExternalHighMSB  Register = 0x07
	RegExternalLowMSB   Register = 0x08
	RegForcedTemp       Register = 0x0C
	RegOneShot          Register = 0x0F
	RegExternalTempLSB  Register = 0x10
	RegScratchpad1      Register = 0x11
	RegScratchpad2      Register = 0x12
	RegExternalHighLSB  Register = 0x13
	RegExternalLowLSB   Register = 0x14
	RegAlertMask        Register = 0x16
	RegIdealityFactor   Register = 0x17
	RegBetaCompensation Register = 0x18
	RegTCritLimit       Register = 0x19
	RegTCritHysteresis  Register = 0x21
	RegTachReadingLSB   Register = 0x46 // must be read before the MSB
	RegTachReadingMSB   Register = 0x47
	RegTachLimitLSB     Register = 0x48
	RegTachLimitMSB     Register = 0x49
	RegFanConfig        Register = 0x4A
	RegFanSpinUp        Register = 0x4B
	RegFanSetting       Register = 0x4C
	RegPWMFrequency     Register = 0x4D
	RegPWMDivide        Register = 0x4E
	RegLUTHysteresis    Register = 0x4F
	RegLUTBase          Register = 0x50 // 8 slots x 2 registers, 0x50..0x5F
	RegAveragingFilter  Register = 0xBF
	RegProductID        Register = 0xFD
	RegManufacturerID   Register = 0xFE
	RegRevision         Register = 0xFF
)

// Fan config register (0x4A) bits used by this driver.
const (
	fancfgForceTemp  = 0b0100_0000 // read temperature from the forced register
	fancfgLUTDisable = 0b0010_0000 // 0 = lookup table drives the fan, 1 = fan setting register
)

const (
	lutSlots = 8

	// 0x3F: the fan setting register holds 64 driver strength codes.
	stepHardMax = 63

	// Tach counts convert to RPM through this constant; the 16-bit count
	// bottoms out at 0xFFFE which puts the floor at 82 RPM.
	tachFrequency = 5_400_000
	minimumRPM    = 82
)

// Defaults holds the power-on value of every writable register.
var Defaults = map[Register]uint8{
	RegConfig:           0b0000_0000,
	RegConversionRate:   0b0000_1000,
	RegInternalLimit:    0b0100_0110,
	RegExternalHighMSB:  0b0100_0110,
	RegExternalLowMSB:   0b0000_0000,
	RegExternalHighLSB:  0b0000_0000,
	RegExternalLowLSB:   0b0000_0000,
	RegTCritLimit:       0b0101_0101,
	RegTCritHysteresis:  0b0000_1010,
	RegForcedTemp:       0b0000_0000,
	RegScratchpad1:      0b0000_0000,
	RegScratchpad2:      0b0000_0000,
	RegAlertMask:        0b1010_0100,
	RegIdealityFactor:   0b0001_0010,
	RegBetaCompensation: 0b0000_1000,
	RegTachLimitLSB:     0b1111_1111,
	RegTachLimitMSB:     0b1111_1111,
	RegFanConfig:        0b0010_0000,
	RegFanSpinUp:        0b0011_1111,
	RegFanSetting:       0b0000_0000,
	RegPWMFrequency:     0b0001_0111,
	RegPWMDivide:        0b0000_0001,
	RegLUTHysteresis:    0b0000_0100,
	RegAveragingFilter:  0b0000_0000,
}

var manufacturerNames = map[uint8]string{
	0x5D: "SMSC",
}

var productNames = map[uint8]string{
	0x16: "EMC2101",
	0x28: "EMC2101R",
}

// ConversionRates maps the human-readable number of temperature
// conversions per second to the register encoding (0x04). All encodings
// above 0b1001 behave like 0b1001.
var ConversionRates = map[string]uint8{
	"1/16": 0b0000,
	"1/8":  0b0001,
	"1/4":  0b0010,
	"1/2":  0b0011,
	"1":    0b0100,
	"2":    0b0101,
	"4":    0b0110,
	"8":    0b0111,
	"16":   0b1000,
	"32":   0b1001,
}

// SpinUpStrength is the drive level applied during the spin-up routine.
type SpinUpStrength uint8

const (
	SpinUpBypass      SpinUpStrength = 0b0000_0000
	SpinUpStrength50  SpinUpStrength = 0b0000_1000
	SpinUpStrength75  SpinUpStrength = 0b0001_0000
	SpinUpStrength100 SpinUpStrength = 0b0001_1000 // chip default
)

// SpinUpDuration is how long the spin-up routine drives the fan.
type SpinUpDuration uint8

const (
	SpinUpTime0_00 SpinUpDuration = 0b0000_0000
	SpinUpTime0_05 SpinUpDuration = 0b0000_0001
	SpinUpTime0_10 SpinUpDuration = 0b0000_0010
	SpinUpTime0_20 SpinUpDuration = 0b0000_0011
	SpinUpTime0_40 SpinUpDuration = 0b0000_0100
	SpinUpTime0_80 SpinUpDuration = 0b0000_0101
	SpinUpTime1_60 SpinUpDuration = 0b0000_0110
	SpinUpTime3_20 SpinUpDuration = 0b0000_0111 // chip default
)
