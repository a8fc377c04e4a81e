package emc2101

import "math"

// The chip stores temperatures as a signed integer byte plus a fraction
// byte whose three high bits weigh 0.50, 0.25 and 0.15. Only the fractions
// {0, .15, .25, .40, .50, .65, .75, .90} are representable.

// TemperatureFromBytes converts the internal value to °C.
// (0x0C + 0xE0 -> 12.9)
func TemperatureFromBytes(msb, lsb uint8) float64 {
	temp := float64(int8(msb))
	if lsb&0b1000_0000 != 0 {
		temp += 0.50
	}
	if lsb&0b0100_0000 != 0 {
		temp += 0.25
	}
	if lsb&0b0010_0000 != 0 {
		temp += 0.15
	}
	return temp
}

// TemperatureToBytes converts a temperature in °C to the internal value,
// rounding to the nearest representable fraction. A fractional part of
// 0.95 or above carries into the integer byte.
func TemperatureToBytes(value float64) (msb, lsb uint8) {
	whole := int(math.Floor(value))
	decimal := int(math.Round((value - math.Floor(value)) * 100))

	if decimal >= 95 {
		whole++
		return uint8(int8(whole)), 0x00
	}

	// The thresholds are the midpoints between representable fractions,
	// not the fractions themselves. Greedy, order matters.
	if decimal >= 38 {
		lsb |= 0b1000_0000
		decimal -= 50
	}
	if decimal >= 20 {
		lsb |= 0b0100_0000
		decimal -= 25
	}
	if decimal >= 8 {
		lsb |= 0b0010_0000
	}
	return uint8(int8(whole)), lsb
}

// TachToRPM converts a raw tach count to RPM. ok is false when the count
// reads 0xFFFF, the chip's marker for a stalled or disconnected fan.
func TachToRPM(msb, lsb uint8) (rpm int, ok bool) {
	tach := int(msb)<<8 | int(lsb)
	if tach == 0xFFFF {
		return 0, false
	}
	if tach == 0 {
		tach = 1 // count 0 would divide by zero, clamp to the ceiling
	}
	return tachFrequency / tach, true
}

// RPMToTachLimit converts an RPM value to the tach limit register pair.
// Due to the way the count is measured the limit can never be below 82 RPM.
func RPMToTachLimit(rpm int) (msb, lsb uint8, err error) {
	if rpm < minimumRPM {
		return 0, 0, ErrRPMRange
	}
	tach := tachFrequency / rpm
	if tach > 0xFFFE {
		tach = 0xFFFE // 0xFFFF would disable the limit entirely
	}
	return uint8(tach >> 8), uint8(tach & 0xFF), nil
}

// DutyCycleToRaw converts a duty cycle percentage to the internal value
// used by the fan setting register (0% -> 0x00, 100% -> 0x3F).
func DutyCycleToRaw(percent int) (uint8, error) {
	if percent < 0 || percent > 100 {
		return 0, ErrDutyCycleRange
	}
	return uint8(math.Round(float64(percent) * 63 / 100)), nil
}

// DutyCycleFromRaw converts the internal value to a duty cycle percentage
// (0x00 -> 0%, 0x3F -> 100%). 50% has no exact raw representative
// (31 -> 49%, 32 -> 51%); this is a property of the 6 bit scale, not a bug.
func DutyCycleFromRaw(raw uint8) (int, error) {
	if raw > stepHardMax {
		return 0, ErrDutyCycleRange
	}
	return int(math.Round(float64(raw) * 100 / 63)), nil
}

// CalculatePWMFactors computes PWM_D and PWM_F for the provided carrier
// frequency in Hz. PWM_D is minimized so that PWM_F (capped at 31) retains
// the maximum resolution.
func CalculatePWMFactors(frequency int) (pwmD, pwmF int, err error) {
	if frequency <= 0 || frequency > 180000 {
		return 0, 0, ErrFrequencyRange
	}
	value := 360000 / (2 * float64(frequency))
	pwmD = int(math.Ceil(value / 31))
	pwmF = int(math.Round(value / float64(pwmD)))
	return pwmD, pwmF, nil
}

// PWMFrequency computes the carrier frequency for the provided PWM_D and
// PWM_F. It is the inverse of CalculatePWMFactors only up to the rounding
// performed there, do not expect a perfect round trip.
func PWMFrequency(pwmD, pwmF int) float64 {
	return 360000 / (2 * float64(pwmF) * float64(pwmD))
}
