package emc2101

import (
	"maps"
	"slices"
)

// The chip's fan control lookup table holds 8 temperature→step slots
// (0x50..0x5F). While enabled the table drives the fan autonomously and
// its registers are read-only, so every rewrite has to go through a
// disable→write→restore sequence.

// IsLookupTableEnabled reports whether the chip drives the fan from the
// lookup table instead of the fan setting register.
func (d *Device) IsLookupTableEnabled() (bool, error) {
	fancfg, err := d.rb.ReadRegister(uint8(RegFanConfig))
	if err != nil {
		return false, err
	}
	return fancfg&fancfgLUTDisable == 0, nil
}

// EnableLookupTable hands fan control over to the lookup table. An
// external temperature sensor must be connected; without one this fails
// with ErrNoExternalSensor.
func (d *Device) EnableLookupTable() error {
	ok, err := d.HasExternalSensor()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoExternalSensor
	}

	fancfg, err := d.rb.ReadRegister(uint8(RegFanConfig))
	if err != nil {
		return err
	}
	return d.rb.WriteRegister(uint8(RegFanConfig), fancfg&^uint8(fancfgLUTDisable))
}

// DisableLookupTable hands fan control back to the fan setting register
// and makes the table registers writable.
func (d *Device) DisableLookupTable() error {
	fancfg, err := d.rb.ReadRegister(uint8(RegFanConfig))
	if err != nil {
		return err
	}
	return d.rb.WriteRegister(uint8(RegFanConfig), fancfg|fancfgLUTDisable)
}

// UpdateLookupTable populates the table with the provided temperature→step
// slots (8 at most) and zero-fills the unused ones. Slots are written in
// ascending temperature order, which is how the chip evaluates them.
//
// The whole table is validated before any register is touched; after a
// successful call all 16 table bytes have been written. If the table was
// enabled it is re-enabled afterwards; if a write fails in between, the
// table is left disabled and the caller retries the whole update.
func (d *Device) UpdateLookupTable(slots map[int]int) error {
	if len(slots) > lutSlots {
		return ErrTooManyEntries
	}
	for temp, step := range slots {
		if temp < d.tempMin || temp > d.tempMax {
			return ErrTemperatureRange
		}
		if step < d.stepMin || step > d.stepMax {
			return ErrStepRange
		}
	}

	// The table must be disabled to make it writable.
	enabled, err := d.IsLookupTableEnabled()
	if err != nil {
		return err
	}
	if enabled {
		if d.log != nil {
			d.log.Debug("Lookup table is enabled. Disabling for the rewrite.")
		}
		if err = d.DisableLookupTable(); err != nil {
			return err
		}
	}

	offset := Register(0)
	for _, temp := range slices.Sorted(maps.Keys(slots)) {
		if err = d.rb.WriteRegister(uint8(RegLUTBase+offset), uint8(temp)); err != nil {
			return err
		}
		if err = d.rb.WriteRegister(uint8(RegLUTBase+offset+1), uint8(slots[temp])); err != nil {
			return err
		}
		offset += 2
	}
	if err = d.zeroFillLookupTable(offset); err != nil {
		return err
	}

	if enabled {
		return d.EnableLookupTable()
	}
	return nil
}

// ResetLookupTable zero-fills all 8 slots and leaves the table disabled.
// Callers re-enable explicitly when desired.
func (d *Device) ResetLookupTable() error {
	if err := d.DisableLookupTable(); err != nil {
		return err
	}
	return d.zeroFillLookupTable(0)
}

func (d *Device) zeroFillLookupTable(offset Register) error {
	for ; offset < 2*lutSlots; offset += 2 {
		if err := d.rb.WriteRegister(uint8(RegLUTBase+offset), 0x00); err != nil {
			return err
		}
		if err := d.rb.WriteRegister(uint8(RegLUTBase+offset+1), 0x00); err != nil {
			return err
		}
	}
	return nil
}
