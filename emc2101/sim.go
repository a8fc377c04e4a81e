package emc2101

import (
	"sync"
)

// A SimulatedBus emulates the chip's register file with a synthetic fan
// attached. It should only be used for dev & tests.
type SimulatedBus struct {
	sync      sync.Mutex
	registers map[uint8]uint8

	// SpeedCurve maps a driver strength code to the RPM the synthetic fan
	// settles at. Returning 0 simulates a stalled fan (tach reads 0xFFFF).
	SpeedCurve func(step int) int

	// FailRead/FailWrite inject bus faults. Returning a non-nil error for
	// an address makes the transaction fail.
	FailRead  func(addr uint8) error
	FailWrite func(addr uint8) error
}

// NewSimulatedBus builds a bus with power-on register defaults and a
// linear fan curve (400 RPM base, 60 RPM per step).
func NewSimulatedBus() *SimulatedBus {
	registers := make(map[uint8]uint8, len(Defaults))
	for reg, value := range Defaults {
		registers[uint8(reg)] = value
	}

	// Read-only identity registers.
	registers[uint8(RegProductID)] = 0x16
	registers[uint8(RegManufacturerID)] = 0x5D
	registers[uint8(RegRevision)] = 0x01

	return &SimulatedBus{
		registers: registers,
		SpeedCurve: func(step int) int {
			if step <= 0 {
				return 0
			}
			return 400 + step*60
		},
	}
}

func (b *SimulatedBus) ReadRegister(addr uint8) (uint8, error) {
	b.sync.Lock()
	defer b.sync.Unlock()

	if b.FailRead != nil {
		if err := b.FailRead(addr); err != nil {
			return 0, err
		}
	}

	// Reading the tach low byte latches a fresh measurement pair.
	if addr == uint8(RegTachReadingLSB) {
		b.latchTach()
	}

	return b.registers[addr], nil
}

func (b *SimulatedBus) WriteRegister(addr, value uint8) error {
	b.sync.Lock()
	defer b.sync.Unlock()

	if b.FailWrite != nil {
		if err := b.FailWrite(addr); err != nil {
			return err
		}
	}

	// While the lookup table drives the fan, the fan setting register and
	// the table slots are read-only, just like on the real chip.
	if b.registers[uint8(RegFanConfig)]&fancfgLUTDisable == 0 {
		if addr == uint8(RegFanSetting) {
			return nil
		}
		if addr >= uint8(RegLUTBase) && addr < uint8(RegLUTBase)+2*lutSlots {
			return nil
		}
	}

	b.registers[addr] = value
	return nil
}

// SetExternalTemperature places a reading on the external diode.
func (b *SimulatedBus) SetExternalTemperature(value float64) {
	b.sync.Lock()
	defer b.sync.Unlock()

	msb, lsb := TemperatureToBytes(value)
	b.registers[uint8(RegExternalTempMSB)] = msb
	b.registers[uint8(RegExternalTempLSB)] = lsb
}

// SetInternalTemperature places a reading on the internal sensor.
func (b *SimulatedBus) SetInternalTemperature(value int) {
	b.sync.Lock()
	defer b.sync.Unlock()

	b.registers[uint8(RegInternalTemp)] = uint8(int8(value))
}

// DisconnectExternalSensor simulates an open diode circuit.
func (b *SimulatedBus) DisconnectExternalSensor() {
	b.sync.Lock()
	defer b.sync.Unlock()

	b.registers[uint8(RegExternalTempMSB)] = 0b0111_1111
	b.registers[uint8(RegExternalTempLSB)] = 0b0000_0000
}

// Register peeks at a register without bus semantics (no tach latch).
func (b *SimulatedBus) Register(addr uint8) uint8 {
	b.sync.Lock()
	defer b.sync.Unlock()

	return b.registers[addr]
}

func (b *SimulatedBus) latchTach() {
	rpm := b.SpeedCurve(int(b.registers[uint8(RegFanSetting)]))

	tach := 0xFFFF
	if rpm > 0 {
		tach = min(tachFrequency/rpm, 0xFFFF)
	}

	b.registers[uint8(RegTachReadingLSB)] = uint8(tach & 0xFF)
	b.registers[uint8(RegTachReadingMSB)] = uint8(tach >> 8)
}
