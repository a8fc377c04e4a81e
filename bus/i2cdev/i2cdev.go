// Package i2cdev provides a register bus over a Linux i2c-dev adapter.
package i2cdev

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Bus drives a chip at a fixed address on a Linux I2C adapter.
type Bus struct {
	bus i2c.BusCloser
	dev i2c.Dev
}

// Open opens the named adapter (e.g. "/dev/i2c-1", "1" or "" for the first
// one available) and targets the chip at addr.
func Open(name string, addr uint16) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("i2cdev: %w", err)
	}

	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2cdev: %w", err)
	}

	return &Bus{
		bus: b,
		dev: i2c.Dev{Bus: b, Addr: addr},
	}, nil
}

func (b *Bus) ReadRegister(addr uint8) (uint8, error) {
	var value [1]byte
	if err := b.dev.Tx([]byte{addr}, value[:]); err != nil {
		return 0, fmt.Errorf("i2cdev: read 0x%02X: %w", addr, err)
	}
	return value[0], nil
}

func (b *Bus) WriteRegister(addr, value uint8) error {
	if err := b.dev.Tx([]byte{addr, value}, nil); err != nil {
		return fmt.Errorf("i2cdev: write 0x%02X: %w", addr, err)
	}
	return nil
}

func (b *Bus) Close() error {
	return b.bus.Close()
}
