// Package serialbridge provides a register bus through a USB-ISS style
// serial to I2C bridge. Useful to talk to a chip from a workstation without
// a native I2C adapter.
package serialbridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// USB-ISS command set (the subset this bridge needs).
const (
	cmdSetup   = 0x5A // ISS_CMD
	cmdI2CAddr = 0x55 // I2C_AD1: single byte register addressing

	setupMode   = 0x02
	modeI2C100k = 0x40
)

var (
	ErrBridge  = errors.New("bridge refused the transaction")
	ErrTimeout = errors.New("bridge did not answer in time")
)

// Bus drives a chip at a fixed address behind a serial I2C bridge.
type Bus struct {
	sync sync.Mutex
	port serial.Port
	addr uint8
}

// Open opens the bridge on the named serial port and targets the chip at
// addr.
func Open(port string, addr uint8) (*Bus, error) {
	b := &Bus{addr: addr}

	var err error
	b.port, err = serial.Open(port, &serial.Mode{
		BaudRate: 19200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	})
	if err != nil {
		return nil, fmt.Errorf("serialbridge: %w", err)
	}

	b.port.SetReadTimeout(200 * time.Millisecond)

	if err = b.port.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("serialbridge: %w", err)
	}
	if err = b.port.ResetOutputBuffer(); err != nil {
		return nil, fmt.Errorf("serialbridge: %w", err)
	}

	// Put the bridge in standard speed I2C mode.
	if err = b.transact([]byte{cmdSetup, setupMode, modeI2C100k, 0x00}, 2); err != nil {
		return nil, fmt.Errorf("serialbridge: setup: %w", err)
	}

	return b, nil
}

func (b *Bus) ReadRegister(addr uint8) (uint8, error) {
	b.sync.Lock()
	defer b.sync.Unlock()

	var value [1]byte
	if err := b.request([]byte{cmdI2CAddr, b.addr<<1 | 1, addr, 1}, value[:]); err != nil {
		return 0, fmt.Errorf("serialbridge: read 0x%02X: %w", addr, err)
	}
	return value[0], nil
}

func (b *Bus) WriteRegister(addr, value uint8) error {
	b.sync.Lock()
	defer b.sync.Unlock()

	if err := b.transact([]byte{cmdI2CAddr, b.addr << 1, addr, 1, value}, 1); err != nil {
		return fmt.Errorf("serialbridge: write 0x%02X: %w", addr, err)
	}
	return nil
}

func (b *Bus) Close() error {
	return b.port.Close()
}

// transact sends a command whose response only acknowledges success.
func (b *Bus) transact(command []byte, acklen int) error {
	ack := make([]byte, acklen)
	if err := b.request(command, ack); err != nil {
		return err
	}
	if ack[0] == 0 {
		return ErrBridge
	}
	return nil
}

func (b *Bus) request(command, response []byte) error {
	if _, err := b.port.Write(command); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	// Port.Read returns n=0 without an error once the read timeout
	// elapses, it must not be treated as "keep waiting".
	for filled := 0; filled < len(response); {
		n, err := b.port.Read(response[filled:])
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			return ErrTimeout
		}
		filled += n
	}
	return nil
}
