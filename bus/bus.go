// Package bus defines the register bus boundary shared by the concrete
// transports (Linux i2c-dev, serial I2C bridges) and the fakes used in
// tests. A bus moves single addressed bytes, nothing more; multi-byte
// sequencing is the caller's responsibility.
package bus

import (
	"fmt"
	"time"
)

// RegisterBus is a synchronous single-byte register transport.
type RegisterBus interface {
	ReadRegister(addr uint8) (uint8, error)
	WriteRegister(addr, value uint8) error
}

// RetryPolicy bounds how a flaky transport is retried. The zero value
// performs a single attempt without sleeping, which is what tests want.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// WithRetry wraps a bus so every byte transaction is attempted up to
// policy.MaxAttempts times. Failures past the budget are returned to the
// caller as-is, components above this layer do not retry.
func WithRetry(rb RegisterBus, policy RetryPolicy) RegisterBus {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &retrying{rb: rb, policy: policy}
}

type retrying struct {
	rb     RegisterBus
	policy RetryPolicy
}

func (r *retrying) ReadRegister(addr uint8) (uint8, error) {
	var value uint8
	err := r.attempt(func() (err error) {
		value, err = r.rb.ReadRegister(addr)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("read 0x%02X: %w", addr, err)
	}
	return value, nil
}

func (r *retrying) WriteRegister(addr, value uint8) error {
	err := r.attempt(func() error {
		return r.rb.WriteRegister(addr, value)
	})
	if err != nil {
		return fmt.Errorf("write 0x%02X: %w", addr, err)
	}
	return nil
}

func (r *retrying) attempt(op func() error) (err error) {
	for i := 0; i < r.policy.MaxAttempts; i++ {
		if i > 0 && r.policy.Backoff > 0 {
			time.Sleep(r.policy.Backoff)
		}
		if err = op(); err == nil {
			return nil
		}
	}
	return err
}
