package emcfand

import (
	"fmt"

	"github.com/emcfan/emcfand/bus"
	"github.com/emcfan/emcfand/bus/i2cdev"
	"github.com/emcfan/emcfand/bus/serialbridge"
	"github.com/emcfan/emcfand/emc2101"
)

// OpenBus opens the configured register bus transport and wraps it with
// the retry policy. The returned closer releases the underlying adapter.
func OpenBus(cfg BusConfig) (bus.RegisterBus, func() error, error) {
	noop := func() error { return nil }

	var rb bus.RegisterBus
	closer := noop

	switch cfg.Driver {
	case BusI2C:
		b, err := i2cdev.Open(cfg.Device, emc2101.BusAddress)
		if err != nil {
			return nil, noop, err
		}
		rb, closer = b, b.Close
	case BusSerial:
		b, err := serialbridge.Open(cfg.Device, emc2101.BusAddress)
		if err != nil {
			return nil, noop, err
		}
		rb, closer = b, b.Close
	case BusSim:
		rb = emc2101.NewSimulatedBus()
	default:
		return nil, noop, fmt.Errorf("unknown driver %q", cfg.Driver)
	}

	return bus.WithRetry(rb, bus.RetryPolicy{
		MaxAttempts: cfg.Retries + 1,
		Backoff:     cfg.Backoff.Duration,
	}), closer, nil
}
