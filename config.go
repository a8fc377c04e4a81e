package emcfand

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v4"
)

// Control modes of the daemon.
const (
	// ModeDirect evaluates the curve in the daemon and drives the fan
	// setting register on every temperature change.
	ModeDirect = "direct"
	// ModeLookup programs the curve into the chip's lookup table once and
	// lets the chip run closed-loop; the daemon only observes.
	ModeLookup = "lookup"
)

// Temperature sources.
const (
	SensorInternal = "internal"
	SensorExternal = "external"
)

// Bus drivers.
const (
	BusI2C    = "i2c"
	BusSerial = "serial"
	BusSim    = "sim"
)

type Config struct {
	Debug   bool          `yaml:"debug"`
	Socket  string        `yaml:"socket"`
	Bus     BusConfig     `yaml:"bus"`
	Profile string        `yaml:"profile"`
	Control ControlConfig `yaml:"control"`
	Curve   []CurvePoint  `yaml:"curve"`
}

type BusConfig struct {
	Driver  string   `yaml:"driver"`
	Device  string   `yaml:"device"`
	Retries int      `yaml:"retries"`
	Backoff Duration `yaml:"backoff"`
}

type ControlConfig struct {
	Mode     string   `yaml:"mode"`
	Sensor   string   `yaml:"sensor"`
	Polling  Duration `yaml:"polling"`
	StepUp   Duration `yaml:"step_up"`
	StepDown Duration `yaml:"step_down"`
}

type CurvePoint struct {
	Temperature int `yaml:"temperature"`
	Percent     int `yaml:"percent"`
}

// Load reads and validates the daemon configuration.
func Load(path string) (Config, error) {
	var c Config

	f, err := os.Open(path)
	if err != nil {
		return c, err
	}
	defer f.Close()

	codec := yaml.NewDecoder(f)
	if err = codec.Decode(&c); err != nil {
		return c, err
	}

	return c, c.validate()
}

// validate checks configuration correctness. It only fills defaults, it
// never reinterprets provided values.
func (c *Config) validate() error {
	switch c.Bus.Driver {
	case BusI2C, BusSerial:
		if c.Bus.Device == "" {
			return fmt.Errorf("bus: a %s driver needs a device path", c.Bus.Driver)
		}
	case BusSim:
	default:
		return fmt.Errorf("bus: unknown driver %q", c.Bus.Driver)
	}
	if c.Bus.Retries < 0 {
		return fmt.Errorf("bus: retries must not be negative")
	}

	switch c.Control.Mode {
	case "":
		c.Control.Mode = ModeDirect
	case ModeDirect:
	case ModeLookup:
		if len(c.Curve) > 8 {
			return fmt.Errorf("curve: the chip's lookup table holds 8 slots, got %d points", len(c.Curve))
		}
		if c.Control.Sensor == SensorInternal {
			return fmt.Errorf("control: the lookup table needs the external sensor")
		}
	default:
		return fmt.Errorf("control: unknown mode %q", c.Control.Mode)
	}

	switch c.Control.Sensor {
	case "":
		c.Control.Sensor = SensorInternal
	case SensorInternal, SensorExternal:
	default:
		return fmt.Errorf("control: unknown sensor %q", c.Control.Sensor)
	}

	if c.Control.Polling.Duration == 0 {
		c.Control.Polling.Duration = 2 * time.Second
	}

	if len(c.Curve) == 0 {
		return fmt.Errorf("curve: no points provided")
	}

	var prev CurvePoint
	for i, point := range c.Curve {
		if point.Percent < 0 || point.Percent > 100 {
			return fmt.Errorf("curve: point %d: percent must be in range [0,100]", i)
		}
		if i > 0 {
			if point.Temperature <= prev.Temperature {
				return fmt.Errorf("curve: point %d: temperatures must be strictly increasing", i)
			}
			if point.Percent < prev.Percent {
				return fmt.Errorf("curve: point %d: percent smaller than the previous one", i)
			}
		}
		prev = point
	}

	return nil
}
