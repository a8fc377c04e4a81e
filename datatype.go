package emcfand

import (
	"encoding/json"
	"time"

	"github.com/emcfan/emcfand/emc2101"
	"go.yaml.in/yaml/v4"
)

// FanDevice is the slice of the chip driver the daemon needs.
type FanDevice interface {
	SetFixedSpeed(value int, unit emc2101.FanSpeedUnit) (int, error)
	FixedSpeed(unit emc2101.FanSpeedUnit) (int, error)
	RPM() (int, error)
	InternalTemperature() (float64, error)
	ExternalTemperature() (float64, error)
	UpdateLookupTableSpeeds(slots map[int]int, unit emc2101.FanSpeedUnit) error
	EnableLookupTable() error
}

// Evaluation is a snapshot of the control loop's state, what the monitor
// endpoint streams to watchers.
type Evaluation struct {
	EvaluedAt   time.Time `json:"-"`
	Sensor      string    `json:"sensor"`
	Temperature float64   `json:"temperature"`
	Percent     int       `json:"percent"`
	RPM         int       `json:"rpm"`
	Stalled     bool      `json:"stalled"`
}

func ToPtr[T any](v T) *T {
	return &v
}

const (
	eventUpdateEval      = "update-eval"
	eventUpdateRPM       = "update-rpm"
	eventWatch           = "watch"
	eventRefreshWatchers = "refresh-watchers"
	eventUnwatch         = "unwatch"
)

type event struct {
	name      string
	eval      Evaluation
	rpm       int
	stalled   bool
	monitorID int64
	monitor   chan<- []byte
}

type refresh struct {
	current  uint8
	until    uint8
	interval time.Duration
}

func genID() int64 {
	time.Sleep(time.Nanosecond)
	return time.Now().UnixNano()
}

// Duration is a time.Duration with human readable YAML/JSON codecs.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var str string
	err := json.Unmarshal(data, &str)
	if err != nil {
		return err
	}

	d.Duration, err = time.ParseDuration(str)
	return err
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	err := value.Decode(&str)
	if err != nil {
		return err
	}

	if str == "" {
		return nil
	}

	d.Duration, err = time.ParseDuration(str)
	return err
}
