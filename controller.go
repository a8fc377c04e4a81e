package emcfand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/emcfan/emcfand/emc2101"
	"github.com/mdouchement/logger"
)

// Controller runs the daemon's control loop around a single fan. The
// device is owned exclusively, multi-register sequences must not be
// interleaved with other writers.
type Controller struct {
	cfg      Config
	device   FanDevice
	curve    *Curve
	lookup   bool
	events   chan event
	listener net.Listener
	ticker   *time.Ticker
}

func New(cfg Config, device FanDevice, curve *Curve) (*Controller, error) {
	c := &Controller{
		cfg:    cfg,
		device: device,
		curve:  curve,
		lookup: cfg.Control.Mode == ModeLookup,
		events: make(chan event, 10),
		ticker: time.NewTicker(cfg.Control.Polling.Duration),
	}

	err := os.MkdirAll(filepath.Dir(cfg.Socket), 0o755)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	if _, err := os.Stat(cfg.Socket); err == nil {
		fmt.Printf("Removing existing %s\n", cfg.Socket)
		os.Remove(cfg.Socket)
	}
	c.listener, err = net.Listen("unix", cfg.Socket)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	return c, nil
}

func (c *Controller) Launch(ctx context.Context) {
	log := logger.LogWith(ctx)

	if c.lookup {
		if err := c.programLookupTable(); err != nil {
			log.WithError(err).Error("Could not program the lookup table, falling back to direct control")
			c.lookup = false
		} else {
			log.Info("Lookup table programmed, the chip runs closed-loop")
		}
	}

	go c.eventLoop(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/monitor", c.monitor(log))
	go func() {
		for {
			log.Info("Starting HTTP server on ", c.listener.Addr().String())
			err := http.Serve(c.listener, mux)
			if err != nil {
				log.WithError(err).Error("Could not serve HTTP")
			}
			time.Sleep(2 * time.Second)
		}
	}()

	evalCh := make(chan Evaluation, 1)
	refreshCh := make(chan refresh, 1)
	go c.gatherTemperatures(log, evalCh)
	go c.eval(log, evalCh, refreshCh)

	refreshCh <- refresh{interval: 10 * time.Second} // At least the RPM is refreshed every this interval

	go func() {
		for {
			select {
			case e := <-refreshCh:
				rpm, err := c.device.RPM()
				switch {
				case errors.Is(err, emc2101.ErrStalledFan):
					c.events <- event{name: eventUpdateRPM, stalled: true}
				case err != nil:
					log.WithError(err).Error("Could not read RPM")
				default:
					c.events <- event{name: eventUpdateRPM, rpm: rpm}
				}

				// Prepare next iteration.
				if e.until == 0 || e.current < e.until {
					e.current++
					time.AfterFunc(e.interval, func() {
						refreshCh <- e
					})
				}

			case <-ctx.Done():
				c.ticker.Stop()
				close(evalCh)
				close(refreshCh)
				if err := c.listener.Close(); err != nil {
					log.WithError(err).Error("Could not close socket listener")
				}
				if err := os.Remove(c.listener.Addr().String()); err != nil && !errors.Is(err, os.ErrNotExist) {
					// listener.Close() should remove the socket but ceinture et bretelles!
					log.WithError(err).Errorf("Could not remove socket %s", c.listener.Addr().String())
				}

				close(c.events)
				return
			}
		}
	}()
}

// programLookupTable resolves the configured curve points into chip steps
// and hands control over to the lookup table.
func (c *Controller) programLookupTable() error {
	slots := make(map[int]int, len(c.curve.Points()))
	for _, point := range c.curve.Points() {
		slots[point.Temperature] = point.Percent
	}

	if err := c.device.UpdateLookupTableSpeeds(slots, emc2101.UnitPercent); err != nil {
		return err
	}
	return c.device.EnableLookupTable()
}

func (c *Controller) eventLoop(ctx context.Context) {
	log := logger.LogWith(ctx)
	watchers := map[int64]chan<- []byte{}

	// The loop is the only owner of the merged state.
	var active Evaluation

	for e := range c.events {
		switch e.name {
		case eventUpdateEval:
			e.eval.RPM = active.RPM
			e.eval.Stalled = active.Stalled
			active = e.eval
		case eventUpdateRPM:
			const tolerance = 5
			if active.RPM != 0 && (e.rpm < active.RPM-tolerance || e.rpm > active.RPM+tolerance) {
				// Only log on changes to avoid flooding the logs.
				log.Infof("fan: %d RPM (%d%%)", e.rpm, active.Percent)
			}

			active.RPM = e.rpm
			active.Stalled = e.stalled
			c.events <- event{name: eventRefreshWatchers}

		case eventRefreshWatchers:
			payload, err := json.Marshal(active)
			if err != nil {
				log.WithError(err).Error("Could not serialize metrics") // Should never happen
				continue
			}

			for _, watcher := range watchers {
				watcher <- payload
			}
		case eventWatch:
			watchers[e.monitorID] = e.monitor
			c.events <- event{name: eventRefreshWatchers}
		case eventUnwatch:
			close(watchers[e.monitorID])
			delete(watchers, e.monitorID)
		}
	}
}

func (c *Controller) gatherTemperatures(log logger.Logger, ch chan<- Evaluation) {
	for range c.ticker.C {
		var temp float64
		var err error
		switch c.cfg.Control.Sensor {
		case SensorExternal:
			temp, err = c.device.ExternalTemperature()
		default:
			temp, err = c.device.InternalTemperature()
		}
		if err != nil {
			log.WithError(err).Error("Could not read the temperature sensor")
			continue
		}
		if math.IsNaN(temp) {
			log.Warn("External sensor reads NaN (disconnected or faulty diode)")
			continue
		}

		ch <- Evaluation{
			EvaluedAt:   time.Now(),
			Sensor:      c.cfg.Control.Sensor,
			Temperature: temp,
			Percent:     c.curve.Eval(temp),
		}
	}
}

func (c *Controller) eval(log logger.Logger, ch <-chan Evaluation, refreshCh chan<- refresh) {
	// Debounce state, owned by this loop.
	var applied *Evaluation
	var pending *Evaluation

	for eval := range ch {
		if c.lookup {
			// The chip runs the curve on its own, the daemon only mirrors
			// what it should be doing.
			c.events <- event{name: eventUpdateEval, eval: eval}
			continue
		}

		if applied != nil {
			if eval.Percent == applied.Percent {
				// No change, just reset everything.
				pending = nil
				continue
			}

			// Setup base variables for delay computing.
			d := c.cfg.Control.StepUp.Duration
			if eval.Percent < applied.Percent {
				d = c.cfg.Control.StepDown.Duration
			}

			// Do we need to await a certain time before updating the speed?
			if d > 0 {
				if pending == nil {
					// First change, store for later.
					e := eval
					pending = &e
					continue
				}

				if eval.EvaluedAt.Sub(pending.EvaluedAt) < d {
					// Still awaiting the specified delay, await next iteration.
					continue
				}

				// Delay reached, reset and update the speed.
				pending = nil
			}
		}

		c.events <- event{name: eventUpdateEval, eval: eval}

		log.Infof("Set duty cycle %d%% on %s sensor at %.1f°C", eval.Percent, eval.Sensor, eval.Temperature)
		_, err := c.device.SetFixedSpeed(eval.Percent, emc2101.UnitPercent)
		if err != nil {
			log.WithError(err).Error("Could not set the fan speed")
			continue
		}
		e := eval
		applied = &e

		refreshCh <- refresh{interval: 500 * time.Millisecond, until: 8} // 8 events over 4s should be enough for the fan to change its speed.
	}
}

func (c *Controller) monitor(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info("Client connected")

		// Set http headers required for SSE.
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		disconnected := r.Context().Done()

		id := genID()
		ch := make(chan []byte, 20)
		c.events <- event{name: eventWatch, monitorID: id, monitor: ch}

		rc := http.NewResponseController(w)
		for {
			select {
			case <-disconnected:
				log.Info("Client disconnected")
				c.events <- event{name: eventUnwatch, monitorID: id}
				return
			case payload := <-ch:
				_, err := w.Write(append(payload, '\n', '\n'))
				if err != nil {
					log.WithError(err).Error("Could not write monitor SSE payload")
					return
				}

				err = rc.Flush()
				if err != nil {
					log.WithError(err).Error("Could not flush monitor SSE payload")
					return
				}
			}
		}
	}
}
