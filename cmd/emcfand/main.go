package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"runtime"

	"github.com/emcfan/emcfand"
	"github.com/emcfan/emcfand/cmd/emcfand/calibrate"
	showprofile "github.com/emcfan/emcfand/cmd/emcfand/show_profile"
	"github.com/emcfan/emcfand/emc2101"
	"github.com/mdouchement/logger"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cpath string
)

func main() {
	cmd := &cobra.Command{
		Use:     "emcfand",
		Short:   "A fan control daemon for the EMC2101 chip",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.NoArgs,
		RunE:    daemon,
	}
	cmd.Flags().StringVarP(&cpath, "config", "c", "/etc/emcfand/emcfand.yml", "Configfile path")
	cmd.AddCommand(calibrate.Command())
	cmd.AddCommand(showprofile.Command())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for emcfand",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(cmd.Version)
		},
	})

	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func daemon(_ *cobra.Command, args []string) error {
	cfg, err := emcfand.Load(cpath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	h := logger.NewSlogTextHandler(os.Stdout, &logger.SlogTextOption{
		Level:            level,
		ForceColors:      true,
		ForceFormatting:  true,
		PrefixRE:         regexp.MustCompile(`^(\[.*?\])\s`),
		DisableTimestamp: true, // Provided by journalctl
	})
	log := logger.WrapSlogHandler(h)
	ctx := logger.WithLogger(context.Background(), log)

	log.Infof("emcfand version %s", version)

	rb, closebus, err := emcfand.OpenBus(cfg.Bus)
	if err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	defer closebus()

	profile := emc2101.GenericPWMFan()
	if cfg.Profile != "" {
		profile, err = emc2101.LoadProfile(cfg.Profile)
		if err != nil {
			return err
		}
	}
	log.Infof("Fan profile `%s` (%s)", profile.Model, profile.ControlMode)

	var device *emc2101.Device
	switch profile.ControlMode {
	case emc2101.PWM:
		device, err = emc2101.NewPWM(rb, profile, emc2101.Sensor2N3904)
	case emc2101.Voltage:
		device, err = emc2101.NewDAC(rb, profile)
	}
	if err != nil {
		return fmt.Errorf("emc2101: %w", err)
	}
	if cfg.Debug {
		device.SetLogger(log)
	}

	{
		description, err := device.Describe()
		if err != nil {
			return fmt.Errorf("emc2101: %w", err)
		}
		log.Infof("Chip - %s", description)

		if cfg.Control.Sensor == emcfand.SensorExternal {
			connected, err := device.HasExternalSensor()
			if err != nil {
				return fmt.Errorf("emc2101: %w", err)
			}
			if !connected {
				return fmt.Errorf("emc2101: %w", emc2101.ErrNoExternalSensor)
			}
		}
	}

	curve, err := emcfand.NewCurve(cfg.Curve)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)

	controler, err := emcfand.New(cfg, device, curve)
	if err != nil {
		cancel()
		return err
	}
	controler.Launch(ctx)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	<-ctx.Done()
	cancel()

	log.Info("Gracefully shutdown")
	return nil
}
