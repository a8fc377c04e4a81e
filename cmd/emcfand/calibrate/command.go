package calibrate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/emcfan/emcfand"
	"github.com/emcfan/emcfand/emc2101"
	"github.com/mdouchement/logger"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	var cpath string
	var model string
	var frequency int
	var output string

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Measure the attached fan's duty cycle to RPM curve and write its profile",
		Long: "Measure the attached fan's duty cycle to RPM curve and write its profile.\n" +
			"The fan is driven through its whole speed range, a run takes several minutes.",
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := emcfand.Load(cpath)
			if err != nil {
				return err
			}

			h := logger.NewSlogTextHandler(os.Stdout, &logger.SlogTextOption{
				Level:           slog.LevelDebug,
				ForceColors:     true,
				ForceFormatting: true,
				PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05",
			})
			log := logger.WrapSlogHandler(h)

			rb, closebus, err := emcfand.OpenBus(cfg.Bus)
			if err != nil {
				return fmt.Errorf("bus: %w", err)
			}
			defer closebus()

			calibrator := emc2101.NewCalibrator(rb)
			calibrator.SetLogger(log)

			profile, err := calibrator.Calibrate(model, frequency)
			if errors.Is(err, emc2101.ErrNoProfile) {
				log.WithError(err).Error("Calibration did not produce a usable profile")
				return err
			}
			if err != nil {
				return err
			}

			if err = emc2101.SaveProfile(output, profile); err != nil {
				return err
			}

			log.Infof("Profile written to %s", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cpath, "config", "c", "/etc/emcfand/emcfand.yml", "Configfile path")
	cmd.Flags().StringVarP(&model, "model", "m", "unknown fan", "Fan model recorded in the profile")
	cmd.Flags().IntVarP(&frequency, "frequency", "f", 22500, "PWM carrier frequency in Hz")
	cmd.Flags().StringVarP(&output, "output", "o", "fan-profile.yml", "Profile output path")

	return cmd
}
