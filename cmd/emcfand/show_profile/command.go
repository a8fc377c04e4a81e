package showprofile

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/emcfan/emcfand"
	"github.com/emcfan/emcfand/emc2101"
	"github.com/go-analyze/charts"
	"github.com/mattn/go-sixel"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	var ppath string
	var resolution int

	cmd := &cobra.Command{
		Use:   "show-profile",
		Short: "Show the duty cycle to RPM curve of a fan profile",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			profile, err := emc2101.LoadProfile(ppath)
			if err != nil {
				return err
			}

			//
			// Compute points
			//

			series := charts.LineSeries{Name: "RPM"}
			var labels []string
			var maxRPM float64

			for _, step := range slices.Sorted(maps.Keys(profile.Steps)) {
				record := profile.Steps[step]
				if record.RPM == nil {
					continue // never measured, calibrate for real values
				}

				labels = append(labels, strconv.Itoa(record.DutyCycle))
				series.Values = append(series.Values, float64(*record.RPM))
				maxRPM = max(maxRPM, float64(*record.RPM))
			}
			if len(series.Values) == 0 {
				return fmt.Errorf("%s: the profile holds no measured speeds, run a calibration first", profile.Model)
			}

			//
			// Render chart
			//

			opt := charts.NewLineChartOptionWithSeries(charts.LineSeriesList{series})
			opt.Theme = charts.GetTheme(charts.ThemeVividDark)
			opt.Padding = charts.NewBox(20, 20, 20, 20)
			opt.Title.Text = fmt.Sprintf("%s (%s)", profile.Model, profile.ControlMode)
			opt.Title.FontStyle.FontSize = 16
			opt.Title.Offset = charts.OffsetLeft
			opt.Legend = charts.LegendOption{
				Show:     emcfand.ToPtr(true),
				Offset:   charts.OffsetCenter,
				Vertical: emcfand.ToPtr(true),
				Padding:  charts.NewBox(0, 0, 0, 20),
			}
			opt.Symbol = charts.SymbolCircle
			opt.LineStrokeWidth = 2
			opt.XAxis.Show = emcfand.ToPtr(true)
			opt.XAxis.Title = "duty cycle %"
			opt.XAxis.Labels = labels
			opt.YAxis = []charts.YAxisOption{
				{
					Show:                   emcfand.ToPtr(true),
					Title:                  "RPM",
					Min:                    emcfand.ToPtr(float64(0)),
					Max:                    emcfand.ToPtr(maxRPM),
					RangeValuePaddingScale: emcfand.ToPtr(float64(0.05)),
				},
			}
			p := charts.NewPainter(charts.PainterOptions{
				OutputFormat: charts.ChartOutputPNG,
				Width:        resolution,
				Height:       int(float64(resolution) / (16.0 / 9.0)),
			})

			err = p.LineChart(opt)
			if err != nil {
				return fmt.Errorf("%s: %w", profile.Model, err)
			}

			mPNG, err := p.Bytes()
			if err != nil {
				return fmt.Errorf("%s: %w", profile.Model, err)
			}

			m, _, err := image.Decode(bytes.NewReader(mPNG))
			if err != nil {
				return fmt.Errorf("%s: %w", profile.Model, err)
			}

			codec := sixel.NewEncoder(os.Stdout)
			err = codec.Encode(m)
			if err != nil {
				return fmt.Errorf("%s: %w", profile.Model, err)
			}

			return nil
		},
	}
	cmd.Flags().StringVarP(&ppath, "profile", "p", "fan-profile.yml", "Fan profile path")
	cmd.Flags().IntVarP(&resolution, "resolution", "r", 1000, "The width size in pixel of the graph")

	return cmd
}
