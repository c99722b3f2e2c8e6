package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ufpmap/internal/readings"
	"ufpmap/internal/services"
)

func loadReadings(cmd *cobra.Command, ctx *commandContext) ([]readings.Reading, readings.NormalizeStats, *time.Location, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, readings.NormalizeStats{}, nil, err
	}
	loc := cfg.Location()
	rs, stats, err := readings.Load(cmd.Context(), cfg.Data.Path, cfg.Data.Columns, loc)
	return rs, stats, loc, err
}

func newDatesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "dates",
		Short: "List the dates present in the reading table",
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, _, loc, err := loadReadings(cmd, ctx)
			if err != nil {
				return err
			}
			dates := readings.AvailableDates(rs, loc)
			if jsonOutput {
				return writeJSON(cmd, dates)
			}

			out := cmd.OutOrStdout()
			if len(dates) == 0 {
				fmt.Fprintln(out, "No dated readings found")
				return nil
			}
			rows := make([][]string, 0, len(dates))
			for _, dc := range dates {
				rows = append(rows, []string{dc.Date, formatCount(dc.Readings), formatCount(dc.Sensors)})
			}
			fmt.Fprintln(out, renderTable([]string{"Date", "Readings", "Sensors"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
			fmt.Fprintf(out, "%s dates (%s)\n", formatCount(len(dates)), loc)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print dates as JSON")
	return cmd
}

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	var date string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Describe each sensor's readings",
		Long:  "Summary prints per-sensor reading counts and concentration statistics, optionally limited to one date.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, stats, loc, err := loadReadings(cmd, ctx)
			if err != nil {
				return err
			}
			if date != "" {
				if rs, err = readings.FilterDate(rs, date, loc); err != nil {
					return err
				}
			}
			summaries := readings.Summarize(rs)
			if len(summaries) == 0 {
				return services.Wrap(services.ErrNoData, "", "summary", "no readings to summarize", nil)
			}
			if jsonOutput {
				return writeJSON(cmd, summaryViews(summaries, loc))
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, []string{
					s.SensorID,
					formatCount(s.Readings),
					formatCount(s.WithConcentration),
					s.First.In(loc).Format("2006-01-02 15:04"),
					s.Last.In(loc).Format("2006-01-02 15:04"),
					formatValue(s.Min),
					formatValue(s.Median),
					formatValue(s.Mean),
					formatValue(s.Max),
					formatDecimal(s.MeanWindSpeed),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Sensor", "Readings", "With conc.", "First", "Last", "Min", "Median", "Mean", "Max", "Wind m/s"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			if date == "" && stats.Rows > stats.Kept {
				fmt.Fprintf(out, "%s of %s rows dropped (%s bad timestamps, %s missing sensor)\n",
					formatCount(stats.Rows-stats.Kept), formatCount(stats.Rows),
					formatCount(stats.BadTimestamps), formatCount(stats.MissingSensor))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Limit to one date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print summaries as JSON")
	return cmd
}

type sensorSummaryView struct {
	SensorID          string   `json:"sensor_id"`
	Readings          int      `json:"readings"`
	WithConcentration int      `json:"with_concentration"`
	First             string   `json:"first"`
	Last              string   `json:"last"`
	Min               *float64 `json:"min"`
	Median            *float64 `json:"median"`
	Mean              *float64 `json:"mean"`
	Max               *float64 `json:"max"`
	MeanWindSpeed     *float64 `json:"mean_wind_speed"`
}

func summaryViews(summaries []readings.SensorSummary, loc *time.Location) []sensorSummaryView {
	views := make([]sensorSummaryView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, sensorSummaryView{
			SensorID:          s.SensorID,
			Readings:          s.Readings,
			WithConcentration: s.WithConcentration,
			First:             s.First.In(loc).Format(time.RFC3339),
			Last:              s.Last.In(loc).Format(time.RFC3339),
			Min:               finite(s.Min),
			Median:            finite(s.Median),
			Mean:              finite(s.Mean),
			Max:               finite(s.Max),
			MeanWindSpeed:     finite(s.MeanWindSpeed),
		})
	}
	return views
}

// finite maps NaN to a JSON null.
func finite(v float64) *float64 {
	if readings.Missing(v) {
		return nil
	}
	return &v
}
