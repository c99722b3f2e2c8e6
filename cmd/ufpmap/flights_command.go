package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ufpmap/internal/flights"
	"ufpmap/internal/readings"
)

func newFlightsCommand(ctx *commandContext) *cobra.Command {
	var date, from, to, airport string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "flights",
		Short: "List airport departures for a date or time range",
		Long: `Flights queries the configured departure service so aircraft activity can be
compared with concentration peaks. Pass --date for a whole local day, narrowed
with --from/--to clock times, or --from/--to timestamps without a date.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			loc := cfg.Location()
			begin, end, err := flightWindow(date, from, to, loc)
			if err != nil {
				return err
			}
			if strings.TrimSpace(airport) == "" {
				airport = cfg.Flights.Airport
			}

			client := flights.NewClient(flights.SettingsFromConfig(cfg.Flights), logger)
			departures, err := client.Departures(cmd.Context(), airport, begin, end)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, departures)
			}

			out := cmd.OutOrStdout()
			if len(departures) == 0 {
				fmt.Fprintf(out, "No departures from %s between %s and %s\n",
					strings.ToUpper(airport), begin.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"))
				return nil
			}
			rows := make([][]string, 0, len(departures))
			for _, d := range departures {
				rows = append(rows, []string{
					d.DepartedAt().In(loc).Format("15:04:05"),
					d.Callsign,
					d.ICAO24,
					d.ArrivalAirport,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Departed", "Callsign", "ICAO24", "Arrival"}, rows, nil))
			fmt.Fprintf(out, "%s departures from %s\n", formatCount(len(departures)), strings.ToUpper(airport))
			return nil
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Local date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&from, "from", "", "Range start: HH:MM with --date, otherwise a local timestamp")
	cmd.Flags().StringVar(&to, "to", "", "Range end: HH:MM with --date, otherwise a local timestamp")
	cmd.Flags().StringVar(&airport, "airport", "", "ICAO airport code; overrides flights.airport")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print departures as JSON")
	return cmd
}

// flightWindow resolves the query interval. With a date, --from and --to may
// be clock times on that date and default to its start and end; without one
// they must be full local timestamps.
func flightWindow(date, from, to string, loc *time.Location) (time.Time, time.Time, error) {
	if date == "" {
		if from == "" || to == "" {
			return time.Time{}, time.Time{}, usageError("pass --date or both --from and --to")
		}
		begin, ok := readings.ParseTimestamp(from, loc)
		if !ok {
			return time.Time{}, time.Time{}, usageError("cannot parse --from %q", from)
		}
		end, ok := readings.ParseTimestamp(to, loc)
		if !ok {
			return time.Time{}, time.Time{}, usageError("cannot parse --to %q", to)
		}
		return begin, end, nil
	}

	day, err := readings.ParseDate(date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	begin, end := day, day.AddDate(0, 0, 1)
	if from != "" {
		if begin, err = clockOn(day, from, "--from"); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if to != "" {
		if end, err = clockOn(day, to, "--to"); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return begin, end, nil
}

func clockOn(day time.Time, value, flag string) (time.Time, error) {
	clock, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, usageError("%s %q is not an HH:MM time", flag, value)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, day.Location()), nil
}
