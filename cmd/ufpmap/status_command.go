package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ufpmap/internal/config"
	"ufpmap/internal/deps"
	"ufpmap/internal/preflight"
	"ufpmap/internal/runstore"
	"ufpmap/internal/services"
)

const encoderProbeTimeout = 10 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var network bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check paths, external tools, encoders, and the run ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			printSection(out, "Paths", colorize)
			checks := preflight.RunAll(cmd.Context(), cfg, network)
			for _, line := range preflightLines(checks, colorize) {
				fmt.Fprintln(out, line)
			}

			fmt.Fprintln(out)
			printSection(out, "Dependencies", colorize)
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			for _, line := range dependencyLines(statuses, colorize) {
				fmt.Fprintln(out, line)
			}

			fmt.Fprintln(out)
			printSection(out, "Encoders", colorize)
			for _, line := range encoderLines(cmd.Context(), cfg, colorize) {
				fmt.Fprintln(out, line)
			}

			fmt.Fprintln(out)
			printSection(out, "Runs", colorize)
			for _, line := range ledgerLines(cmd.Context(), cfg, colorize) {
				fmt.Fprintln(out, line)
			}

			missing := deps.MissingRequired(statuses)
			failed := preflight.Failed(checks)
			if len(missing) > 0 || len(failed) > 0 {
				return services.Wrap(services.ErrConfiguration, "", "status",
					fmt.Sprintf("%d check(s) failed, %d required tool(s) missing", len(failed), len(missing)), nil)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&network, "network", false, "Also probe the tile server and flight service")
	return cmd
}

func printSection(out io.Writer, title string, colorize bool) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		detail := strings.TrimSpace(r.Detail)
		if detail == "" && r.Passed {
			detail = "Ready"
		}
		lines = append(lines, renderStatusLine(r.Name, statusKindForCheck(r.Passed, false), detail, colorize))
	}
	return lines
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		if dep.Optional {
			detail += " (optional)"
		}
		lines = append(lines, renderStatusLine(dep.Name, statusKindForCheck(false, dep.Optional), detail, colorize))
		if !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusError, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func encoderLines(ctx context.Context, cfg *config.Config, colorize bool) []string {
	ctx, cancel := context.WithTimeout(ctx, encoderProbeTimeout)
	defer cancel()

	hw, sw := cfg.Video.HardwareEncoder, cfg.Video.SoftwareEncoder
	found, err := deps.ProbeEncoders(ctx, cfg.Video.FFmpegBinary, hw, sw)
	if err != nil {
		return []string{renderStatusLine("ffmpeg -encoders", statusError, err.Error(), colorize)}
	}
	lines := make([]string, 0, 2)
	if found[hw] {
		lines = append(lines, renderStatusLine("Hardware", statusOK, hw, colorize))
	} else {
		lines = append(lines, renderStatusLine("Hardware", statusWarn, hw+" unavailable; renders will use the software encoder", colorize))
	}
	if found[sw] {
		lines = append(lines, renderStatusLine("Software", statusOK, sw, colorize))
	} else {
		lines = append(lines, renderStatusLine("Software", statusError, sw+" unavailable", colorize))
	}
	return lines
}

func ledgerLines(ctx context.Context, cfg *config.Config, colorize bool) []string {
	store, err := runstore.Open(cfg)
	if err != nil {
		return []string{renderStatusLine("Ledger", statusError, err.Error(), colorize)}
	}
	defer store.Close()

	counts, err := store.StatusCounts(ctx)
	if err != nil {
		return []string{renderStatusLine("Ledger", statusError, err.Error(), colorize)}
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	lines := []string{renderStatusLine("Ledger", statusInfo, fmt.Sprintf("%s runs (%s)", formatCount(total), store.Path()), colorize)}
	for _, status := range runstore.AllStatuses() {
		n := counts[status]
		if n == 0 {
			continue
		}
		kind := statusInfo
		if status == runstore.StatusFailed {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(string(status), kind, formatCount(n), colorize))
	}
	return lines
}
