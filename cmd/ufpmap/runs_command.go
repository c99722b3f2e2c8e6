package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ufpmap/internal/runstore"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var failedOnly bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded render runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := runstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if failedOnly {
				kept := runs[:0]
				for _, run := range runs {
					if run.Failed() {
						kept = append(kept, run)
					}
				}
				runs = kept
			}
			if jsonOutput {
				return writeJSON(cmd, runs)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			loc := cfg.Location()
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				detail := relativeTo(cfg.Paths.OutputDir, run.VideoPath)
				if run.Failed() {
					detail = strings.TrimSpace(run.ErrorKind + ": " + run.ErrorDetail)
				}
				rows = append(rows, []string{
					shortID(run.ID),
					run.Date,
					string(run.Status),
					run.Backend,
					formatCount(run.FrameCount),
					run.Encoder,
					run.CreatedAt.In(loc).Format("2006-01-02 15:04"),
					truncate(detail, 60),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Date", "Status", "Backend", "Frames", "Encoder", "Started", "Video / error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show failed runs")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")

	cmd.AddCommand(newRunsPruneCommand(ctx))
	return cmd
}

func newRunsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete ledger entries older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return usageError("--older-than must be positive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := runstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Remove runs created before now minus this duration")
	return cmd
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
