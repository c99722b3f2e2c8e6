package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ufpmap/internal/config"
	"ufpmap/internal/metrics"
	"ufpmap/internal/pipeline"
	"ufpmap/internal/runstore"
	"ufpmap/internal/services"
)

type renderFlags struct {
	dates           []string
	allDates        bool
	output          string
	backend         string
	workers         int
	secondsPerFrame float64
	fps             float64
	width           int
	height          int
	bucketMinutes   int
	cleanup         bool
	noBaseMap       bool
	archive         bool
	combined        bool
	jsonOutput      bool
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one or more dates into an animated map video",
		Long: `Render loads the reading table, keeps the readings of each selected date,
averages them into time buckets, and draws one frame per bucket. The frames
are encoded with the hardware encoder first and the software encoder as a
single fallback.

With --combined the selected dates become one video: they share a single
concentration scale and render into <output>/<first>_<last>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyRenderFlags(cmd, cfg, flags); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			store, err := runstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer store.Close()

			p := pipeline.New(cfg, logger,
				pipeline.WithStore(store),
				pipeline.WithMetrics(metrics.New()),
			)
			summaries, runErr := p.Run(cmd.Context(), pipeline.Request{
				Dates:     flags.dates,
				AllDates:  flags.allDates,
				Backend:   flags.backend,
				Workers:   flags.workers,
				OutputDir: flags.output,
				Cleanup:   flags.cleanup,
				NoBaseMap: flags.noBaseMap,
				Archive:   flags.archive,
				Combined:  flags.combined,
			})

			out := cmd.OutOrStdout()
			if flags.jsonOutput {
				if err := writeJSON(cmd, renderSummaryViews(summaries)); err != nil {
					return err
				}
			} else if len(summaries) > 0 {
				printRenderSummaries(out, summaries, shouldColorize(out))
			}
			return runErr
		},
	}

	cmd.Flags().StringArrayVarP(&flags.dates, "date", "d", nil, "Date to render (YYYY-MM-DD); repeatable")
	cmd.Flags().BoolVar(&flags.allDates, "all-dates", false, "Render every date present in the reading table")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output root; each date renders into <output>/<date>")
	cmd.Flags().StringVar(&flags.backend, "backend", "", "Frame backend: sequential, parallel, or external")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "Parallel worker count")
	cmd.Flags().Float64Var(&flags.secondsPerFrame, "seconds-per-frame", 0, "Seconds each frame is shown")
	cmd.Flags().Float64Var(&flags.fps, "fps", 0, "Frames per second (alternative to --seconds-per-frame)")
	cmd.Flags().IntVar(&flags.width, "width", 0, "Frame width in pixels")
	cmd.Flags().IntVar(&flags.height, "height", 0, "Frame height in pixels")
	cmd.Flags().IntVar(&flags.bucketMinutes, "bucket-minutes", 0, "Aggregation bucket width in minutes")
	cmd.Flags().BoolVar(&flags.cleanup, "cleanup", false, "Delete frame images after the video is verified")
	cmd.Flags().BoolVar(&flags.noBaseMap, "no-basemap", false, "Skip the map tile background")
	cmd.Flags().BoolVar(&flags.archive, "archive", false, "Also write an AV1 archive copy of the video")
	cmd.Flags().BoolVar(&flags.combined, "combined", false, "Render all selected dates as one video on a shared scale")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print run summaries as JSON")
	cmd.MarkFlagsMutuallyExclusive("date", "all-dates")
	cmd.MarkFlagsMutuallyExclusive("seconds-per-frame", "fps")
	return cmd
}

// applyRenderFlags folds explicit command-line overrides into cfg and
// revalidates it.
func applyRenderFlags(cmd *cobra.Command, cfg *config.Config, flags renderFlags) error {
	changed := cmd.Flags().Changed
	if changed("output") {
		expanded, err := config.ExpandPath(strings.TrimSpace(flags.output))
		if err != nil {
			return err
		}
		cfg.Paths.OutputDir = expanded
	}
	if changed("backend") {
		cfg.Render.Backend = strings.ToLower(strings.TrimSpace(flags.backend))
	}
	if changed("workers") {
		cfg.Render.Workers = flags.workers
	}
	if changed("seconds-per-frame") {
		cfg.Video.SecondsPerFrame = flags.secondsPerFrame
	}
	if changed("fps") {
		if flags.fps <= 0 {
			return usageError("--fps must be positive, got %g", flags.fps)
		}
		cfg.Video.SecondsPerFrame = 1 / flags.fps
	}
	if changed("width") {
		cfg.Render.Width = flags.width
	}
	if changed("height") {
		cfg.Render.Height = flags.height
	}
	if changed("bucket-minutes") {
		cfg.Aggregation.BucketMinutes = flags.bucketMinutes
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", services.ErrConfiguration, err)
	}
	return nil
}

type renderSummaryView struct {
	RunID    string   `json:"run_id"`
	Date     string   `json:"date"`
	Dates    []string `json:"dates"`
	Output   string   `json:"output_dir"`
	Buckets  int      `json:"buckets"`
	Frames   int      `json:"frames"`
	ScaleMin float64  `json:"scale_min"`
	ScaleMax float64  `json:"scale_max"`
	Backend  string   `json:"backend"`
	Video    string   `json:"video"`
	Encoder  string   `json:"encoder"`
	Fallback bool     `json:"fallback"`
	Duration float64  `json:"duration_seconds"`
	Cleaned  int      `json:"frames_removed"`
	Archive  string   `json:"archive,omitempty"`
	Elapsed  float64  `json:"elapsed_seconds"`
}

func renderSummaryViews(summaries []pipeline.Summary) []renderSummaryView {
	views := make([]renderSummaryView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, renderSummaryView{
			RunID:    s.RunID,
			Date:     s.Date,
			Dates:    s.Dates,
			Output:   s.OutputDir,
			Buckets:  s.Buckets,
			Frames:   s.Frames,
			ScaleMin: s.Scale.Min,
			ScaleMax: s.Scale.Max,
			Backend:  s.Backend,
			Video:    s.Video,
			Encoder:  s.Encoder,
			Fallback: s.Fallback,
			Duration: s.Duration,
			Cleaned:  s.Cleaned,
			Archive:  s.Archive,
			Elapsed:  s.Elapsed.Seconds(),
		})
	}
	return views
}

func printRenderSummaries(out io.Writer, summaries []pipeline.Summary, colorize bool) {
	for i, s := range summaries {
		if i > 0 {
			fmt.Fprintln(out)
		}
		for _, line := range renderSectionHeader(s.Date, colorize) {
			fmt.Fprintln(out, line)
		}
		encoderKind := statusOK
		encoderMsg := s.Encoder
		if s.Fallback {
			encoderKind = statusWarn
			encoderMsg += " (hardware encoder failed)"
		}
		lines := []string{
			renderStatusLine("Frames", statusInfo, fmt.Sprintf("%s from %s buckets (%s)", formatCount(s.Frames), formatCount(s.Buckets), s.Backend), colorize),
			renderStatusLine("Scale", statusInfo, fmt.Sprintf("%s to %s", formatValue(s.Scale.Min), formatValue(s.Scale.Max)), colorize),
			renderStatusLine("Encoder", encoderKind, encoderMsg, colorize),
			renderStatusLine("Video", statusOK, fmt.Sprintf("%s (%.1fs)", s.Video, s.Duration), colorize),
		}
		if s.Archive != "" {
			lines = append(lines, renderStatusLine("Archive", statusOK, s.Archive, colorize))
		}
		if s.Cleaned > 0 {
			lines = append(lines, renderStatusLine("Frames removed", statusInfo, formatCount(s.Cleaned), colorize))
		}
		lines = append(lines, renderStatusLine("Run", statusInfo, fmt.Sprintf("%s in %s", shortID(s.RunID), s.Elapsed.Round(1e7)), colorize))
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func relativeTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
