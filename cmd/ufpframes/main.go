// Command ufpframes renders the frames described by a batch job file. It is
// the renderer ufpmap launches when render.backend is "external", and can be
// run by hand against a render_job.json left in an output directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"ufpmap/internal/dispatch"
	"ufpmap/internal/frames"
	"ufpmap/internal/logging"
	"ufpmap/internal/render"
	"ufpmap/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "ufpframes:", err)
		}
		os.Exit(services.ExitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	var jobPath string
	var workers int
	var logLevel string

	cmd := &cobra.Command{
		Use:           "ufpframes --job <render_job.json>",
		Short:         "Render the frames of a ufpmap batch job",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logging.Options{Level: logLevel, Format: "console"})
			if err != nil {
				return err
			}
			n, err := renderJob(cmd.Context(), jobPath, workers, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rendered %d frames\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "Batch job descriptor")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent frames (default: CPUs - 1)")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Logging level")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

// renderJob draws every frame of the job into the job's output directory and
// returns the number written.
func renderJob(ctx context.Context, jobPath string, workers int, logger *slog.Logger) (int, error) {
	job, err := frames.ReadJob(jobPath)
	if err != nil {
		return 0, err
	}

	var bg image.Image
	if job.Background != "" {
		if bg, err = render.LoadBackground(job.Background); err != nil {
			return 0, services.Wrap(services.ErrInput, "render", "background", job.Background, err)
		}
	}
	opts, err := render.OptionsFromJob(job, bg)
	if err != nil {
		return 0, services.Wrap(services.ErrInput, "render", "job options", jobPath, err)
	}
	composer, err := render.New(opts)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return 0, services.Wrap(services.ErrRendering, "render", "output dir", job.OutputDir, err)
	}

	result, err := dispatch.New(composer, dispatch.Options{
		Mode:      dispatch.ModeParallel,
		Workers:   workers,
		OutputDir: job.OutputDir,
		Logger:    logger,
	}).Run(ctx, job.Frames)
	if err != nil {
		return result.Rendered, err
	}
	return result.Rendered, nil
}
