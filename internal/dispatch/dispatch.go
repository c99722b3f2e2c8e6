package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ufpmap/internal/frames"
	"ufpmap/internal/logging"
	"ufpmap/internal/services"
)

// Modes.
const (
	ModeSequential = "sequential"
	ModeParallel   = "parallel"
	ModeExternal   = "external"
)

// progressBucket is the percentage cadence of progress log lines.
const progressBucket = 10

// Renderer draws and saves one frame, returning the written path.
type Renderer interface {
	Save(f frames.Frame, dir string) (string, error)
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Options configure a Dispatcher.
type Options struct {
	Mode      string
	Workers   int
	OutputDir string
	Logger    *slog.Logger

	// RendererBinary and Job are used by the external mode. Job carries the
	// shared drawing inputs; frames and output directory are filled in.
	RendererBinary string
	Job            *frames.Job

	// OnFrame is called after every successfully rendered frame.
	OnFrame func(elapsed time.Duration)
}

// Result summarizes a dispatch.
type Result struct {
	Mode     string
	Workers  int
	Rendered int
	Paths    []string
	JobPath  string
}

// Dispatcher renders frame batches.
type Dispatcher struct {
	renderer Renderer
	opts     Options
	logger   *slog.Logger
	run      commandRunner
}

// DefaultWorkers is one less than the number of CPUs, at least one.
func DefaultWorkers() int {
	return max(runtime.NumCPU()-1, 1)
}

// New builds a dispatcher. renderer may be nil in external mode.
func New(renderer Renderer, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Mode == "" {
		opts.Mode = ModeParallel
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	return &Dispatcher{
		renderer: renderer,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "dispatch"),
		run:      execRunner,
	}
}

// Run renders every frame into the output directory.
func (d *Dispatcher) Run(ctx context.Context, fs []frames.Frame) (Result, error) {
	if len(fs) == 0 {
		return Result{}, services.Wrap(services.ErrRendering, "render", "dispatch", "no frames to render", nil)
	}
	if err := os.MkdirAll(d.opts.OutputDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrRendering, "render", "prepare output", d.opts.OutputDir, err)
	}
	logger := logging.WithContext(ctx, d.logger)
	logger.Info("frame dispatch started",
		logging.String(logging.FieldEventType, "render_start"),
		logging.String("mode", d.opts.Mode),
		logging.Int("frames", len(fs)),
		logging.Int("workers", d.workers()),
		logging.String("output_dir", d.opts.OutputDir),
	)

	var (
		result Result
		err    error
	)
	switch d.opts.Mode {
	case ModeSequential:
		result, err = d.sequential(ctx, logger, fs)
	case ModeParallel:
		result, err = d.parallel(ctx, logger, fs)
	case ModeExternal:
		result, err = d.external(ctx, logger, fs)
	default:
		return Result{}, services.Wrap(services.ErrConfiguration, "render", "dispatch",
			fmt.Sprintf("unknown backend %q", d.opts.Mode), nil)
	}
	if err != nil {
		return result, err
	}
	result.Mode = d.opts.Mode
	result.Workers = d.workers()
	sort.Strings(result.Paths)
	logger.Info("frame dispatch completed",
		logging.String(logging.FieldEventType, "render_complete"),
		logging.Int("frames", result.Rendered),
	)
	return result, nil
}

func (d *Dispatcher) workers() int {
	switch d.opts.Mode {
	case ModeSequential, ModeExternal:
		return 1
	default:
		return d.opts.Workers
	}
}

func (d *Dispatcher) renderOne(f frames.Frame) (string, error) {
	start := time.Now()
	path, err := d.renderer.Save(f, d.opts.OutputDir)
	if err != nil {
		return "", fmt.Errorf("frame %d: %w", f.Index, err)
	}
	if d.opts.OnFrame != nil {
		d.opts.OnFrame(time.Since(start))
	}
	return path, nil
}

func (d *Dispatcher) sequential(ctx context.Context, logger *slog.Logger, fs []frames.Frame) (Result, error) {
	if d.renderer == nil {
		return Result{}, errors.New("frame renderer unavailable")
	}
	ordered := sortedByIndex(fs)
	sampler := logging.NewProgressSampler(progressBucket)
	result := Result{Paths: make([]string, 0, len(ordered))}
	for i, f := range ordered {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		path, err := d.renderOne(f)
		if err != nil {
			return result, services.Wrap(services.ErrRendering, "render", "sequential", "", err)
		}
		result.Paths = append(result.Paths, path)
		result.Rendered++
		d.reportProgress(logger, sampler, i+1, len(ordered))
	}
	return result, nil
}

func (d *Dispatcher) parallel(ctx context.Context, logger *slog.Logger, fs []frames.Frame) (Result, error) {
	if d.renderer == nil {
		return Result{}, errors.New("frame renderer unavailable")
	}
	ordered := sortedByIndex(fs)
	workers := d.opts.Workers
	sampler := logging.NewProgressSampler(progressBucket)
	result := Result{Paths: make([]string, 0, len(ordered))}

	for start := 0; start < len(ordered); start += workers {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch := ordered[start:min(start+workers, len(ordered))]
		paths := make([]string, len(batch))
		failed := make([]bool, len(batch))

		var g errgroup.Group
		for i, f := range batch {
			g.Go(func() error {
				path, err := d.renderOne(f)
				if err != nil {
					failed[i] = true
					return err
				}
				paths[i] = path
				return nil
			})
		}
		firstErr := g.Wait()

		failures := 0
		for i, path := range paths {
			if failed[i] {
				failures++
				continue
			}
			result.Paths = append(result.Paths, path)
			result.Rendered++
		}
		if failures > 0 {
			return result, services.Wrap(services.ErrRendering, "render", "parallel",
				fmt.Sprintf("%d of %d frames in batch failed", failures, len(batch)), firstErr)
		}
		d.reportProgress(logger, sampler, result.Rendered, len(ordered))
	}
	return result, nil
}

func (d *Dispatcher) external(ctx context.Context, logger *slog.Logger, fs []frames.Frame) (Result, error) {
	binary := strings.TrimSpace(d.opts.RendererBinary)
	if binary == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "render", "external", "render.renderer_binary is not set", nil)
	}
	if d.opts.Job == nil {
		return Result{}, services.Wrap(services.ErrRendering, "render", "external", "job template unavailable", nil)
	}
	job := *d.opts.Job
	job.Version = frames.JobVersion
	job.OutputDir = d.opts.OutputDir
	job.Frames = sortedByIndex(fs)

	jobPath := filepath.Join(d.opts.OutputDir, frames.JobFileName)
	if err := frames.WriteJob(jobPath, &job); err != nil {
		return Result{}, err
	}
	logger.Info("external renderer started",
		logging.String("renderer", binary),
		logging.String("job", jobPath),
	)

	start := time.Now()
	output, err := d.run(ctx, binary, "--job", jobPath)
	if err != nil {
		return Result{JobPath: jobPath}, services.Wrap(services.ErrExternalTool, "render", "external",
			fmt.Sprintf("%s failed: %s", filepath.Base(binary), tail(output, 800)), err)
	}

	result := Result{JobPath: jobPath, Paths: make([]string, 0, len(job.Frames))}
	var missing []string
	for _, f := range job.Frames {
		path := f.Path(d.opts.OutputDir)
		if info, statErr := os.Stat(path); statErr != nil || info.Size() == 0 {
			missing = append(missing, filepath.Base(path))
			continue
		}
		result.Paths = append(result.Paths, path)
		result.Rendered++
	}
	if len(missing) > 0 {
		return result, services.Wrap(services.ErrExternalTool, "render", "external",
			fmt.Sprintf("renderer exited cleanly but %d frames are missing (first %s)", len(missing), missing[0]), nil)
	}
	logger.Info("external renderer finished",
		logging.Duration("elapsed", time.Since(start)),
		logging.Int("frames", result.Rendered),
	)
	return result, nil
}

func (d *Dispatcher) reportProgress(logger *slog.Logger, sampler *logging.ProgressSampler, done, total int) {
	percent := float64(done) / float64(total) * 100
	if !sampler.ShouldLog(percent, "render") {
		return
	}
	logger.Info("rendering frames",
		logging.String(logging.FieldEventType, "render_progress"),
		logging.Int("done", done),
		logging.Int("total", total),
		logging.String("percent", fmt.Sprintf("%.0f%%", percent)),
	)
}

func sortedByIndex(fs []frames.Frame) []frames.Frame {
	out := append([]frames.Frame(nil), fs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func tail(output []byte, limit int) string {
	s := strings.TrimSpace(string(output))
	if s == "" {
		return "no output"
	}
	if len(s) > limit {
		s = "…" + s[len(s)-limit:]
	}
	return s
}
