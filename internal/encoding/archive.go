package encoding

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"

	"ufpmap/internal/logging"
	"ufpmap/internal/services"
)

// archiveFunc encodes input into outDir and reports progress to rep.
type archiveFunc func(ctx context.Context, input, outDir string, rep draptolib.Reporter) error

func draptoArchive(ctx context.Context, input, outDir string, rep draptolib.Reporter) error {
	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return err
	}
	_, err = encoder.EncodeWithReporter(ctx, input, outDir, rep)
	return err
}

// Archiver produces an AV1 archive copy of a finished video.
type Archiver struct {
	logger *slog.Logger
	encode archiveFunc
}

// NewArchiver builds an Archiver backed by the drapto library.
func NewArchiver(logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Archiver{logger: logging.NewComponentLogger(logger, "archive"), encode: draptoArchive}
}

// ArchivePath is where Archive writes the copy of video inside dir.
func ArchivePath(video, dir string) string {
	base := filepath.Base(video)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(dir, stem+".mkv")
}

// Archive encodes video into dir and returns the archive path.
func (a *Archiver) Archive(ctx context.Context, video, dir string) (string, error) {
	if strings.TrimSpace(video) == "" || strings.TrimSpace(dir) == "" {
		return "", services.Wrap(services.ErrConfiguration, "archive", "prepare", "video and archive directory are required", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "archive", "prepare", dir, err)
	}
	logger := logging.WithContext(ctx, a.logger)
	logger.Info("archive encode started", logging.String("input", video), logging.String("output_dir", dir))

	rep := newLogReporter(logger)
	if err := a.encode(ctx, video, dir, rep); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "archive", "drapto", filepath.Base(video), err)
	}
	out := ArchivePath(video, dir)
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		return "", services.Wrap(services.ErrExternalTool, "archive", "verify", out, ErrNoArchive)
	}
	return out, nil
}

// logReporter forwards drapto progress to the structured logger, throttled to
// fixed percentage steps.
type logReporter struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
}

func newLogReporter(logger *slog.Logger) *logReporter {
	return &logReporter{logger: logger, sampler: logging.NewProgressSampler(10)}
}

func (r *logReporter) Hardware(s draptolib.HardwareSummary) {
	r.logger.Debug("archive host", logging.String("hostname", s.Hostname))
}

func (r *logReporter) Initialization(s draptolib.InitializationSummary) {
	r.logger.Info("archive input",
		logging.Any("input", s.InputFile),
		logging.Any("output", s.OutputFile),
		logging.Any("resolution", s.Resolution),
		logging.Any("duration", s.Duration),
	)
}

func (r *logReporter) StageProgress(s draptolib.StageProgress) {
	if !r.sampler.ShouldLog(float64(s.Percent), s.Stage) {
		return
	}
	attrs := []any{
		logging.String("archive_stage", s.Stage),
		logging.String("percent", fmt.Sprintf("%.0f%%", s.Percent)),
	}
	if s.Message != "" {
		attrs = append(attrs, logging.String("detail", s.Message))
	}
	if s.ETA != nil {
		attrs = append(attrs, logging.Duration("eta", *s.ETA))
	}
	r.logger.Info("archive progress", attrs...)
}

func (r *logReporter) CropResult(s draptolib.CropSummary) {
	r.logger.Debug("archive crop", logging.Any("crop", s.Crop), logging.Any("required", s.Required))
}

func (r *logReporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.logger.Debug("archive encoder settings",
		logging.Any("encoder", s.Encoder),
		logging.Any("preset", s.Preset),
		logging.Any("quality", s.Quality),
	)
}

func (r *logReporter) EncodingStarted(totalFrames uint64) {
	r.sampler.Reset()
	r.logger.Info("archive encoding started", logging.Int64("total_frames", int64(totalFrames)))
}

func (r *logReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	if !r.sampler.ShouldLog(float64(s.Percent), "encoding") {
		return
	}
	r.logger.Info("archive encoding",
		logging.String("percent", fmt.Sprintf("%.0f%%", s.Percent)),
		logging.Float64("speed", float64(s.Speed)),
		logging.Float64("fps", float64(s.FPS)),
		logging.Duration("eta", s.ETA),
	)
}

func (r *logReporter) ValidationComplete(s draptolib.ValidationSummary) {
	if s.Passed {
		r.logger.Info("archive validation passed", logging.Int("checks", len(s.Steps)))
		return
	}
	for _, step := range s.Steps {
		if !step.Passed {
			r.logger.Warn("archive validation failed", logging.Any("check", step.Name), logging.Any("detail", step.Details))
		}
	}
}

func (r *logReporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.logger.Info("archive encode complete",
		logging.Any("output", s.OutputFile),
		logging.Int64("original_bytes", int64(s.OriginalSize)),
		logging.Int64("encoded_bytes", int64(s.EncodedSize)),
		logging.Any("elapsed", s.TotalTime),
	)
}

func (r *logReporter) Warning(message string) {
	r.logger.Warn("archive warning", logging.String("detail", message))
}

func (r *logReporter) Error(e draptolib.ReporterError) {
	r.logger.Error("archive error",
		logging.String("title", e.Title),
		logging.String("detail", e.Message),
		logging.String(logging.FieldErrorHint, e.Suggestion),
	)
}

func (r *logReporter) OperationComplete(message string) {
	r.logger.Debug("archive operation complete", logging.String("detail", message))
}

func (r *logReporter) BatchStarted(s draptolib.BatchStartInfo) {
	r.logger.Debug("archive batch started", logging.Any("files", s.TotalFiles))
}

func (r *logReporter) FileProgress(s draptolib.FileProgressContext) {
	r.logger.Debug("archive file", logging.Any("current", s.CurrentFile), logging.Any("total", s.TotalFiles))
}

func (r *logReporter) BatchComplete(s draptolib.BatchSummary) {
	r.logger.Debug("archive batch complete", logging.Any("successful", s.SuccessfulCount), logging.Any("total", s.TotalFiles))
}

var _ draptolib.Reporter = (*logReporter)(nil)
