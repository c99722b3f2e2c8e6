package encoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ufpmap/internal/config"
	"ufpmap/internal/frames"
	"ufpmap/internal/logging"
	"ufpmap/internal/media/ffprobe"
	"ufpmap/internal/services"
)

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec
}

type probeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Settings select the ffmpeg binaries and codecs.
type Settings struct {
	FFmpegBinary    string
	FFprobeBinary   string
	HardwareEncoder string
	HardwareQuality int
	SoftwareEncoder string
	SoftwareCRF     int
}

// SettingsFromConfig copies the video section of the configuration.
func SettingsFromConfig(v config.Video) Settings {
	return Settings{
		FFmpegBinary:    v.FFmpegBinary,
		FFprobeBinary:   v.FFprobeBinary,
		HardwareEncoder: v.HardwareEncoder,
		HardwareQuality: v.HardwareQuality,
		SoftwareEncoder: v.SoftwareEncoder,
		SoftwareCRF:     v.SoftwareCRF,
	}
}

// Request describes one encode.
type Request struct {
	FramesDir string
	FrameRate float64
	Output    string
}

// Result describes a finished encode.
type Result struct {
	Output   string
	Encoder  string
	Fallback bool
	Frames   int
	Size     int64
	Duration float64
	Elapsed  time.Duration
}

// Encoder runs ffmpeg.
type Encoder struct {
	settings Settings
	logger   *slog.Logger
	run      commandRunner
	probe    probeFunc
}

// NewEncoder builds an Encoder.
func NewEncoder(settings Settings, logger *slog.Logger) *Encoder {
	if logger == nil {
		logger = logging.NewNop()
	}
	if strings.TrimSpace(settings.FFmpegBinary) == "" {
		settings.FFmpegBinary = "ffmpeg"
	}
	return &Encoder{
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "encoder"),
		run:      execRunner,
		probe:    ffprobe.Inspect,
	}
}

// Encode muxes the frames into req.Output. The hardware encoder is tried
// first; on failure the software encoder gets exactly one attempt.
func (e *Encoder) Encode(ctx context.Context, req Request) (Result, error) {
	if req.FrameRate <= 0 {
		return Result{}, services.Wrap(services.ErrConfiguration, "encode", "frame rate",
			fmt.Sprintf("frame rate must be positive, got %g", req.FrameRate), nil)
	}
	paths, err := DiscoverFrames(req.FramesDir)
	if err != nil {
		return Result{}, err
	}
	if err := checkContiguous(paths); err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "encode", "prepare output", req.Output, err)
	}

	logger := logging.WithContext(ctx, e.logger)
	start := time.Now()
	result := Result{Output: req.Output, Frames: len(paths)}

	attempts := e.attempts()
	var failures []string
	for i, codec := range attempts {
		args := e.args(req, codec)
		logger.Info("encoding video",
			logging.String(logging.FieldEventType, "encode_attempt"),
			logging.String("encoder", codec.name),
			logging.Int("frames", len(paths)),
			logging.Float64("fps", req.FrameRate),
			logging.String("command", e.settings.FFmpegBinary+" "+strings.Join(args, " ")),
		)
		output, runErr := e.run(ctx, e.settings.FFmpegBinary, args...)
		if runErr == nil {
			result.Encoder = codec.name
			result.Fallback = i > 0
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		failures = append(failures, fmt.Sprintf("%s: %v: %s", codec.name, runErr, tail(output, 600)))
		if i < len(attempts)-1 {
			logging.WarnWithContext(logger, "hardware encoder failed; retrying with software encoder", "encoder_fallback",
				logging.String("encoder", codec.name),
				logging.String("fallback", attempts[i+1].name),
				logging.String(logging.FieldErrorHint, "check that the hardware encoder is available on this host"),
				logging.String(logging.FieldImpact, "encoding continues on the CPU and may be slower"),
				logging.Error(runErr),
			)
		}
	}
	if result.Encoder == "" {
		_ = os.Remove(req.Output)
		return Result{}, services.Wrap(services.ErrExternalTool, "encode", "ffmpeg",
			"all encoders failed: "+strings.Join(failures, "; "), nil)
	}

	info, err := os.Stat(req.Output)
	if err != nil || info.Size() == 0 {
		return Result{}, services.Wrap(services.ErrExternalTool, "encode", "verify output",
			fmt.Sprintf("%s missing or empty after ffmpeg exited cleanly", req.Output), err)
	}
	result.Size = info.Size()
	result.Elapsed = time.Since(start)
	e.inspect(ctx, logger, &result)

	logger.Info("video encoded",
		logging.String(logging.FieldEventType, "encode_complete"),
		logging.String("output", req.Output),
		logging.String("encoder", result.Encoder),
		logging.Bool("fallback", result.Fallback),
		logging.Int64("size_bytes", result.Size),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

type codec struct {
	name     string
	software bool
}

func (e *Encoder) attempts() []codec {
	var out []codec
	if hw := strings.TrimSpace(e.settings.HardwareEncoder); hw != "" {
		out = append(out, codec{name: hw})
	}
	sw := strings.TrimSpace(e.settings.SoftwareEncoder)
	if sw == "" {
		sw = "libx264"
	}
	return append(out, codec{name: sw, software: true})
}

func (e *Encoder) args(req Request, c codec) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-framerate", strconv.FormatFloat(req.FrameRate, 'f', -1, 64),
		"-i", filepath.Join(req.FramesDir, frames.Pattern),
		"-c:v", c.name,
	}
	if c.software {
		args = append(args, "-crf", strconv.Itoa(e.settings.SoftwareCRF), "-preset", "medium")
	} else {
		args = append(args, "-q:v", strconv.Itoa(e.settings.HardwareQuality))
		if strings.HasPrefix(c.name, "hevc") {
			args = append(args, "-tag:v", "hvc1")
		}
	}
	// Even dimensions are required by yuv420p.
	args = append(args, "-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2", "-pix_fmt", "yuv420p", "-movflags", "+faststart", req.Output)
	return args
}

func (e *Encoder) inspect(ctx context.Context, logger *slog.Logger, result *Result) {
	if e.probe == nil || strings.TrimSpace(e.settings.FFprobeBinary) == "" {
		return
	}
	if _, err := exec.LookPath(e.settings.FFprobeBinary); err != nil && !filepath.IsAbs(e.settings.FFprobeBinary) {
		return
	}
	probe, err := e.probe(ctx, e.settings.FFprobeBinary, result.Output)
	if err != nil {
		logger.Warn("ffprobe inspection failed", logging.Error(err))
		return
	}
	result.Duration = probe.DurationSeconds()
	attrs := []any{logging.Float64("duration_seconds", result.Duration)}
	if stream, ok := probe.VideoStream(); ok {
		attrs = append(attrs,
			logging.String("codec", stream.CodecName),
			logging.String("resolution", fmt.Sprintf("%dx%d", stream.Width, stream.Height)),
			logging.Int("stream_frames", stream.FrameCount()),
		)
	}
	logger.Info("video inspected", attrs...)
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

// ErrNoArchive is returned by Archive when the drapto library produced no file.
var ErrNoArchive = errors.New("archive encode produced no output")
