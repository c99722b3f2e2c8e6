// Package metrics collects per-run Prometheus metrics and exports them in the
// node-exporter textfile format. There is no network listener; the textfile
// is picked up by whatever collector the host already runs.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns a private registry so repeated runs in one process never
// collide on the default registerer. All methods are safe on a nil Recorder.
type Recorder struct {
	registry *prometheus.Registry

	ReadingsLoaded     prometheus.Gauge
	FramesRendered     *prometheus.CounterVec
	FrameRenderSeconds prometheus.Histogram
	EncoderFallbacks   prometheus.Counter
	RunDuration        *prometheus.GaugeVec
	RunFailures        *prometheus.CounterVec
}

// New registers the run metrics on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		ReadingsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ufpmap_readings_loaded",
			Help: "Readings kept after loading and normalization",
		}),
		FramesRendered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ufpmap_frames_rendered_total",
			Help: "Frames written to disk",
		}, []string{"backend"}),
		FrameRenderSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ufpmap_frame_render_seconds",
			Help:    "Time to compose and write one frame",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		EncoderFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "ufpmap_encoder_fallbacks_total",
			Help: "Encodes that fell back from the hardware to the software encoder",
		}),
		RunDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ufpmap_run_duration_seconds",
			Help: "Wall time of the most recent run per date",
		}, []string{"date", "status"}),
		RunFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ufpmap_run_failures_total",
			Help: "Failed runs by error kind",
		}, []string{"kind"}),
	}
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// SetReadings records the number of loaded readings.
func (r *Recorder) SetReadings(n int) {
	if r == nil {
		return
	}
	r.ReadingsLoaded.Set(float64(n))
}

// FrameRendered records one written frame.
func (r *Recorder) FrameRendered(backend string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.FramesRendered.WithLabelValues(backend).Inc()
	if elapsed > 0 {
		r.FrameRenderSeconds.Observe(elapsed.Seconds())
	}
}

// FramesWritten records frames rendered out of process, where per-frame
// timings are not available.
func (r *Recorder) FramesWritten(backend string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.FramesRendered.WithLabelValues(backend).Add(float64(n))
}

// EncoderFellBack records a hardware to software fallback.
func (r *Recorder) EncoderFellBack() {
	if r == nil {
		return
	}
	r.EncoderFallbacks.Inc()
}

// RunFinished records the outcome of one run. kind is empty on success.
func (r *Recorder) RunFinished(date, status, kind string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.RunDuration.WithLabelValues(date, status).Set(elapsed.Seconds())
	if kind != "" {
		r.RunFailures.WithLabelValues(kind).Inc()
	}
}

// WriteTextfile writes all metrics to path atomically. An empty path is a
// no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
