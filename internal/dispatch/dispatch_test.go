package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ufpmap/internal/frames"
	"ufpmap/internal/geo"
	"ufpmap/internal/scale"
	"ufpmap/internal/services"
)

type fileRenderer struct {
	mu       sync.Mutex
	calls    []int
	inflight atomic.Int32
	peak     atomic.Int32
	failOn   map[int]bool
}

func (r *fileRenderer) Save(f frames.Frame, dir string) (string, error) {
	n := r.inflight.Add(1)
	defer r.inflight.Add(-1)
	for {
		peak := r.peak.Load()
		if n <= peak || r.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	r.mu.Lock()
	r.calls = append(r.calls, f.Index)
	r.mu.Unlock()

	if r.failOn[f.Index] {
		return "", fmt.Errorf("draw failed for %d", f.Index)
	}
	path := f.Path(dir)
	return path, os.WriteFile(path, []byte("png"), 0o644)
}

func makeFrames(n int) []frames.Frame {
	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	out := make([]frames.Frame, n)
	for i := range out {
		out[i] = frames.Frame{Index: i + 1, Bucket: start.Add(time.Duration(i) * 5 * time.Minute)}
	}
	return out
}

func TestParallelRendersEveryFrameOnce(t *testing.T) {
	dir := t.TempDir()
	renderer := &fileRenderer{}
	var observed atomic.Int32
	d := New(renderer, Options{Mode: ModeParallel, Workers: 4, OutputDir: dir, OnFrame: func(time.Duration) { observed.Add(1) }})

	result, err := d.Run(context.Background(), makeFrames(100))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Rendered != 100 || len(result.Paths) != 100 || observed.Load() != 100 {
		t.Fatalf("rendered %d, paths %d, observed %d", result.Rendered, len(result.Paths), observed.Load())
	}
	if renderer.peak.Load() > 4 {
		t.Fatalf("peak concurrency %d exceeds 4 workers", renderer.peak.Load())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	seen := make(map[int]bool)
	for _, e := range entries {
		idx, ok := frames.ParseFileName(e.Name())
		if !ok {
			t.Fatalf("unexpected file %s", e.Name())
		}
		if seen[idx] {
			t.Fatalf("duplicate index %d", idx)
		}
		seen[idx] = true
	}
	for i := 1; i <= 100; i++ {
		if !seen[i] {
			t.Fatalf("missing frame %d", i)
		}
	}
}

func TestParallelStopsAfterFailingBatch(t *testing.T) {
	renderer := &fileRenderer{failOn: map[int]bool{6: true, 7: true}}
	d := New(renderer, Options{Mode: ModeParallel, Workers: 4, OutputDir: t.TempDir()})

	result, err := d.Run(context.Background(), makeFrames(20))
	if !errors.Is(err, services.ErrRendering) {
		t.Fatalf("expected ErrRendering, got %v", err)
	}
	if !strings.Contains(err.Error(), "2 of 4 frames in batch failed") || !strings.Contains(err.Error(), "draw failed") {
		t.Fatalf("error should report count and cause: %v", err)
	}
	// Batch two (frames 5-8) finishes before the dispatcher stops.
	if len(renderer.calls) != 8 {
		t.Fatalf("rendered %d frames before stopping, want 8", len(renderer.calls))
	}
	if result.Rendered != 6 {
		t.Fatalf("result counts %d successful frames, want 6", result.Rendered)
	}
}

func TestSequentialRendersInIndexOrder(t *testing.T) {
	renderer := &fileRenderer{}
	d := New(renderer, Options{Mode: ModeSequential, OutputDir: t.TempDir()})
	fs := makeFrames(12)
	fs[0], fs[11] = fs[11], fs[0]

	result, err := d.Run(context.Background(), fs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Workers != 1 || result.Rendered != 12 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !sort.IntsAreSorted(renderer.calls) {
		t.Fatalf("render order %v is not ascending", renderer.calls)
	}
	if renderer.peak.Load() != 1 {
		t.Fatalf("sequential mode ran %d frames at once", renderer.peak.Load())
	}
}

func TestSequentialStopsOnFirstFailure(t *testing.T) {
	renderer := &fileRenderer{failOn: map[int]bool{3: true}}
	d := New(renderer, Options{Mode: ModeSequential, OutputDir: t.TempDir()})
	_, err := d.Run(context.Background(), makeFrames(5))
	if !errors.Is(err, services.ErrRendering) {
		t.Fatalf("expected ErrRendering, got %v", err)
	}
	if len(renderer.calls) != 3 {
		t.Fatalf("rendered %d frames, want 3", len(renderer.calls))
	}
}

func TestRunRejectsEmptyAndUnknownMode(t *testing.T) {
	d := New(&fileRenderer{}, Options{Mode: ModeParallel, OutputDir: t.TempDir()})
	if _, err := d.Run(context.Background(), nil); !errors.Is(err, services.ErrRendering) {
		t.Fatalf("expected ErrRendering for no frames, got %v", err)
	}
	d = New(&fileRenderer{}, Options{Mode: "gpu", OutputDir: t.TempDir()})
	if _, err := d.Run(context.Background(), makeFrames(1)); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestDefaultWorkersAtLeastOne(t *testing.T) {
	if DefaultWorkers() < 1 {
		t.Fatalf("DefaultWorkers = %d", DefaultWorkers())
	}
	d := New(&fileRenderer{}, Options{})
	if d.opts.Workers != DefaultWorkers() || d.opts.Mode != ModeParallel {
		t.Fatalf("unexpected defaults %+v", d.opts)
	}
}

func jobTemplate() *frames.Job {
	return &frames.Job{
		Width:       640,
		Height:      480,
		Extent:      geo.Extent{LonMin: -71.05, LonMax: -71.0, LatMin: 42.36, LatMax: 42.4},
		Scale:       scale.Scale{Min: 1, Max: 2, Ticks: []float64{1, 2}},
		Style:       frames.Style{MarkerMinPx: 20, MarkerMaxPx: 70, ArrowScale: 0.4, MaxWindSpeed: 6},
		Title:       "East Boston",
		Unit:        "p/cm³",
		LegendTitle: "UFP",
	}
}

func TestExternalWritesJobAndRunsRenderer(t *testing.T) {
	dir := t.TempDir()
	d := New(nil, Options{Mode: ModeExternal, OutputDir: dir, RendererBinary: "ufpframes", Job: jobTemplate()})
	var gotArgs []string
	d.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		job, err := frames.ReadJob(args[1])
		if err != nil {
			return nil, err
		}
		for _, f := range job.Frames {
			if err := os.WriteFile(f.Path(job.OutputDir), []byte("png"), 0o644); err != nil {
				return nil, err
			}
		}
		return []byte("ok"), nil
	}

	result, err := d.Run(context.Background(), makeFrames(5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantJob := filepath.Join(dir, frames.JobFileName)
	if strings.Join(gotArgs, " ") != "ufpframes --job "+wantJob {
		t.Fatalf("renderer invoked as %v", gotArgs)
	}
	if result.Rendered != 5 || result.JobPath != wantJob {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestExternalNonZeroExitIsFatal(t *testing.T) {
	d := New(nil, Options{Mode: ModeExternal, OutputDir: t.TempDir(), RendererBinary: "ufpframes", Job: jobTemplate()})
	d.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("metal device unavailable"), errors.New("exit status 1")
	}
	_, err := d.Run(context.Background(), makeFrames(2))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "metal device unavailable") {
		t.Fatalf("error should carry renderer output: %v", err)
	}
}

func TestExternalDetectsMissingFrames(t *testing.T) {
	d := New(nil, Options{Mode: ModeExternal, OutputDir: t.TempDir(), RendererBinary: "ufpframes", Job: jobTemplate()})
	d.run = func(context.Context, string, ...string) ([]byte, error) { return nil, nil }
	_, err := d.Run(context.Background(), makeFrames(2))
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "frame_00001.png") {
		t.Fatalf("expected missing frame error, got %v", err)
	}
}
