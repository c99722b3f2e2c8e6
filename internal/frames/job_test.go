package frames

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ufpmap/internal/geo"
	"ufpmap/internal/scale"
	"ufpmap/internal/services"
)

func validJob(dir string) *Job {
	return &Job{
		Version:     JobVersion,
		OutputDir:   dir,
		Width:       1800,
		Height:      1200,
		Extent:      geo.Extent{LonMin: -71.05, LonMax: -71.0, LatMin: 42.36, LatMax: 42.4},
		Scale:       scale.Scale{Min: 10, Max: 48_000_000, Ticks: []float64{10, 48_000_000}},
		Style:       Style{MarkerMinPx: 20, MarkerMaxPx: 70, ArrowScale: 0.4, MaxWindSpeed: 6, HeatmapPower: 2},
		Title:       "East Boston",
		Unit:        "p/cm³",
		LegendTitle: "UFP Concentration",
		Frames: []Frame{
			{Index: 1, Bucket: time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC), Markers: []Marker{{SensorID: "A", Lon: -71.02, Lat: 42.38, Concentration: 10}}},
			{Index: 2, Bucket: time.Date(2025, 8, 1, 10, 5, 0, 0, time.UTC), Wind: &Wind{U: 1, V: 1, Speed: 1.4, Direction: 225}},
		},
	}
}

func TestWriteAndReadJob(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, JobFileName)
	if err := WriteJob(path, validJob(dir)); err != nil {
		t.Fatalf("WriteJob: %v", err)
	}
	got, err := ReadJob(path)
	if err != nil {
		t.Fatalf("ReadJob: %v", err)
	}
	if len(got.Frames) != 2 || got.Frames[1].Wind == nil || got.Frames[1].Wind.Direction != 225 {
		t.Fatalf("unexpected job %+v", got)
	}
	if !got.Frames[0].Bucket.Equal(time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("bucket = %v", got.Frames[0].Bucket)
	}
	if got.Scale.Max != 48_000_000 || got.Extent.LatMax != 42.4 {
		t.Fatalf("shared inputs not preserved: %+v", got)
	}
}

func TestJobValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Job)
	}{
		{"no frames", func(j *Job) { j.Frames = nil }},
		{"bad version", func(j *Job) { j.Version = 9 }},
		{"inverted extent", func(j *Job) { j.Extent.LonMax = j.Extent.LonMin - 1 }},
		{"inverted scale", func(j *Job) { j.Scale.Max = 1 }},
		{"zero index", func(j *Job) { j.Frames[0].Index = 0 }},
		{"duplicate index", func(j *Job) { j.Frames[1].Index = 1 }},
		{"negative concentration", func(j *Job) { j.Frames[0].Markers[0].Concentration = -1 }},
		{"missing output dir", func(j *Job) { j.OutputDir = "" }},
		{"marker range", func(j *Job) { j.Style.MarkerMaxPx = 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := validJob(t.TempDir())
			tt.mutate(job)
			if err := job.Validate(); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestReadJobMissingFile(t *testing.T) {
	if _, err := ReadJob(filepath.Join(t.TempDir(), "absent.json")); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
}
