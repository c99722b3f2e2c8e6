package scale

import (
	"errors"
	"math"
	"testing"
	"time"

	"ufpmap/internal/aggregate"
	"ufpmap/internal/services"
)

func aggs(values ...float64) []aggregate.SensorAggregate {
	bucket := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	out := make([]aggregate.SensorAggregate, 0, len(values))
	for i, v := range values {
		out = append(out, aggregate.SensorAggregate{Bucket: bucket, SensorID: string(rune('A' + i)), MeanConcentration: v, Count: 1})
	}
	return out
}

func TestComputeTwoSensors(t *testing.T) {
	s, err := Compute(aggs(10, 48_000_000))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if s.Min != 10 || s.Max != 48_000_000 {
		t.Fatalf("scale = [%v, %v], want [10, 48000000]", s.Min, s.Max)
	}
	if s.Normalize(10) != 0 || s.Normalize(48_000_000) != 1 {
		t.Fatalf("normalize endpoints = %v, %v", s.Normalize(10), s.Normalize(48_000_000))
	}
}

func TestComputeIgnoresMissingAndBoundsEveryMean(t *testing.T) {
	input := aggs(math.NaN(), 300, 120, math.NaN(), 4500)
	s, err := Compute(input)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for _, a := range input {
		if a.HasConcentration() && !s.Contains(a.MeanConcentration) {
			t.Fatalf("%v outside [%v, %v]", a.MeanConcentration, s.Min, s.Max)
		}
	}
	if s.Min != 120 || s.Max != 4500 {
		t.Fatalf("scale = [%v, %v]", s.Min, s.Max)
	}
}

func TestComputeFailsWithoutValues(t *testing.T) {
	_, err := Compute(aggs(math.NaN(), math.NaN()))
	if !errors.Is(err, services.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if _, err := Compute(nil); !errors.Is(err, services.ErrNoData) {
		t.Fatalf("expected ErrNoData for empty input, got %v", err)
	}
}

func TestDegenerateScale(t *testing.T) {
	s, err := Compute(aggs(42, 42))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if s.Normalize(42) != 0 {
		t.Fatalf("Normalize on degenerate scale = %v, want 0", s.Normalize(42))
	}
	if len(s.Ticks) != 1 || s.Ticks[0] != 42 {
		t.Fatalf("ticks = %v, want [42]", s.Ticks)
	}
}

func TestNormalizeClamps(t *testing.T) {
	s := Scale{Min: 100, Max: 200}
	tests := map[float64]float64{50: 0, 100: 0, 150: 0.5, 200: 1, 900: 1}
	for in, want := range tests {
		if got := s.Normalize(in); got != want {
			t.Errorf("Normalize(%v) = %v, want %v", in, got, want)
		}
	}
	if got := s.Normalize(math.NaN()); got != 0 {
		t.Errorf("Normalize(NaN) = %v, want 0", got)
	}
}

func TestTicks(t *testing.T) {
	tests := []struct {
		lo, hi float64
		want   []float64
	}{
		{0, 100, []float64{0, 20, 40, 60, 80, 100}},
		{10, 48_000_000, []float64{10, 1e7, 2e7, 3e7, 4e7, 48_000_000}},
		{1200, 9800, []float64{1200, 2000, 4000, 6000, 8000, 9800}},
	}
	for _, tt := range tests {
		got := Ticks(tt.lo, tt.hi, 5)
		if len(got) != len(tt.want) {
			t.Errorf("Ticks(%v, %v) = %v, want %v", tt.lo, tt.hi, got, tt.want)
			continue
		}
		for i := range got {
			if math.Abs(got[i]-tt.want[i]) > 1e-6 {
				t.Errorf("Ticks(%v, %v) = %v, want %v", tt.lo, tt.hi, got, tt.want)
				break
			}
		}
	}
}

func TestTicksMonotonic(t *testing.T) {
	ranges := [][2]float64{{0.1, 0.7}, {3, 3.5}, {999, 1001}, {5, 123456789}, {-20, 40}}
	for _, r := range ranges {
		ticks := Ticks(r[0], r[1], 5)
		if ticks[0] != r[0] || ticks[len(ticks)-1] != r[1] {
			t.Errorf("Ticks(%v) = %v does not span the range", r, ticks)
		}
		for i := 1; i < len(ticks); i++ {
			if ticks[i] <= ticks[i-1] {
				t.Errorf("Ticks(%v) = %v is not strictly increasing", r, ticks)
			}
		}
	}
}

func TestTicksTerminatesAtPrecisionLimit(t *testing.T) {
	lo := 1e20
	hi := math.Nextafter(lo, math.Inf(1))

	done := make(chan []float64, 1)
	go func() { done <- Ticks(lo, hi, DefaultTickCount) }()

	select {
	case ticks := <-done:
		if len(ticks) < 2 || ticks[0] != lo || ticks[len(ticks)-1] != hi {
			t.Fatalf("ticks = %v, want endpoints %v and %v", ticks, lo, hi)
		}
		if len(ticks) > 4*DefaultTickCount+2 {
			t.Fatalf("ticks = %d values", len(ticks))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Ticks did not return for a range a few ulps wide")
	}
}
