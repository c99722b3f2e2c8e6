package frames

import (
	"math"
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"ufpmap/internal/aggregate"
	"ufpmap/internal/readings"
)

func TestFileNameRoundTripPreservesChronology(t *testing.T) {
	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	names := make([]string, 0, 288)
	buckets := make(map[string]time.Time, 288)
	for i := 1; i <= 288; i++ {
		name := FileName(i)
		names = append(names, name)
		buckets[name] = start.Add(time.Duration(i-1) * 5 * time.Minute)
	}
	rng := rand.New(rand.NewPCG(1, 2))
	rng.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
	sort.Strings(names)

	for i, name := range names {
		idx, ok := ParseFileName(name)
		if !ok || idx != i+1 {
			t.Fatalf("ParseFileName(%q) = %d, %v; want %d", name, idx, ok, i+1)
		}
		if i > 0 && !buckets[names[i-1]].Before(buckets[name]) {
			t.Fatalf("%s sorts before %s but is not earlier", names[i-1], name)
		}
	}
}

func TestParseFileNameRejectsOtherFiles(t *testing.T) {
	for _, name := range []string{"frame_1.png", "frame_00000.png", "basemap.png", "frame_abcde.png", "frame_00001.jpg"} {
		if _, ok := ParseFileName(name); ok {
			t.Errorf("ParseFileName(%q) unexpectedly succeeded", name)
		}
	}
	if FileName(7) != "frame_00007.png" {
		t.Fatalf("FileName(7) = %s", FileName(7))
	}
}

func TestBuildOmitsSensorsWithoutConcentration(t *testing.T) {
	b0 := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	b1 := b0.Add(5 * time.Minute)
	result := aggregate.Result{
		Width: 5 * time.Minute,
		Sensors: []aggregate.SensorAggregate{
			{Bucket: b0, SensorID: "A", Latitude: 42.1, Longitude: -71.1, MeanConcentration: 150, Count: 2, ConcentrationCount: 2},
			{Bucket: b0, SensorID: "B", Latitude: 42.2, Longitude: -71.2, MeanConcentration: math.NaN(), Count: 1},
			{Bucket: b1, SensorID: "B", Latitude: 42.2, Longitude: -71.2, MeanConcentration: 900, Count: 1, ConcentrationCount: 1},
		},
		Wind: []aggregate.WindAggregate{
			{Bucket: b0, MeanWindU: 0, MeanWindV: 0, MeanWindSpeed: 0, MeanWindDirection: math.NaN(), Count: 3},
			{Bucket: b1, MeanWindU: -2, MeanWindV: 0, MeanWindSpeed: math.NaN(), MeanWindDirection: math.NaN(), Count: 1},
		},
	}
	locations := []readings.Location{{SensorID: "A", Label: "Orient Heights"}, {SensorID: "B"}}

	got := Build(result, locations)
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if got[0].Index != 1 || !got[0].Bucket.Equal(b0) || len(got[0].Markers) != 1 || got[0].Markers[0].Label != "Orient Heights" {
		t.Fatalf("unexpected first frame %+v", got[0])
	}
	if !got[0].Wind.Calm() {
		t.Fatalf("first frame wind should be calm: %+v", got[0].Wind)
	}
	second := got[1]
	if second.Index != 2 || second.Markers[0].Label != "B" {
		t.Fatalf("unexpected second frame %+v", second)
	}
	if second.Wind == nil || second.Wind.Speed != 2 || math.Abs(second.Wind.Direction-90) > 1e-9 {
		t.Fatalf("unexpected derived wind %+v", second.Wind)
	}
}
