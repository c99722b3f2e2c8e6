package readings

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"ufpmap/internal/config"
	"ufpmap/internal/services"
)

func sampleReadings() []Reading {
	nan := math.NaN()
	return []Reading{
		{SensorID: "A", Timestamp: time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC), Concentration: 100, WindSpeed: 2},
		{SensorID: "A", Timestamp: time.Date(2025, 8, 1, 10, 2, 0, 0, time.UTC), Concentration: 200, WindSpeed: nan},
		{SensorID: "B", Timestamp: time.Date(2025, 8, 1, 23, 59, 0, 0, time.UTC), Concentration: nan, WindSpeed: 4},
		{SensorID: "Z", Timestamp: time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC), Concentration: 50, WindSpeed: nan},
	}
}

func TestFilterDate(t *testing.T) {
	got, err := FilterDate(sampleReadings(), "2025-08-01", time.UTC)
	if err != nil {
		t.Fatalf("FilterDate: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d readings, want 3", len(got))
	}

	_, err = FilterDate(sampleReadings(), "2025-09-01", time.UTC)
	if !errors.Is(err, services.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if err.Error() != "no data: filter: date: no readings for 2025-09-01" {
		t.Fatalf("unexpected message %q", err)
	}

	if _, err := FilterDate(sampleReadings(), "08/01/2025", time.UTC); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput for malformed date, got %v", err)
	}
}

func TestFilterDateUsesLocalCalendar(t *testing.T) {
	loc := time.FixedZone("EDT", -4*3600)
	got, err := FilterDate(sampleReadings(), "2025-08-01", loc)
	if err != nil {
		t.Fatalf("FilterDate: %v", err)
	}
	// 2025-08-02T00:00Z is still the evening of Aug 1 at UTC-4.
	if len(got) != 4 {
		t.Fatalf("got %d readings, want 4", len(got))
	}
}

func TestJoinKeepsReadingsWithoutConcentration(t *testing.T) {
	locations := []Location{{SensorID: "A", Latitude: 42.37, Longitude: -71.03}, {SensorID: "B", Latitude: 42.38, Longitude: -71.02}}
	got, err := Join(sampleReadings(), locations)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d joined readings, want 3", len(got))
	}
	if got[2].SensorID != "B" || got[2].Latitude != 42.38 {
		t.Fatalf("unexpected join result %+v", got[2])
	}
	if unknown := UnknownSensors(sampleReadings(), locations); len(unknown) != 1 || unknown[0] != "Z" {
		t.Fatalf("UnknownSensors = %v", unknown)
	}

	if _, err := Join(sampleReadings(), nil); !errors.Is(err, services.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestLoadLocations(t *testing.T) {
	path := writeFile(t, "sensors.csv", "sensor_id,latitude,longitude,label\nA,42.1,-71.1,Airport\nB,42.2,-71.2,\n")
	got, err := LoadLocations(path)
	if err != nil {
		t.Fatalf("LoadLocations: %v", err)
	}
	if len(got) != 2 || got[0].Label != "Airport" || got[1].Longitude != -71.2 {
		t.Fatalf("unexpected locations %+v", got)
	}

	dup := writeFile(t, "dup.csv", "sn,lat,lon\nA,1,2\nA,3,4\n")
	if _, err := LoadLocations(dup); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput for duplicates, got %v", err)
	}

	if _, err := LoadLocations(filepath.Join(t.TempDir(), "missing.csv")); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput for missing file, got %v", err)
	}
}

func TestResolveLocationsDefaultsToConfiguredSensors(t *testing.T) {
	cfg := config.Default()
	got, err := ResolveLocations(&cfg)
	if err != nil {
		t.Fatalf("ResolveLocations: %v", err)
	}
	if len(got) != len(cfg.Site.Sensors) {
		t.Fatalf("got %d locations, want %d", len(got), len(cfg.Site.Sensors))
	}
}

func TestAvailableDatesAndSummary(t *testing.T) {
	dates := AvailableDates(sampleReadings(), time.UTC)
	if len(dates) != 2 || dates[0].Date != "2025-08-01" || dates[0].Readings != 3 || dates[0].Sensors != 2 {
		t.Fatalf("unexpected dates %+v", dates)
	}

	summary := Summarize(sampleReadings())
	if len(summary) != 3 {
		t.Fatalf("got %d sensors, want 3", len(summary))
	}
	a := summary[0]
	if a.SensorID != "A" || a.Readings != 2 || a.Mean != 150 || a.Median != 150 || a.Min != 100 || a.Max != 200 {
		t.Fatalf("unexpected summary for A: %+v", a)
	}
	if a.MeanWindSpeed != 2 {
		t.Fatalf("mean wind = %v, want 2", a.MeanWindSpeed)
	}
	if b := summary[1]; b.WithConcentration != 0 || !math.IsNaN(b.Mean) {
		t.Fatalf("expected NaN stats for B, got %+v", b)
	}
}
