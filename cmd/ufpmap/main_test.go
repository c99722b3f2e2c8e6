package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"ufpmap/internal/config"
	"ufpmap/internal/services"
)

func TestDatesListsEveryDay(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, _, err := runCLI(t, []string{"dates"}, env.configPath)
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	requireContains(t, out, "2025-08-01")
	requireContains(t, out, "2025-08-02")
	requireContains(t, out, "180")
	requireContains(t, out, "2 dates (UTC)")

	out, _, err = runCLI(t, []string{"dates", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("dates --json: %v", err)
	}
	var parsed []struct {
		Date     string
		Readings int
		Sensors  int
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(parsed) != 2 || parsed[1].Sensors != 2 || parsed[1].Readings != 12 {
		t.Fatalf("unexpected dates %+v", parsed)
	}
}

func TestDataFlagOverridesConfiguredPath(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	other := filepath.Join(env.baseDir, "other.csv")
	content := "timestamp,sensor_id,concentration\n2025-09-09 10:00:00,MOD-UFP-00007,12000\n"
	if err := os.WriteFile(other, []byte(content), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}

	out, _, err := runCLI(t, []string{"--data", other, "dates"}, env.configPath)
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	requireContains(t, out, "2025-09-09")
	if strings.Contains(out, "2025-08-01") {
		t.Fatalf("configured data should be ignored, got %q", out)
	}
}

func TestSummaryDescribesSensors(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, _, err := runCLI(t, []string{"summary", "--date", "2025-08-02"}, env.configPath)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	requireContains(t, out, "MOD-UFP-00007")
	requireContains(t, out, "MOD-UFP-00008")
	if strings.Contains(out, "MOD-UFP-00009") {
		t.Fatalf("sensor 9 has no readings on 2025-08-02, got %q", out)
	}
	// Sensor 8 on day two ranges 6,000..7,250 in 250 steps.
	requireContains(t, out, "7,250")

	_, _, err = runCLI(t, []string{"summary", "--date", "2025-07-01"}, env.configPath)
	if !errors.Is(err, services.ErrNoData) {
		t.Fatalf("expected ErrNoData for empty date, got %v", err)
	}
	if services.ExitCode(err) != 2 {
		t.Fatalf("exit code = %d", services.ExitCode(err))
	}
}

func TestRenderThenListRuns(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, _, err := runCLI(t, []string{"render", "--date", "2025-08-01", "--bucket-minutes", "10", "--cleanup"}, env.configPath)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	requireContains(t, out, "== 2025-08-01 ==")
	requireContains(t, out, "6 from 6 buckets (sequential)")
	requireContains(t, out, "hevc_videotoolbox")
	requireContains(t, out, "Frames removed")

	video := filepath.Join(env.cfg.Paths.OutputDir, "2025-08-01", "animation.mp4")
	if _, err := os.Stat(video); err != nil {
		t.Fatalf("expected video at %s: %v", video, err)
	}

	out, _, err = runCLI(t, []string{"runs"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "2025-08-01")
	requireContains(t, out, "cleaned")
	requireContains(t, out, filepath.Join("2025-08-01", "animation.mp4"))

	out, _, err = runCLI(t, []string{"runs", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("runs --json: %v", err)
	}
	var runs []struct {
		Date       string `json:"date"`
		Status     string `json:"status"`
		FrameCount int    `json:"frame_count"`
	}
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != "cleaned" || runs[0].FrameCount != 6 {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestRenderJSONAndFailedRunsFilter(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, _, err := runCLI(t, []string{"render", "--all-dates", "--json", "--fps", "4"}, env.configPath)
	if err != nil {
		t.Fatalf("render --all-dates: %v", err)
	}
	var summaries []renderSummaryView
	if err := json.Unmarshal([]byte(out), &summaries); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d", len(summaries))
	}
	// Day two has one reading every ten minutes, so only six buckets carry data.
	if summaries[0].Frames != 12 || summaries[1].Frames != 6 {
		t.Fatalf("frames = %d, %d", summaries[0].Frames, summaries[1].Frames)
	}

	_, _, err = runCLI(t, []string{"render", "--date", "2025-07-01"}, env.configPath)
	if !errors.Is(err, services.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}

	out, _, err = runCLI(t, []string{"runs", "--failed"}, env.configPath)
	if err != nil {
		t.Fatalf("runs --failed: %v", err)
	}
	requireContains(t, out, "2025-07-01")
	requireContains(t, out, "no_data")
	if strings.Contains(out, "2025-08-01") {
		t.Fatalf("successful runs should be filtered, got %q", out)
	}
}

func TestRenderCombinedWritesOneVideo(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, _, err := runCLI(t, []string{"render", "--all-dates", "--combined", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("render --combined: %v", err)
	}
	var summaries []renderSummaryView
	if err := json.Unmarshal([]byte(out), &summaries); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want one combined video", len(summaries))
	}
	s := summaries[0]
	if s.Frames != 18 || s.Date != "2025-08-01_2025-08-02" || len(s.Dates) != 2 {
		t.Fatalf("combined summary = %+v", s)
	}
	if filepath.Base(s.Output) != s.Date {
		t.Fatalf("output dir = %s", s.Output)
	}
}

func TestRenderFlagValidation(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	cases := []struct {
		name string
		args []string
		code int
	}{
		{"no date", []string{"render"}, 2},
		{"malformed date", []string{"render", "--date", "08/01/2025"}, 2},
		{"bad fps", []string{"render", "--date", "2025-08-01", "--fps", "0"}, 2},
		{"bad bucket", []string{"render", "--date", "2025-08-01", "--bucket-minutes", "7"}, 5},
		{"bad backend", []string{"render", "--date", "2025-08-01", "--backend", "gpu"}, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := runCLI(t, tc.args, env.configPath)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := services.ExitCode(err); got != tc.code {
				t.Fatalf("exit code = %d, want %d (err %v)", got, tc.code, err)
			}
		})
	}
}

func TestStatusReportsSections(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, _, _ := runCLI(t, []string{"status"}, env.configPath)
	for _, want := range []string{"== Paths ==", "== Dependencies ==", "== Encoders ==", "== Runs ==", "FFmpeg", "Ready (command: ffmpeg)", "Reading table"} {
		requireContains(t, out, want)
	}
	// The stub ffmpeg lists no encoders.
	requireContains(t, out, "hevc_videotoolbox unavailable")
}

func TestFlightsListsDepartures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/flights/departure" || r.URL.Query().Get("airport") != "KBOS" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("begin") != "1754006400" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"icao24":"a1b2c3","callsign":"JBU123  ","firstSeen":1754010000,"lastSeen":1754013600,"estDepartureAirport":"KBOS","estArrivalAirport":"KJFK"}]`))
	}))
	defer srv.Close()

	env := setupCLITestEnv(t, func(cfg *config.Config) {
		cfg.Flights.BaseURL = srv.URL
		cfg.Flights.Airport = "kbos"
	})

	out, _, err := runCLI(t, []string{"flights", "--date", "2025-08-01", "--from", "00:00", "--to", "02:00"}, env.configPath)
	if err != nil {
		t.Fatalf("flights: %v", err)
	}
	requireContains(t, out, "JBU123")
	requireContains(t, out, "01:00:00")
	requireContains(t, out, "KJFK")
	requireContains(t, out, "1 departures from KBOS")

	_, _, err = runCLI(t, []string{"flights"}, env.configPath)
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput without a window, got %v", err)
	}
}
