package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"ufpmap/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("UFPMAP_DATA", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(tempHome, "ufpmap", "output"); cfg.Paths.OutputDir != want {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, want)
	}
	if want := filepath.Join(tempHome, ".cache", "ufpmap"); cfg.Paths.CacheDir != want {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Paths.CacheDir, want)
	}
	if cfg.Render.Backend != config.BackendParallel {
		t.Fatalf("unexpected backend: %q", cfg.Render.Backend)
	}
	if len(cfg.Site.Sensors) != 3 {
		t.Fatalf("expected default sensor network, got %d sensors", len(cfg.Site.Sensors))
	}
	if cfg.BucketWidth() != 5*time.Minute {
		t.Fatalf("unexpected bucket width: %v", cfg.BucketWidth())
	}
	if cfg.FrameRate() != 2 {
		t.Fatalf("expected 2 fps from 0.5 seconds per frame, got %v", cfg.FrameRate())
	}
	if cfg.RunDatabasePath() != filepath.Join(cfg.Paths.StateDir, "runs.db") {
		t.Fatalf("unexpected run database path %q", cfg.RunDatabasePath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "ufpmap.toml")

	custom := struct {
		Paths struct {
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		Aggregation struct {
			BucketMinutes int `toml:"bucket_minutes"`
		} `toml:"aggregation"`
		Render struct {
			Backend    string  `toml:"backend"`
			ArrowScale float64 `toml:"arrow_scale"`
		} `toml:"render"`
	}{}
	custom.Paths.OutputDir = filepath.Join(tempDir, "frames")
	custom.Aggregation.BucketMinutes = 30
	custom.Render.Backend = " Sequential "
	custom.Render.ArrowScale = 0.15

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.OutputDir != custom.Paths.OutputDir {
		t.Fatalf("unexpected output dir %q", cfg.Paths.OutputDir)
	}
	if cfg.BucketWidth() != 30*time.Minute {
		t.Fatalf("unexpected bucket width %v", cfg.BucketWidth())
	}
	if cfg.Render.Backend != config.BackendSequential {
		t.Fatalf("expected normalized backend, got %q", cfg.Render.Backend)
	}
	if cfg.Render.ArrowScale != 0.15 {
		t.Fatalf("unexpected arrow scale %v", cfg.Render.ArrowScale)
	}
}

func TestEnvVarFillsDataPathAndCredentials(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	dataPath := filepath.Join(tempDir, "readings.csv")
	t.Setenv("UFPMAP_DATA", dataPath)
	t.Setenv("OPENSKY_USERNAME", " analyst ")
	t.Setenv("OPENSKY_PASSWORD", "secret")

	cfg, _, _, err := config.Load(filepath.Join(tempDir, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Data.Path != dataPath {
		t.Fatalf("expected data path from env, got %q", cfg.Data.Path)
	}
	if cfg.Flights.Username != "analyst" || cfg.Flights.Password != "secret" {
		t.Fatalf("unexpected flight credentials %q/%q", cfg.Flights.Username, cfg.Flights.Password)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[render]") {
		t.Fatalf("sample config missing render section")
	}

	cfg := config.Default()
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if len(cfg.Site.Sensors) != 3 {
		t.Fatalf("expected sample to define three sensors, got %d", len(cfg.Site.Sensors))
	}
	if cfg.Video.HardwareEncoder != "hevc_videotoolbox" {
		t.Fatalf("unexpected hardware encoder %q", cfg.Video.HardwareEncoder)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"backend", func(c *config.Config) { c.Render.Backend = "gpu" }, "render.backend"},
		{"bucket", func(c *config.Config) { c.Aggregation.BucketMinutes = 7 }, "aggregation.bucket_minutes"},
		{"markers", func(c *config.Config) { c.Render.MarkerMaxPx = 1 }, "render.marker_min_px"},
		{"arrow", func(c *config.Config) { c.Render.ArrowScale = 1.5 }, "render.arrow_scale"},
		{"width", func(c *config.Config) { c.Render.Width = 0 }, "render.width"},
		{"sensor dup", func(c *config.Config) { c.Site.Sensors[1].ID = c.Site.Sensors[0].ID }, "duplicated"},
		{"extent", func(c *config.Config) {
			c.Site.Extent = config.Extent{LonMin: 1, LonMax: 0, LatMin: 0, LatMax: 1}
		}, "site.extent.lon_min"},
		{"zoom", func(c *config.Config) { c.BaseMap.Zoom = 25 }, "basemap.zoom"},
		{"video name", func(c *config.Config) { c.Video.FileName = "dir/out.mp4" }, "video.file_name"},
		{"timezone", func(c *config.Config) { c.Data.Timezone = "Mars/Olympus" }, "data.timezone"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
