package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	CacheDir  string `toml:"cache_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// Columns holds explicit source column names. Empty values fall back to the
// built-in candidate lists.
type Columns struct {
	Timestamp     string `toml:"timestamp"`
	SensorID      string `toml:"sensor_id"`
	Concentration string `toml:"concentration"`
	WindU         string `toml:"wind_u"`
	WindV         string `toml:"wind_v"`
	WindSpeed     string `toml:"wind_speed"`
	WindDirection string `toml:"wind_direction"`
}

// Data describes where sensor readings and locations come from.
type Data struct {
	Path          string  `toml:"path"`
	LocationsPath string  `toml:"locations_path"`
	Timezone      string  `toml:"timezone"`
	Columns       Columns `toml:"columns"`
}

// Sensor is one fixed monitoring site.
type Sensor struct {
	ID        string  `toml:"id"`
	Label     string  `toml:"label"`
	Latitude  float64 `toml:"latitude"`
	Longitude float64 `toml:"longitude"`
}

// Extent is an optional fixed map bounding box.
type Extent struct {
	LonMin float64 `toml:"lon_min"`
	LonMax float64 `toml:"lon_max"`
	LatMin float64 `toml:"lat_min"`
	LatMax float64 `toml:"lat_max"`
}

// IsZero reports whether no extent was configured.
func (e Extent) IsZero() bool {
	return e == Extent{}
}

// Site contains the monitoring network layout.
type Site struct {
	Name        string   `toml:"name"`
	DisplayName string   `toml:"display_name"`
	Padding     float64  `toml:"padding"`
	Extent      Extent   `toml:"extent"`
	Sensors     []Sensor `toml:"sensors"`
}

// Pollutant describes the measured quantity shown on the map.
type Pollutant struct {
	DisplayName string `toml:"display_name"`
	Unit        string `toml:"unit"`
	LegendTitle string `toml:"legend_title"`
}

// Aggregation contains time bucketing settings.
type Aggregation struct {
	BucketMinutes int `toml:"bucket_minutes"`
}

// Render contains frame composition and dispatch settings.
type Render struct {
	Width          int     `toml:"width"`
	Height         int     `toml:"height"`
	Backend        string  `toml:"backend"`
	Workers        int     `toml:"workers"`
	MarkerMinPx    float64 `toml:"marker_min_px"`
	MarkerMaxPx    float64 `toml:"marker_max_px"`
	ArrowScale     float64 `toml:"arrow_scale"`
	MaxWindSpeed   float64 `toml:"max_wind_speed"`
	Heatmap        bool    `toml:"heatmap"`
	HeatmapPower   float64 `toml:"heatmap_power"`
	RendererBinary string  `toml:"renderer_binary"`
	Title          string  `toml:"title"`
}

// BaseMap contains OpenStreetMap tile settings for the frame background.
type BaseMap struct {
	Enabled           bool    `toml:"enabled"`
	Zoom              int     `toml:"zoom"`
	TileURL           string  `toml:"tile_url"`
	UserAgent         string  `toml:"user_agent"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	Concurrency       int     `toml:"concurrency"`
}

// Video contains encoder settings.
type Video struct {
	SecondsPerFrame float64 `toml:"seconds_per_frame"`
	FileName        string  `toml:"file_name"`
	FFmpegBinary    string  `toml:"ffmpeg_binary"`
	FFprobeBinary   string  `toml:"ffprobe_binary"`
	HardwareEncoder string  `toml:"hardware_encoder"`
	HardwareQuality int     `toml:"hardware_quality"`
	SoftwareEncoder string  `toml:"software_encoder"`
	SoftwareCRF     int     `toml:"software_crf"`
	CleanupFrames   bool    `toml:"cleanup_frames"`
	Archive         bool    `toml:"archive"`
}

// Flights contains the departure lookup service settings.
type Flights struct {
	BaseURL        string `toml:"base_url"`
	Airport        string `toml:"airport"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics contains run metrics export settings.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Config encapsulates all configuration values for ufpmap.
//
// Configuration sections by subsystem:
//   - Paths: output, cache, state, and log directories
//   - Data: reading table, sensor location table, time zone, column overrides
//   - Site: sensor network and map extent
//   - Pollutant: display names and units
//   - Aggregation: bucket width
//   - Render: frame size, marker styling, dispatch backend
//   - BaseMap: OpenStreetMap tile background
//   - Video: frame rate and encoder policy
//   - Flights: departure lookup service
//   - Logging: log format and level
//   - Metrics: textfile export
type Config struct {
	Paths       Paths       `toml:"paths"`
	Data        Data        `toml:"data"`
	Site        Site        `toml:"site"`
	Pollutant   Pollutant   `toml:"pollutant"`
	Aggregation Aggregation `toml:"aggregation"`
	Render      Render      `toml:"render"`
	BaseMap     BaseMap     `toml:"basemap"`
	Video       Video       `toml:"video"`
	Flights     Flights     `toml:"flights"`
	Logging     Logging     `toml:"logging"`
	Metrics     Metrics     `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ufpmap/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ufpmap.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache, state, and log directories. The output
// directory is created by the pipeline once input validation has passed.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Location returns the time zone used to interpret naive timestamps and
// calendar dates.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Data.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BucketWidth returns the aggregation interval.
func (c *Config) BucketWidth() time.Duration {
	return time.Duration(c.Aggregation.BucketMinutes) * time.Minute
}

// FrameRate returns frames per second derived from seconds_per_frame.
func (c *Config) FrameRate() float64 {
	if c.Video.SecondsPerFrame <= 0 {
		return 1 / defaultSecondsPerFrame
	}
	return 1 / c.Video.SecondsPerFrame
}

// TileCacheDir returns the directory holding downloaded map tiles.
func (c *Config) TileCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "tiles")
}

// RunDatabasePath returns the run ledger location.
func (c *Config) RunDatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "ufpmap")
	}
	return "~/.cache/ufpmap"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
