package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Backend names accepted by render.backend.
const (
	BackendSequential = "sequential"
	BackendParallel   = "parallel"
	BackendExternal   = "external"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateData(); err != nil {
		return err
	}
	if err := c.validateSite(); err != nil {
		return err
	}
	if err := c.validateAggregation(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateBaseMap(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateData() error {
	if _, err := time.LoadLocation(c.Data.Timezone); err != nil {
		return fmt.Errorf("data.timezone %q is not a known time zone: %w", c.Data.Timezone, err)
	}
	return nil
}

func (c *Config) validateSite() error {
	if len(c.Site.Sensors) == 0 && c.Data.LocationsPath == "" {
		return errors.New("site.sensors must list at least one sensor when data.locations_path is empty")
	}
	seen := make(map[string]struct{}, len(c.Site.Sensors))
	for i, sensor := range c.Site.Sensors {
		if sensor.ID == "" {
			return fmt.Errorf("site.sensors[%d].id must be set", i)
		}
		if _, dup := seen[sensor.ID]; dup {
			return fmt.Errorf("site.sensors[%d].id %q is duplicated", i, sensor.ID)
		}
		seen[sensor.ID] = struct{}{}
		if sensor.Latitude < -90 || sensor.Latitude > 90 {
			return fmt.Errorf("site.sensors[%d].latitude must be between -90 and 90", i)
		}
		if sensor.Longitude < -180 || sensor.Longitude > 180 {
			return fmt.Errorf("site.sensors[%d].longitude must be between -180 and 180", i)
		}
	}
	if !c.Site.Extent.IsZero() {
		e := c.Site.Extent
		if e.LonMin >= e.LonMax {
			return errors.New("site.extent.lon_min must be less than site.extent.lon_max")
		}
		if e.LatMin >= e.LatMax {
			return errors.New("site.extent.lat_min must be less than site.extent.lat_max")
		}
	}
	return nil
}

func (c *Config) validateAggregation() error {
	if c.Aggregation.BucketMinutes <= 0 {
		return errors.New("aggregation.bucket_minutes must be positive")
	}
	if (24*60)%c.Aggregation.BucketMinutes != 0 {
		return errors.New("aggregation.bucket_minutes must divide a day evenly")
	}
	return nil
}

func (c *Config) validateRender() error {
	if err := ensurePositiveMap(map[string]int{
		"render.width":  c.Render.Width,
		"render.height": c.Render.Height,
	}); err != nil {
		return err
	}
	if !slices.Contains([]string{BackendSequential, BackendParallel, BackendExternal}, c.Render.Backend) {
		return fmt.Errorf("render.backend must be one of sequential, parallel, external (got %q)", c.Render.Backend)
	}
	if c.Render.Workers < 0 {
		return errors.New("render.workers must be >= 0")
	}
	if c.Render.MarkerMinPx <= 0 || c.Render.MarkerMaxPx < c.Render.MarkerMinPx {
		return errors.New("render.marker_min_px must be positive and not exceed render.marker_max_px")
	}
	if c.Render.ArrowScale <= 0 || c.Render.ArrowScale > 1 {
		return errors.New("render.arrow_scale must be in (0, 1]")
	}
	if c.Render.MaxWindSpeed <= 0 {
		return errors.New("render.max_wind_speed must be positive")
	}
	return nil
}

func (c *Config) validateBaseMap() error {
	if !c.BaseMap.Enabled {
		return nil
	}
	if c.BaseMap.Zoom < 1 || c.BaseMap.Zoom > 19 {
		return errors.New("basemap.zoom must be between 1 and 19")
	}
	if !strings.Contains(c.BaseMap.TileURL, "{z}") || !strings.Contains(c.BaseMap.TileURL, "{x}") || !strings.Contains(c.BaseMap.TileURL, "{y}") {
		return errors.New("basemap.tile_url must contain {z}, {x} and {y} placeholders")
	}
	if c.BaseMap.RequestsPerSecond <= 0 {
		return errors.New("basemap.requests_per_second must be positive")
	}
	if c.BaseMap.TimeoutSeconds <= 0 {
		return errors.New("basemap.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateVideo() error {
	if c.Video.SecondsPerFrame <= 0 {
		return errors.New("video.seconds_per_frame must be positive")
	}
	if strings.ContainsAny(c.Video.FileName, `/\`) {
		return errors.New("video.file_name must be a bare file name")
	}
	if c.Video.SoftwareCRF < 0 || c.Video.SoftwareCRF > 51 {
		return errors.New("video.software_crf must be between 0 and 51")
	}
	if c.Video.HardwareQuality < 0 || c.Video.HardwareQuality > 100 {
		return errors.New("video.hardware_quality must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
