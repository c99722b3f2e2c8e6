package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeData(); err != nil {
		return err
	}
	c.normalizeSite()
	c.normalizePollutant()
	c.normalizeRender()
	c.normalizeBaseMap()
	c.normalizeVideo()
	c.normalizeFlights()
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(strings.TrimSpace(c.Paths.CacheDir)); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeData() error {
	var err error
	c.Data.Path = strings.TrimSpace(c.Data.Path)
	if c.Data.Path == "" {
		if value, ok := os.LookupEnv("UFPMAP_DATA"); ok {
			c.Data.Path = strings.TrimSpace(value)
		}
	}
	if c.Data.Path, err = expandPath(c.Data.Path); err != nil {
		return fmt.Errorf("data.path: %w", err)
	}
	if c.Data.LocationsPath, err = expandPath(strings.TrimSpace(c.Data.LocationsPath)); err != nil {
		return fmt.Errorf("data.locations_path: %w", err)
	}
	c.Data.Timezone = strings.TrimSpace(c.Data.Timezone)
	if c.Data.Timezone == "" {
		c.Data.Timezone = defaultTimezone
	}
	cols := &c.Data.Columns
	for _, field := range []*string{
		&cols.Timestamp, &cols.SensorID, &cols.Concentration,
		&cols.WindU, &cols.WindV, &cols.WindSpeed, &cols.WindDirection,
	} {
		*field = strings.TrimSpace(*field)
	}
	return nil
}

func (c *Config) normalizeSite() {
	c.Site.Name = strings.ToLower(strings.TrimSpace(c.Site.Name))
	c.Site.DisplayName = strings.TrimSpace(c.Site.DisplayName)
	if c.Site.DisplayName == "" {
		c.Site.DisplayName = c.Site.Name
	}
	if c.Site.Padding <= 0 {
		c.Site.Padding = defaultSitePadding
	}
	for i := range c.Site.Sensors {
		c.Site.Sensors[i].ID = strings.TrimSpace(c.Site.Sensors[i].ID)
		c.Site.Sensors[i].Label = strings.TrimSpace(c.Site.Sensors[i].Label)
	}
}

func (c *Config) normalizePollutant() {
	c.Pollutant.DisplayName = strings.TrimSpace(c.Pollutant.DisplayName)
	if c.Pollutant.DisplayName == "" {
		c.Pollutant.DisplayName = defaultPollutantName
	}
	c.Pollutant.Unit = strings.TrimSpace(c.Pollutant.Unit)
	if c.Pollutant.Unit == "" {
		c.Pollutant.Unit = defaultPollutantUnit
	}
	c.Pollutant.LegendTitle = strings.TrimSpace(c.Pollutant.LegendTitle)
	if c.Pollutant.LegendTitle == "" {
		c.Pollutant.LegendTitle = defaultLegendTitle
	}
}

func (c *Config) normalizeRender() {
	c.Render.Backend = strings.ToLower(strings.TrimSpace(c.Render.Backend))
	if c.Render.Backend == "" {
		c.Render.Backend = defaultBackend
	}
	c.Render.RendererBinary = strings.TrimSpace(c.Render.RendererBinary)
	if c.Render.RendererBinary == "" {
		c.Render.RendererBinary = defaultRendererBinary
	}
	c.Render.Title = strings.TrimSpace(c.Render.Title)
	if c.Render.HeatmapPower <= 0 {
		c.Render.HeatmapPower = defaultHeatmapPower
	}
}

func (c *Config) normalizeBaseMap() {
	c.BaseMap.TileURL = strings.TrimSpace(c.BaseMap.TileURL)
	if c.BaseMap.TileURL == "" {
		c.BaseMap.TileURL = defaultTileURL
	}
	c.BaseMap.UserAgent = strings.TrimSpace(c.BaseMap.UserAgent)
	if c.BaseMap.UserAgent == "" {
		c.BaseMap.UserAgent = defaultTileUserAgent
	}
	if c.BaseMap.Concurrency <= 0 {
		c.BaseMap.Concurrency = defaultTileConcurrency
	}
}

func (c *Config) normalizeVideo() {
	c.Video.FileName = strings.TrimSpace(c.Video.FileName)
	if c.Video.FileName == "" {
		c.Video.FileName = defaultVideoFileName
	}
	c.Video.FFmpegBinary = strings.TrimSpace(c.Video.FFmpegBinary)
	if c.Video.FFmpegBinary == "" {
		c.Video.FFmpegBinary = defaultFFmpegBinary
	}
	c.Video.FFprobeBinary = strings.TrimSpace(c.Video.FFprobeBinary)
	if c.Video.FFprobeBinary == "" {
		c.Video.FFprobeBinary = defaultFFprobeBinary
	}
	c.Video.HardwareEncoder = strings.TrimSpace(c.Video.HardwareEncoder)
	c.Video.SoftwareEncoder = strings.TrimSpace(c.Video.SoftwareEncoder)
	if c.Video.SoftwareEncoder == "" {
		c.Video.SoftwareEncoder = defaultSoftwareEncoder
	}
}

func (c *Config) normalizeFlights() {
	c.Flights.BaseURL = strings.TrimRight(strings.TrimSpace(c.Flights.BaseURL), "/")
	if c.Flights.BaseURL == "" {
		c.Flights.BaseURL = defaultFlightsBaseURL
	}
	c.Flights.Airport = strings.ToUpper(strings.TrimSpace(c.Flights.Airport))
	if c.Flights.Airport == "" {
		c.Flights.Airport = defaultFlightsAirport
	}
	if c.Flights.Username == "" {
		if value, ok := os.LookupEnv("OPENSKY_USERNAME"); ok {
			c.Flights.Username = strings.TrimSpace(value)
		}
	}
	if c.Flights.Password == "" {
		if value, ok := os.LookupEnv("OPENSKY_PASSWORD"); ok {
			c.Flights.Password = value
		}
	}
}

func (c *Config) normalizeMetrics() error {
	var err error
	if c.Metrics.TextfilePath, err = expandPath(strings.TrimSpace(c.Metrics.TextfilePath)); err != nil {
		return fmt.Errorf("metrics.textfile_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
