package config

const (
	defaultOutputDir       = "~/ufpmap/output"
	defaultStateDir        = "~/.local/share/ufpmap"
	defaultLogDir          = "~/.local/share/ufpmap/logs"
	defaultTimezone        = "America/New_York"
	defaultSiteName        = "eastie"
	defaultSiteDisplayName = "East Boston"
	defaultSitePadding     = 0.015
	defaultPollutantName   = "Ultrafine Particle Concentration"
	defaultPollutantUnit   = "p/cm³"
	defaultLegendTitle     = "UFP Concentration"
	defaultBucketMinutes   = 5
	defaultWidth           = 1800
	defaultHeight          = 1200
	defaultBackend         = "parallel"
	defaultMarkerMinPx     = 20
	defaultMarkerMaxPx     = 70
	defaultArrowScale      = 0.4
	defaultMaxWindSpeed    = 6.0
	defaultHeatmapPower    = 2.0
	defaultRendererBinary  = "ufpframes"
	defaultBaseMapZoom     = 15
	defaultTileURL         = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	defaultTileUserAgent   = "ufpmap/1.0 (air quality research)"
	defaultTileRate        = 4.0
	defaultTileTimeout     = 10
	defaultTileConcurrency = 4
	defaultSecondsPerFrame = 0.5
	defaultVideoFileName   = "animation.mp4"
	defaultFFmpegBinary    = "ffmpeg"
	defaultFFprobeBinary   = "ffprobe"
	defaultHardwareEncoder = "hevc_videotoolbox"
	defaultHardwareQuality = 65
	defaultSoftwareEncoder = "libx264"
	defaultSoftwareCRF     = 18
	defaultFlightsBaseURL  = "https://opensky-network.org/api"
	defaultFlightsAirport  = "KBOS"
	defaultFlightsTimeout  = 30
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

func defaultSensors() []Sensor {
	return []Sensor{
		{ID: "MOD-UFP-00007", Label: "Sensor 7", Latitude: 42.36148, Longitude: -70.97251},
		{ID: "MOD-UFP-00008", Label: "Sensor 8", Latitude: 42.38407, Longitude: -71.00227},
		{ID: "MOD-UFP-00009", Label: "Sensor 9", Latitude: 42.36407, Longitude: -71.02910},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			CacheDir:  defaultCacheDir(),
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		Data: Data{
			Timezone: defaultTimezone,
		},
		Site: Site{
			Name:        defaultSiteName,
			DisplayName: defaultSiteDisplayName,
			Padding:     defaultSitePadding,
			Sensors:     defaultSensors(),
		},
		Pollutant: Pollutant{
			DisplayName: defaultPollutantName,
			Unit:        defaultPollutantUnit,
			LegendTitle: defaultLegendTitle,
		},
		Aggregation: Aggregation{
			BucketMinutes: defaultBucketMinutes,
		},
		Render: Render{
			Width:          defaultWidth,
			Height:         defaultHeight,
			Backend:        defaultBackend,
			MarkerMinPx:    defaultMarkerMinPx,
			MarkerMaxPx:    defaultMarkerMaxPx,
			ArrowScale:     defaultArrowScale,
			MaxWindSpeed:   defaultMaxWindSpeed,
			HeatmapPower:   defaultHeatmapPower,
			RendererBinary: defaultRendererBinary,
		},
		BaseMap: BaseMap{
			Enabled:           true,
			Zoom:              defaultBaseMapZoom,
			TileURL:           defaultTileURL,
			UserAgent:         defaultTileUserAgent,
			RequestsPerSecond: defaultTileRate,
			TimeoutSeconds:    defaultTileTimeout,
			Concurrency:       defaultTileConcurrency,
		},
		Video: Video{
			SecondsPerFrame: defaultSecondsPerFrame,
			FileName:        defaultVideoFileName,
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			HardwareEncoder: defaultHardwareEncoder,
			HardwareQuality: defaultHardwareQuality,
			SoftwareEncoder: defaultSoftwareEncoder,
			SoftwareCRF:     defaultSoftwareCRF,
		},
		Flights: Flights{
			BaseURL:        defaultFlightsBaseURL,
			Airport:        defaultFlightsAirport,
			TimeoutSeconds: defaultFlightsTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
