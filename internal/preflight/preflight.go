package preflight

import (
	"context"

	"ufpmap/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for the given config. Network checks
// are opt-in because render runs with a cached base map never need them.
func RunAll(ctx context.Context, cfg *config.Config, network bool) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	if cfg.Data.Path != "" {
		results = append(results, CheckDataFile("Reading table", cfg.Data.Path))
	}
	if cfg.Data.LocationsPath != "" {
		results = append(results, CheckDataFile("Sensor locations", cfg.Data.LocationsPath))
	}
	results = append(results,
		CheckWritableTarget("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	)

	if network {
		if cfg.BaseMap.Enabled {
			results = append(results, CheckHTTPReachable(ctx, "Tile server", TileProbeURL(cfg.BaseMap.TileURL)))
		}
		results = append(results, CheckHTTPReachable(ctx, "Flight service", cfg.Flights.BaseURL))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
