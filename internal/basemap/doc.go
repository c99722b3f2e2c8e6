// Package basemap builds the street-map background for animation frames from
// OpenStreetMap-compatible slippy tiles.
//
// Tiles are cached on disk under the tile cache directory and the stitched,
// cropped, and scaled result is cached as basemap_<hash>.png keyed by extent,
// zoom, size, and tile source. Requests are paced with a token bucket and
// guarded by a circuit breaker so an unreachable tile server fails fast.
// A tile that cannot be fetched is replaced by a grey square; only a build in
// which no tile at all could be obtained is reported as an error.
package basemap
