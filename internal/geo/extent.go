// Package geo holds the map extent and the projections used to place sensors
// on frames and to fetch slippy-map tiles.
package geo

import (
	"errors"
	"fmt"
	"math"

	"ufpmap/internal/config"
	"ufpmap/internal/readings"
)

// MinPaddingFraction is the smallest padding applied around the sensors,
// as a fraction of their spread.
const MinPaddingFraction = 0.05

// Extent is a geographic bounding box in degrees.
type Extent struct {
	LonMin float64 `json:"lon_min" validate:"gte=-180,lte=180"`
	LonMax float64 `json:"lon_max" validate:"gte=-180,lte=180,gtfield=LonMin"`
	LatMin float64 `json:"lat_min" validate:"gte=-85,lte=85"`
	LatMax float64 `json:"lat_max" validate:"gte=-85,lte=85,gtfield=LatMin"`
}

// FromConfig converts a configured extent.
func FromConfig(e config.Extent) Extent {
	return Extent{LonMin: e.LonMin, LonMax: e.LonMax, LatMin: e.LatMin, LatMax: e.LatMax}
}

// FromLocations bounds the sensors and pads each side by the larger of padding
// degrees and MinPaddingFraction of the spread on that axis.
func FromLocations(locations []readings.Location, padding float64) (Extent, error) {
	if len(locations) == 0 {
		return Extent{}, errors.New("no sensor locations to derive a map extent from")
	}
	e := Extent{LonMin: math.Inf(1), LonMax: math.Inf(-1), LatMin: math.Inf(1), LatMax: math.Inf(-1)}
	for _, loc := range locations {
		e.LonMin = math.Min(e.LonMin, loc.Longitude)
		e.LonMax = math.Max(e.LonMax, loc.Longitude)
		e.LatMin = math.Min(e.LatMin, loc.Latitude)
		e.LatMax = math.Max(e.LatMax, loc.Latitude)
	}
	padLon := math.Max(padding, (e.LonMax-e.LonMin)*MinPaddingFraction)
	padLat := math.Max(padding, (e.LatMax-e.LatMin)*MinPaddingFraction)
	e.LonMin -= padLon
	e.LonMax += padLon
	e.LatMin -= padLat
	e.LatMax += padLat
	if err := e.Validate(); err != nil {
		return Extent{}, err
	}
	return e, nil
}

// Resolve returns the configured extent when set, otherwise one derived from
// the sensor locations.
func Resolve(cfg *config.Config, locations []readings.Location) (Extent, error) {
	if cfg != nil && !cfg.Site.Extent.IsZero() {
		e := FromConfig(cfg.Site.Extent)
		return e, e.Validate()
	}
	padding := 0.0
	if cfg != nil {
		padding = cfg.Site.Padding
	}
	return FromLocations(locations, padding)
}

// Validate reports whether the extent spans a positive area.
func (e Extent) Validate() error {
	for _, v := range []float64{e.LonMin, e.LonMax, e.LatMin, e.LatMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("extent has non-finite bounds")
		}
	}
	if e.LonMax <= e.LonMin {
		return fmt.Errorf("extent longitude range [%g, %g] is empty", e.LonMin, e.LonMax)
	}
	if e.LatMax <= e.LatMin {
		return fmt.Errorf("extent latitude range [%g, %g] is empty", e.LatMin, e.LatMax)
	}
	if e.LatMin < -85 || e.LatMax > 85 {
		return errors.New("extent exceeds web-mercator latitude limits")
	}
	return nil
}

// Center returns the geographic center as (lon, lat).
func (e Extent) Center() (float64, float64) {
	return (e.LonMin + e.LonMax) / 2, (e.LatMin + e.LatMax) / 2
}

// LonSpan is the width of the extent in degrees.
func (e Extent) LonSpan() float64 { return e.LonMax - e.LonMin }

// LatSpan is the height of the extent in degrees.
func (e Extent) LatSpan() float64 { return e.LatMax - e.LatMin }

// Contains reports whether the point lies inside the extent.
func (e Extent) Contains(lon, lat float64) bool {
	return lon >= e.LonMin && lon <= e.LonMax && lat >= e.LatMin && lat <= e.LatMax
}

// Project maps a coordinate linearly onto a width x height pixel rectangle
// with the origin at the top-left corner.
func (e Extent) Project(lon, lat, width, height float64) (x, y float64) {
	x = (lon - e.LonMin) / e.LonSpan() * width
	y = (1 - (lat-e.LatMin)/e.LatSpan()) * height
	return x, y
}

// Unproject is the inverse of Project.
func (e Extent) Unproject(x, y, width, height float64) (lon, lat float64) {
	lon = e.LonMin + x/width*e.LonSpan()
	lat = e.LatMin + (1-y/height)*e.LatSpan()
	return lon, lat
}
