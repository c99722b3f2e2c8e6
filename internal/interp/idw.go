// Package interp implements inverse-distance-weighted interpolation of sensor
// values across the map extent.
package interp

import (
	"math"

	"ufpmap/internal/geo"
)

// DefaultPower is the distance exponent used when none is configured.
const DefaultPower = 2.0

// Point is a sample value at a geographic position.
type Point struct {
	Lon   float64
	Lat   float64
	Value float64
}

// IDW estimates the value at (lon, lat). A query that coincides with a sample
// returns that sample. Samples with missing values are ignored; with no usable
// samples the result is NaN.
func IDW(points []Point, lon, lat, power float64) float64 {
	if power <= 0 {
		power = DefaultPower
	}
	var num, den float64
	for _, p := range points {
		if math.IsNaN(p.Value) {
			continue
		}
		d := math.Hypot(p.Lon-lon, p.Lat-lat)
		if d < 1e-12 {
			return p.Value
		}
		w := 1 / math.Pow(d, power)
		num += w * p.Value
		den += w
	}
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// Grid evaluates IDW at the center of each cell of a cols x rows grid laid
// over the extent. The result is row-major with row 0 at the northern edge.
func Grid(points []Point, extent geo.Extent, cols, rows int, power float64) []float64 {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	out := make([]float64, cols*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			lon, lat := extent.Unproject(float64(c)+0.5, float64(r)+0.5, float64(cols), float64(rows))
			out[r*cols+c] = IDW(points, lon, lat, power)
		}
	}
	return out
}
