package geo

import "math"

// TileSize is the edge length of a slippy-map tile in pixels.
const TileSize = 256

// MercatorPixel returns the global web-mercator pixel coordinate of a point
// at the given zoom level.
func MercatorPixel(lat, lon float64, zoom int) (px, py float64) {
	scale := float64(TileSize) * math.Exp2(float64(zoom))
	px = (lon + 180) / 360 * scale
	rad := lat * math.Pi / 180
	py = (1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2 * scale
	return px, py
}

// TileXY returns the tile containing the point at the given zoom level.
func TileXY(lat, lon float64, zoom int) (x, y int) {
	px, py := MercatorPixel(lat, lon, zoom)
	n := int(math.Exp2(float64(zoom)))
	x = clampTile(int(math.Floor(px/TileSize)), n)
	y = clampTile(int(math.Floor(py/TileSize)), n)
	return x, y
}

func clampTile(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// TileRange lists the tile bounds covering the extent, inclusive.
type TileRange struct {
	Zoom       int
	MinX, MaxX int
	MinY, MaxY int
}

// Count is the number of tiles in the range.
func (r TileRange) Count() int {
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// Tiles returns the tile range covering e at zoom.
func (e Extent) Tiles(zoom int) TileRange {
	minX, minY := TileXY(e.LatMax, e.LonMin, zoom)
	maxX, maxY := TileXY(e.LatMin, e.LonMax, zoom)
	return TileRange{Zoom: zoom, MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY}
}
