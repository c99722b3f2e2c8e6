// Package frames defines the drawable content of each animation frame, the
// frame file naming scheme, and the batch job descriptor handed to external
// renderers.
package frames

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"ufpmap/internal/aggregate"
	"ufpmap/internal/readings"
)

// Pattern is the printf pattern of frame file names. Zero padding keeps the
// lexicographic order of names equal to the index order.
const Pattern = "frame_%05d.png"

// Glob matches every frame file in a directory.
const Glob = "frame_*.png"

// Marker is one sensor drawn on a frame.
type Marker struct {
	SensorID      string  `json:"sensor_id" validate:"required"`
	Label         string  `json:"label,omitempty"`
	Lon           float64 `json:"lon" validate:"gte=-180,lte=180"`
	Lat           float64 `json:"lat" validate:"gte=-90,lte=90"`
	Concentration float64 `json:"concentration" validate:"gte=0"`
}

// Wind is the map-wide wind vector of a frame in m/s.
type Wind struct {
	U         float64 `json:"u"`
	V         float64 `json:"v"`
	Speed     float64 `json:"speed" validate:"gte=0"`
	Direction float64 `json:"direction" validate:"gte=0,lt=360"`
}

// Calm reports whether the vector has no drawable magnitude.
func (w *Wind) Calm() bool {
	return w == nil || w.Speed <= 0 || (w.U == 0 && w.V == 0)
}

// Frame is everything drawn for one time bucket.
type Frame struct {
	Index   int       `json:"index" validate:"gte=1"`
	Bucket  time.Time `json:"bucket"`
	Markers []Marker  `json:"markers" validate:"dive"`
	Wind    *Wind     `json:"wind,omitempty"`
}

// FileName returns the file name of the frame with the given 1-based index.
func FileName(index int) string {
	return fmt.Sprintf(Pattern, index)
}

// Path joins dir and the frame's file name.
func (f Frame) Path(dir string) string {
	return filepath.Join(dir, FileName(f.Index))
}

// ParseFileName extracts the index from a frame file name.
func ParseFileName(name string) (int, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, "frame_") || !strings.HasSuffix(base, ".png") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(base, "frame_"), ".png")
	if len(digits) < 5 {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Build turns aggregates into frames, one per bucket in ascending order.
// Sensors whose bucket mean concentration is missing get no marker.
func Build(result aggregate.Result, locations []readings.Location) []Frame {
	labels := make(map[string]string, len(locations))
	for _, loc := range locations {
		label := loc.Label
		if label == "" {
			label = loc.SensorID
		}
		labels[loc.SensorID] = label
	}

	bySensorBucket := make(map[int64][]aggregate.SensorAggregate)
	for _, a := range result.Sensors {
		key := a.Bucket.UnixNano()
		bySensorBucket[key] = append(bySensorBucket[key], a)
	}
	winds := result.WindByBucket()

	buckets := aggregate.Buckets(result)
	out := make([]Frame, 0, len(buckets))
	for i, bucket := range buckets {
		key := bucket.UnixNano()
		frame := Frame{Index: i + 1, Bucket: bucket, Markers: []Marker{}}

		aggs := bySensorBucket[key]
		sort.Slice(aggs, func(a, b int) bool { return aggs[a].SensorID < aggs[b].SensorID })
		for _, a := range aggs {
			if !a.HasConcentration() {
				continue
			}
			label := labels[a.SensorID]
			if label == "" {
				label = a.SensorID
			}
			frame.Markers = append(frame.Markers, Marker{
				SensorID:      a.SensorID,
				Label:         label,
				Lon:           a.Longitude,
				Lat:           a.Latitude,
				Concentration: a.MeanConcentration,
			})
		}
		if w, ok := winds[key]; ok {
			frame.Wind = windFrom(w)
		}
		out = append(out, frame)
	}
	return out
}

func windFrom(w aggregate.WindAggregate) *Wind {
	if math.IsNaN(w.MeanWindU) || math.IsNaN(w.MeanWindV) {
		return nil
	}
	speed := w.MeanWindSpeed
	if math.IsNaN(speed) || speed < 0 {
		speed = math.Hypot(w.MeanWindU, w.MeanWindV)
	}
	dir := w.MeanWindDirection
	if math.IsNaN(dir) {
		dir = 0
		if w.MeanWindU != 0 || w.MeanWindV != 0 {
			dir = readings.DirectionFromComponents(w.MeanWindU, w.MeanWindV)
		}
	}
	if dir >= 360 {
		dir -= 360
	}
	return &Wind{U: w.MeanWindU, V: w.MeanWindV, Speed: speed, Direction: dir}
}
