package aggregate

import (
	"fmt"
	"math"
	"sort"
	"time"

	"ufpmap/internal/readings"
)

// SensorAggregate is the mean of one sensor's readings within one bucket.
type SensorAggregate struct {
	Bucket             time.Time
	SensorID           string
	Latitude           float64
	Longitude          float64
	MeanConcentration  float64
	MeanWindU          float64
	MeanWindV          float64
	MeanWindSpeed      float64
	Count              int
	ConcentrationCount int
}

// HasConcentration reports whether at least one reading carried a concentration.
func (a SensorAggregate) HasConcentration() bool {
	return !math.IsNaN(a.MeanConcentration)
}

// WindAggregate is the map-wide wind vector of one bucket, averaged over every
// reading in the bucket regardless of sensor.
type WindAggregate struct {
	Bucket            time.Time
	MeanWindU         float64
	MeanWindV         float64
	MeanWindSpeed     float64
	MeanWindDirection float64
	Count             int
}

// Result holds both aggregate tables for one run.
type Result struct {
	Width   time.Duration
	Sensors []SensorAggregate
	Wind    []WindAggregate
}

// Floor returns the start of the half-open bucket containing t. Buckets are
// aligned to the Unix epoch, which also holds for instants before it.
func Floor(t time.Time, width time.Duration) time.Time {
	if width <= 0 {
		return t
	}
	ns := t.UnixNano()
	w := int64(width)
	q := ns / w
	if ns%w != 0 && ns < 0 {
		q--
	}
	return time.Unix(0, q*w).In(t.Location())
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	if math.IsNaN(v) {
		return
	}
	m.sum += v
	m.n++
}

func (m mean) value() float64 {
	if m.n == 0 {
		return math.NaN()
	}
	return m.sum / float64(m.n)
}

type sensorKey struct {
	bucket int64
	sensor string
}

type sensorAcc struct {
	bucket        time.Time
	lat, lon      float64
	conc, u, v, s mean
	count         int
}

type windAcc struct {
	bucket   time.Time
	u, v, s  mean
	sin, cos mean
	count    int
}

// Aggregate buckets readings by width. Readings are accumulated in input
// order, so identical input yields bit-identical output.
func Aggregate(rs []readings.Located, width time.Duration) (Result, error) {
	if width <= 0 {
		return Result{}, fmt.Errorf("bucket width must be positive, got %s", width)
	}
	sensors := make(map[sensorKey]*sensorAcc)
	winds := make(map[int64]*windAcc)

	for _, r := range rs {
		bucket := Floor(r.Timestamp, width)
		key := sensorKey{bucket: bucket.UnixNano(), sensor: r.SensorID}

		sa := sensors[key]
		if sa == nil {
			sa = &sensorAcc{bucket: bucket, lat: r.Latitude, lon: r.Longitude}
			sensors[key] = sa
		}
		sa.count++
		sa.conc.add(r.Concentration)
		sa.u.add(r.WindU)
		sa.v.add(r.WindV)
		sa.s.add(r.WindSpeed)

		wa := winds[key.bucket]
		if wa == nil {
			wa = &windAcc{bucket: bucket}
			winds[key.bucket] = wa
		}
		wa.count++
		wa.u.add(r.WindU)
		wa.v.add(r.WindV)
		wa.s.add(r.WindSpeed)
		if !math.IsNaN(r.WindDirection) {
			rad := r.WindDirection * math.Pi / 180
			wa.sin.add(math.Sin(rad))
			wa.cos.add(math.Cos(rad))
		}
	}

	result := Result{
		Width:   width,
		Sensors: make([]SensorAggregate, 0, len(sensors)),
		Wind:    make([]WindAggregate, 0, len(winds)),
	}
	for key, sa := range sensors {
		result.Sensors = append(result.Sensors, SensorAggregate{
			Bucket:             sa.bucket,
			SensorID:           key.sensor,
			Latitude:           sa.lat,
			Longitude:          sa.lon,
			MeanConcentration:  sa.conc.value(),
			MeanWindU:          sa.u.value(),
			MeanWindV:          sa.v.value(),
			MeanWindSpeed:      sa.s.value(),
			Count:              sa.count,
			ConcentrationCount: sa.conc.n,
		})
	}
	for _, wa := range winds {
		result.Wind = append(result.Wind, WindAggregate{
			Bucket:            wa.bucket,
			MeanWindU:         wa.u.value(),
			MeanWindV:         wa.v.value(),
			MeanWindSpeed:     wa.s.value(),
			MeanWindDirection: meanDirection(wa),
			Count:             wa.count,
		})
	}

	sort.Slice(result.Sensors, func(i, j int) bool {
		a, b := result.Sensors[i], result.Sensors[j]
		if !a.Bucket.Equal(b.Bucket) {
			return a.Bucket.Before(b.Bucket)
		}
		return a.SensorID < b.SensorID
	})
	sort.Slice(result.Wind, func(i, j int) bool {
		return result.Wind[i].Bucket.Before(result.Wind[j].Bucket)
	})
	return result, nil
}

// meanDirection is the circular mean of the reported directions, falling back
// to the direction of the mean vector when no reading reported one.
func meanDirection(wa *windAcc) float64 {
	if wa.sin.n > 0 {
		s, c := wa.sin.value(), wa.cos.value()
		if s == 0 && c == 0 {
			return math.NaN()
		}
		deg := math.Atan2(s, c) * 180 / math.Pi
		if deg < 0 {
			deg += 360
		}
		return deg
	}
	u, v := wa.u.value(), wa.v.value()
	if math.IsNaN(u) || math.IsNaN(v) || (u == 0 && v == 0) {
		return math.NaN()
	}
	return readings.DirectionFromComponents(u, v)
}

// Buckets returns the distinct bucket starts present in r, ascending.
func Buckets(r Result) []time.Time {
	seen := make(map[int64]struct{})
	var out []time.Time
	add := func(t time.Time) {
		if _, ok := seen[t.UnixNano()]; ok {
			return
		}
		seen[t.UnixNano()] = struct{}{}
		out = append(out, t)
	}
	for _, s := range r.Sensors {
		add(s.Bucket)
	}
	for _, w := range r.Wind {
		add(w.Bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// WindByBucket indexes wind aggregates by bucket start.
func (r Result) WindByBucket() map[int64]WindAggregate {
	out := make(map[int64]WindAggregate, len(r.Wind))
	for _, w := range r.Wind {
		out[w.Bucket.UnixNano()] = w
	}
	return out
}
