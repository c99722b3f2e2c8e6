package readings

import (
	"math"
	"sort"
	"time"
)

// SensorSummary describes one sensor's readings.
type SensorSummary struct {
	SensorID          string
	Readings          int
	WithConcentration int
	First             time.Time
	Last              time.Time
	Min               float64
	Max               float64
	Mean              float64
	Median            float64
	MeanWindSpeed     float64
}

// Summarize computes per-sensor descriptive statistics, sorted by sensor id.
// Statistics over an empty set are NaN.
func Summarize(rs []Reading) []SensorSummary {
	type acc struct {
		summary SensorSummary
		values  []float64
		windSum float64
		windN   int
	}
	bySensor := make(map[string]*acc)
	for _, r := range rs {
		a := bySensor[r.SensorID]
		if a == nil {
			a = &acc{summary: SensorSummary{SensorID: r.SensorID, First: r.Timestamp, Last: r.Timestamp}}
			bySensor[r.SensorID] = a
		}
		a.summary.Readings++
		if r.Timestamp.Before(a.summary.First) {
			a.summary.First = r.Timestamp
		}
		if r.Timestamp.After(a.summary.Last) {
			a.summary.Last = r.Timestamp
		}
		if r.HasConcentration() {
			a.values = append(a.values, r.Concentration)
		}
		if !Missing(r.WindSpeed) {
			a.windSum += r.WindSpeed
			a.windN++
		}
	}

	out := make([]SensorSummary, 0, len(bySensor))
	for _, a := range bySensor {
		s := a.summary
		s.WithConcentration = len(a.values)
		s.Min, s.Max, s.Mean, s.Median = describe(a.values)
		s.MeanWindSpeed = math.NaN()
		if a.windN > 0 {
			s.MeanWindSpeed = a.windSum / float64(a.windN)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}

func describe(values []float64) (lo, hi, mean, median float64) {
	if len(values) == 0 {
		nan := math.NaN()
		return nan, nan, nan, nan
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	n := len(sorted)
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[0], sorted[n-1], sum / float64(n), median
}
