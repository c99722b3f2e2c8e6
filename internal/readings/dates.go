package readings

import (
	"sort"
	"time"
)

// DateCount is the number of readings recorded on one local calendar date.
type DateCount struct {
	Date     string
	Readings int
	Sensors  int
}

// AvailableDates lists every local date with at least one reading, ascending.
func AvailableDates(rs []Reading, loc *time.Location) []DateCount {
	if loc == nil {
		loc = time.UTC
	}
	counts := make(map[string]int)
	sensors := make(map[string]map[string]struct{})
	for _, r := range rs {
		day := r.Timestamp.In(loc).Format(DateLayout)
		counts[day]++
		if sensors[day] == nil {
			sensors[day] = make(map[string]struct{})
		}
		sensors[day][r.SensorID] = struct{}{}
	}
	out := make([]DateCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, DateCount{Date: day, Readings: n, Sensors: len(sensors[day])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
