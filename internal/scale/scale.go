// Package scale computes the global concentration scale shared by every frame
// of a video.
package scale

import (
	"math"

	"ufpmap/internal/aggregate"
	"ufpmap/internal/services"
)

// DefaultTickCount is the number of legend ticks aimed for.
const DefaultTickCount = 5

// Scale is the concentration range used for marker size, marker color, and
// the legend. It is computed once per run and never changes afterwards.
type Scale struct {
	Min   float64   `json:"min"`
	Max   float64   `json:"max" validate:"gtefield=Min"`
	Ticks []float64 `json:"ticks" validate:"min=1"`
}

// Compute derives the scale from every non-missing mean concentration.
func Compute(aggs []aggregate.SensorAggregate) (Scale, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	n := 0
	for _, a := range aggs {
		if !a.HasConcentration() {
			continue
		}
		lo = math.Min(lo, a.MeanConcentration)
		hi = math.Max(hi, a.MeanConcentration)
		n++
	}
	if n == 0 {
		return Scale{}, services.Wrap(services.ErrNoData, "scale", "compute",
			"no valid concentration values in any bucket; nothing to render", nil)
	}
	return Scale{Min: lo, Max: hi, Ticks: Ticks(lo, hi, DefaultTickCount)}, nil
}

// Normalize maps v onto [0, 1]. A degenerate range maps everything to 0.
func (s Scale) Normalize(v float64) float64 {
	span := s.Max - s.Min
	if span <= 0 || math.IsNaN(v) {
		return 0
	}
	t := (v - s.Min) / span
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}

// Contains reports whether v lies inside the scale range.
func (s Scale) Contains(v float64) bool {
	return v >= s.Min && v <= s.Max
}

// Ticks returns ascending legend values for [lo, hi]: multiples of a 1, 2 or
// 5 x 10^k step, bracketed by the range endpoints.
func Ticks(lo, hi float64, n int) []float64 {
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return nil
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		return []float64{lo}
	}
	if n < 2 {
		n = 2
	}
	step := niceStep((hi - lo) / float64(n-1))
	eps := step * 1e-9

	// Near the float64 precision limit adding step no longer moves v, so the
	// walk is bounded by the most ticks a 1-2-5 step can produce.
	limit := 4 * n
	ticks := []float64{lo}
	for i, v := 0, math.Ceil(lo/step)*step; v < hi-eps && i < limit; i, v = i+1, v+step {
		// Snap away accumulated error so labels print cleanly.
		v = math.Round(v/step) * step
		if v <= ticks[len(ticks)-1]+eps {
			continue
		}
		ticks = append(ticks, v)
	}
	if hi > ticks[len(ticks)-1]+eps {
		ticks = append(ticks, hi)
	}
	return ticks
}

func niceStep(raw float64) float64 {
	if raw <= 0 {
		return 1
	}
	exp := math.Floor(math.Log10(raw))
	base := math.Pow(10, exp)
	frac := raw / base
	switch {
	case frac < 1.5:
		return base
	case frac < 3:
		return 2 * base
	case frac < 7:
		return 5 * base
	default:
		return 10 * base
	}
}
