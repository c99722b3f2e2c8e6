package aggregate

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"ufpmap/internal/readings"
)

func located(sensor string, ts time.Time, conc, u, v, ws float64) readings.Located {
	return readings.Located{
		Reading: readings.Reading{
			SensorID:      sensor,
			Timestamp:     ts,
			Concentration: conc,
			WindU:         u,
			WindV:         v,
			WindSpeed:     ws,
			WindDirection: math.NaN(),
		},
		Latitude:  42.37,
		Longitude: -71.03,
	}
}

func at(h, m, s int) time.Time {
	return time.Date(2025, 8, 1, h, m, s, 0, time.UTC)
}

func TestAggregateTwoReadingsSameBucket(t *testing.T) {
	nan := math.NaN()
	rs := []readings.Located{
		located("A", at(10, 0, 0), 100, nan, nan, nan),
		located("A", at(10, 2, 0), 200, nan, nan, nan),
	}
	result, err := Aggregate(rs, 5*time.Minute)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(result.Sensors) != 1 {
		t.Fatalf("got %d aggregates, want 1", len(result.Sensors))
	}
	got := result.Sensors[0]
	if !got.Bucket.Equal(at(10, 0, 0)) || got.MeanConcentration != 150 || got.Count != 2 {
		t.Fatalf("unexpected aggregate %+v", got)
	}
}

func TestAggregateBucketBoundaryIsHalfOpen(t *testing.T) {
	nan := math.NaN()
	rs := []readings.Located{
		located("A", at(10, 4, 59), 10, nan, nan, nan),
		located("A", at(10, 5, 0), 20, nan, nan, nan),
	}
	result, err := Aggregate(rs, 5*time.Minute)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(result.Sensors) != 2 {
		t.Fatalf("got %d aggregates, want 2", len(result.Sensors))
	}
	if result.Sensors[0].MeanConcentration != 10 || !result.Sensors[1].Bucket.Equal(at(10, 5, 0)) {
		t.Fatalf("unexpected buckets %+v", result.Sensors)
	}
}

func TestAggregateSingleReadingMeanEqualsValue(t *testing.T) {
	result, err := Aggregate([]readings.Located{located("A", at(9, 1, 0), 1234.5, 1, 2, 3)}, 5*time.Minute)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	got := result.Sensors[0]
	if got.MeanConcentration != 1234.5 || got.MeanWindU != 1 || got.MeanWindV != 2 || got.MeanWindSpeed != 3 || got.Count != 1 {
		t.Fatalf("unexpected aggregate %+v", got)
	}
}

func TestAggregateWindOnlyBucket(t *testing.T) {
	nan := math.NaN()
	rs := []readings.Located{
		located("A", at(10, 0, 0), nan, 1, 0, 1),
		located("A", at(10, 1, 0), nan, 3, 0, 3),
	}
	result, err := Aggregate(rs, 5*time.Minute)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	got := result.Sensors[0]
	if got.HasConcentration() || got.ConcentrationCount != 0 || got.Count != 2 {
		t.Fatalf("expected wind-only aggregate, got %+v", got)
	}
	if got.MeanWindU != 2 || got.MeanWindSpeed != 2 {
		t.Fatalf("wind means = %v/%v, want 2/2", got.MeanWindU, got.MeanWindSpeed)
	}
	if len(result.Wind) != 1 || result.Wind[0].MeanWindSpeed != 2 {
		t.Fatalf("unexpected wind aggregates %+v", result.Wind)
	}
}

func TestAggregateFieldsAreIndependent(t *testing.T) {
	nan := math.NaN()
	rs := []readings.Located{
		located("A", at(10, 0, 0), 100, nan, nan, nan),
		located("A", at(10, 1, 0), nan, 4, 0, 4),
	}
	result, err := Aggregate(rs, 5*time.Minute)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	got := result.Sensors[0]
	if got.MeanConcentration != 100 || got.MeanWindU != 4 || got.ConcentrationCount != 1 {
		t.Fatalf("unexpected aggregate %+v", got)
	}
}

func TestAggregateWindDirectionCircularMean(t *testing.T) {
	a := located("A", at(10, 0, 0), 1, math.NaN(), math.NaN(), 1)
	a.WindDirection = 350
	b := located("B", at(10, 1, 0), 1, math.NaN(), math.NaN(), 1)
	b.WindDirection = 10
	result, err := Aggregate([]readings.Located{a, b}, 5*time.Minute)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	dir := result.Wind[0].MeanWindDirection
	if math.Abs(dir) > 1e-9 && math.Abs(dir-360) > 1e-9 {
		t.Fatalf("circular mean = %v, want 0", dir)
	}
}

func randomReadings(seed uint64, n int) []readings.Located {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	sensors := []string{"MOD-UFP-00007", "MOD-UFP-00008", "MOD-UFP-00009"}
	out := make([]readings.Located, 0, n)
	for i := 0; i < n; i++ {
		conc := rng.Float64() * 50000
		if rng.IntN(10) == 0 {
			conc = math.NaN()
		}
		ts := at(0, 0, 0).Add(time.Duration(rng.IntN(86400)) * time.Second)
		out = append(out, located(sensors[rng.IntN(len(sensors))], ts, conc, rng.NormFloat64(), rng.NormFloat64(), rng.Float64()*8))
	}
	return out
}

func sameFloat(a, b float64) bool {
	return math.Float64bits(a) == math.Float64bits(b) || (math.IsNaN(a) && math.IsNaN(b))
}

func TestAggregateIsDeterministic(t *testing.T) {
	rs := randomReadings(7, 2000)
	first, err := Aggregate(rs, 5*time.Minute)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	second, err := Aggregate(rs, 5*time.Minute)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(first.Sensors) != len(second.Sensors) {
		t.Fatalf("row counts differ: %d vs %d", len(first.Sensors), len(second.Sensors))
	}
	for i := range first.Sensors {
		a, b := first.Sensors[i], second.Sensors[i]
		if !a.Bucket.Equal(b.Bucket) || a.SensorID != b.SensorID || a.Count != b.Count ||
			!sameFloat(a.MeanConcentration, b.MeanConcentration) || !sameFloat(a.MeanWindU, b.MeanWindU) ||
			!sameFloat(a.MeanWindV, b.MeanWindV) || !sameFloat(a.MeanWindSpeed, b.MeanWindSpeed) {
			t.Fatalf("row %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestAggregateMeanWithinContributingRange(t *testing.T) {
	rs := randomReadings(11, 3000)
	width := 5 * time.Minute
	result, err := Aggregate(rs, width)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	type bounds struct{ lo, hi float64 }
	ranges := make(map[string]*bounds)
	for _, r := range rs {
		if math.IsNaN(r.Concentration) {
			continue
		}
		key := Floor(r.Timestamp, width).String() + r.SensorID
		b := ranges[key]
		if b == nil {
			b = &bounds{lo: r.Concentration, hi: r.Concentration}
			ranges[key] = b
		}
		b.lo = math.Min(b.lo, r.Concentration)
		b.hi = math.Max(b.hi, r.Concentration)
	}

	for i, agg := range result.Sensors {
		if agg.Count < 1 {
			t.Fatalf("aggregate %+v has no observations", agg)
		}
		if i > 0 {
			prev := result.Sensors[i-1]
			if agg.Bucket.Before(prev.Bucket) || (agg.Bucket.Equal(prev.Bucket) && agg.SensorID <= prev.SensorID) {
				t.Fatalf("aggregates out of order at %d", i)
			}
		}
		if !agg.HasConcentration() {
			continue
		}
		b := ranges[agg.Bucket.String()+agg.SensorID]
		if b == nil {
			t.Fatalf("no contributing readings for %+v", agg)
		}
		const eps = 1e-9
		if agg.MeanConcentration < b.lo-eps || agg.MeanConcentration > b.hi+eps {
			t.Fatalf("mean %v outside [%v, %v]", agg.MeanConcentration, b.lo, b.hi)
		}
	}
}

func TestFloor(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{at(10, 2, 0), at(10, 0, 0)},
		{at(10, 5, 0), at(10, 5, 0)},
		{at(23, 59, 59), at(23, 55, 0)},
		{time.Date(1969, 12, 31, 23, 58, 0, 0, time.UTC), time.Date(1969, 12, 31, 23, 55, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := Floor(tt.in, 5*time.Minute); !got.Equal(tt.want) {
			t.Errorf("Floor(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuckets(t *testing.T) {
	nan := math.NaN()
	rs := []readings.Located{
		located("B", at(10, 7, 0), 1, nan, nan, nan),
		located("A", at(10, 1, 0), 1, nan, nan, nan),
		located("B", at(10, 2, 0), 1, nan, nan, nan),
	}
	result, err := Aggregate(rs, 5*time.Minute)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	buckets := Buckets(result)
	if len(buckets) != 2 || !buckets[0].Equal(at(10, 0, 0)) || !buckets[1].Equal(at(10, 5, 0)) {
		t.Fatalf("Buckets = %v", buckets)
	}
	if _, err := Aggregate(rs, 0); err == nil {
		t.Fatal("expected error for zero width")
	}
}
