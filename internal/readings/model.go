package readings

import (
	"math"
	"time"
)

// Reading is one physical measurement. Numeric fields hold NaN when the
// source value is missing or unusable.
type Reading struct {
	SensorID      string
	Timestamp     time.Time
	Concentration float64
	WindU         float64
	WindV         float64
	WindSpeed     float64
	WindDirection float64
}

// HasConcentration reports whether the reading carries a usable concentration.
func (r Reading) HasConcentration() bool {
	return !math.IsNaN(r.Concentration)
}

// Location is a sensor's fixed geographic position.
type Location struct {
	SensorID  string
	Label     string
	Latitude  float64
	Longitude float64
}

// Located is a reading joined with its sensor's position.
type Located struct {
	Reading
	Latitude  float64
	Longitude float64
}

// Missing reports whether v marks a missing value.
func Missing(v float64) bool {
	return math.IsNaN(v)
}
