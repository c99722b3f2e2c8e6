package readings

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ufpmap/internal/config"
	"ufpmap/internal/services"
)

// Field names a canonical reading attribute.
type Field string

const (
	FieldTimestamp     Field = "timestamp"
	FieldSensorID      Field = "sensor_id"
	FieldConcentration Field = "concentration"
	FieldWindU         Field = "wind_u"
	FieldWindV         Field = "wind_v"
	FieldWindSpeed     Field = "wind_speed"
	FieldWindDirection Field = "wind_direction"
)

// Candidates lists accepted source column names per field, in priority order.
// Joined exports carry ".x"/".y" suffixes for duplicated columns.
var Candidates = map[Field][]string{
	FieldTimestamp:     {"timestamp_local.x", "timestamp_local.y", "timestamp_local", "timestamp", "valid", "time", "datetime"},
	FieldSensorID:      {"sn.x", "sn.y", "sn", "sensor_id", "sensor", "device_id"},
	FieldConcentration: {"cpc_particle_number_conc_corr.x", "cpc_particle_number_conc_corr.y", "cpc_particle_number_conc_corr", "conc", "concentration", "pollution", "ufp", "value"},
	FieldWindU:         {"met_wx_u", "met.wx_u", "wind_u", "u"},
	FieldWindV:         {"met_wx_v", "met.wx_v", "wind_v", "v"},
	FieldWindSpeed:     {"met_wx_ws", "met.wx_ws", "ws", "wind_speed"},
	FieldWindDirection: {"met_wx_wd", "met.wx_wd", "wd", "wind_direction"},
}

var requiredFields = []Field{FieldTimestamp, FieldSensorID, FieldConcentration}

// Schema holds the resolved column index for each field; -1 means absent.
type Schema map[Field]int

// Has reports whether the field was resolved to a column.
func (s Schema) Has(f Field) bool {
	idx, ok := s[f]
	return ok && idx >= 0
}

// Column returns the resolved source column name for f.
func (s Schema) Column(t Table, f Field) string {
	if !s.Has(f) {
		return ""
	}
	return t.Columns[s[f]]
}

// Resolve maps table columns onto canonical fields. Explicit overrides win
// over candidates; a missing timestamp, sensor, or concentration column is an
// input error naming the candidates that were tried.
func Resolve(t Table, overrides config.Columns) (Schema, error) {
	explicit := map[Field]string{
		FieldTimestamp:     overrides.Timestamp,
		FieldSensorID:      overrides.SensorID,
		FieldConcentration: overrides.Concentration,
		FieldWindU:         overrides.WindU,
		FieldWindV:         overrides.WindV,
		FieldWindSpeed:     overrides.WindSpeed,
		FieldWindDirection: overrides.WindDirection,
	}

	schema := make(Schema, len(Candidates))
	for field, candidates := range Candidates {
		schema[field] = -1
		if name := strings.TrimSpace(explicit[field]); name != "" {
			idx := t.Index(name)
			if idx < 0 {
				return nil, services.Wrap(services.ErrInput, "load", "schema",
					fmt.Sprintf("configured %s column %q not present", field, name), nil)
			}
			schema[field] = idx
			continue
		}
		for _, name := range candidates {
			if idx := t.Index(name); idx >= 0 {
				schema[field] = idx
				break
			}
		}
	}

	for _, field := range requiredFields {
		if !schema.Has(field) {
			return nil, services.Wrap(services.ErrInput, "load", "schema",
				fmt.Sprintf("no %s column found (tried %s)", field, strings.Join(Candidates[field], ", ")), nil)
		}
	}
	return schema, nil
}

// NormalizeStats summarizes what normalization kept and dropped.
type NormalizeStats struct {
	Rows                 int
	Kept                 int
	BadTimestamps        int
	MissingSensor        int
	MissingConcentration int
	DerivedWind          bool
}

// Normalize converts raw rows into readings. Rows with an unparseable
// timestamp or blank sensor id are dropped and counted; unusable numeric cells
// become NaN.
func Normalize(t Table, overrides config.Columns, loc *time.Location) ([]Reading, NormalizeStats, error) {
	schema, err := Resolve(t, overrides)
	if err != nil {
		return nil, NormalizeStats{}, err
	}
	if loc == nil {
		loc = time.UTC
	}

	hasUV := schema.Has(FieldWindU) && schema.Has(FieldWindV)
	hasPolar := schema.Has(FieldWindSpeed) && schema.Has(FieldWindDirection)
	stats := NormalizeStats{Rows: len(t.Rows), DerivedWind: !hasUV && hasPolar}

	out := make([]Reading, 0, len(t.Rows))
	for _, row := range t.Rows {
		ts, ok := ParseTimestamp(cell(row, schema[FieldTimestamp]), loc)
		if !ok {
			stats.BadTimestamps++
			continue
		}
		sensor := cell(row, schema[FieldSensorID])
		if sensor == "" || strings.EqualFold(sensor, "NA") {
			stats.MissingSensor++
			continue
		}

		r := Reading{
			SensorID:      sensor,
			Timestamp:     ts,
			Concentration: parseNumber(cell(row, schema[FieldConcentration])),
			WindU:         parseNumber(cell(row, schema[FieldWindU])),
			WindV:         parseNumber(cell(row, schema[FieldWindV])),
			WindSpeed:     parseNumber(cell(row, schema[FieldWindSpeed])),
			WindDirection: parseNumber(cell(row, schema[FieldWindDirection])),
		}
		if r.Concentration < 0 {
			r.Concentration = math.NaN()
		}
		completeWind(&r)
		if !r.HasConcentration() {
			stats.MissingConcentration++
		}
		out = append(out, r)
	}
	stats.Kept = len(out)
	return out, stats, nil
}

// completeWind fills whichever wind representation is missing from the other.
// Direction is meteorological: the bearing the wind blows from.
func completeWind(r *Reading) {
	uvOK := !Missing(r.WindU) && !Missing(r.WindV)
	polarOK := !Missing(r.WindSpeed) && !Missing(r.WindDirection)

	if !uvOK && polarOK {
		rad := r.WindDirection * math.Pi / 180
		r.WindU = -r.WindSpeed * math.Sin(rad)
		r.WindV = -r.WindSpeed * math.Cos(rad)
		uvOK = true
	}
	if uvOK && Missing(r.WindSpeed) {
		r.WindSpeed = math.Hypot(r.WindU, r.WindV)
	}
	if uvOK && Missing(r.WindDirection) && r.WindSpeed > 0 {
		r.WindDirection = DirectionFromComponents(r.WindU, r.WindV)
	}
	if r.WindSpeed < 0 {
		r.WindSpeed = math.NaN()
	}
}

// DirectionFromComponents converts eastward/northward components into the
// meteorological bearing in [0, 360).
func DirectionFromComponents(u, v float64) float64 {
	deg := math.Atan2(-u, -v) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"2006-01-02",
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05 MST",
}

// ParseTimestamp accepts ISO-like local or zoned timestamps and Unix seconds.
// Naive values are interpreted in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "NA") {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, true
		}
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 1e8 {
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9)).In(loc), true
	}
	return time.Time{}, false
}

func parseNumber(value string) float64 {
	switch strings.ToUpper(value) {
	case "", "NA", "NAN", "NULL", "NONE", "-":
		return math.NaN()
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
