package readings

import (
	"fmt"
	"time"

	"ufpmap/internal/services"
)

// DateLayout is the calendar date format used on the command line and in
// output directory names.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, services.Wrap(services.ErrInput, "filter", "parse date",
			fmt.Sprintf("%q is not a YYYY-MM-DD date", value), nil)
	}
	return day, nil
}

// FilterDate keeps readings whose local calendar date equals date.
func FilterDate(rs []Reading, date string, loc *time.Location) ([]Reading, error) {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := ParseDate(date, loc); err != nil {
		return nil, err
	}
	out := make([]Reading, 0)
	for _, r := range rs {
		if r.Timestamp.In(loc).Format(DateLayout) == date {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, services.Wrap(services.ErrNoData, "filter", "date", "no readings for "+date, nil)
	}
	return out, nil
}

// Join attaches coordinates to each reading. Readings from sensors without a
// known location are dropped. Readings without a concentration stay, since
// their wind still contributes to the bucket wind vector.
func Join(rs []Reading, locations []Location) ([]Located, error) {
	byID := make(map[string]Location, len(locations))
	for _, loc := range locations {
		byID[loc.SensorID] = loc
	}
	out := make([]Located, 0, len(rs))
	for _, r := range rs {
		loc, ok := byID[r.SensorID]
		if !ok {
			continue
		}
		out = append(out, Located{Reading: r, Latitude: loc.Latitude, Longitude: loc.Longitude})
	}
	if len(out) == 0 {
		return nil, services.Wrap(services.ErrNoData, "filter", "join", "no readings with known sensor coordinates", nil)
	}
	return out, nil
}

// UnknownSensors lists sensor ids present in rs but absent from locations.
func UnknownSensors(rs []Reading, locations []Location) []string {
	known := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		known[loc.SensorID] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rs {
		if _, ok := known[r.SensorID]; ok {
			continue
		}
		if _, ok := seen[r.SensorID]; ok {
			continue
		}
		seen[r.SensorID] = struct{}{}
		out = append(out, r.SensorID)
	}
	return out
}
