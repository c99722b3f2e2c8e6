package readings

import (
	"fmt"
	"sort"
	"strings"

	"ufpmap/internal/config"
	"ufpmap/internal/services"
)

// LoadLocations reads a sensor coordinate table with columns sensor_id,
// latitude, longitude and an optional label.
func LoadLocations(path string) ([]Location, error) {
	table, err := ReadCSV(path, ',')
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "load", "read locations", path, err)
	}
	idIdx := firstIndex(table, "sensor_id", "sn", "sensor", "id")
	latIdx := firstIndex(table, "latitude", "lat")
	lonIdx := firstIndex(table, "longitude", "lon", "lng")
	labelIdx := firstIndex(table, "label", "name")
	if idIdx < 0 || latIdx < 0 || lonIdx < 0 {
		return nil, services.Wrap(services.ErrInput, "load", "read locations",
			fmt.Sprintf("%s needs sensor_id, latitude and longitude columns", path), nil)
	}

	out := make([]Location, 0, len(table.Rows))
	for i, row := range table.Rows {
		id := cell(row, idIdx)
		if id == "" {
			continue
		}
		lat := parseNumber(cell(row, latIdx))
		lon := parseNumber(cell(row, lonIdx))
		if Missing(lat) || Missing(lon) {
			return nil, services.Wrap(services.ErrInput, "load", "read locations",
				fmt.Sprintf("row %d (%s) has no usable coordinates", i+2, id), nil)
		}
		out = append(out, Location{SensorID: id, Label: cell(row, labelIdx), Latitude: lat, Longitude: lon})
	}
	if err := checkUnique(out); err != nil {
		return nil, err
	}
	return out, nil
}

// LocationsFromConfig converts configured site sensors into locations.
func LocationsFromConfig(sensors []config.Sensor) ([]Location, error) {
	out := make([]Location, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, Location{SensorID: s.ID, Label: s.Label, Latitude: s.Latitude, Longitude: s.Longitude})
	}
	if err := checkUnique(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveLocations prefers the configured locations file over site.sensors.
func ResolveLocations(cfg *config.Config) ([]Location, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "load", "locations", "configuration unavailable", nil)
	}
	if path := strings.TrimSpace(cfg.Data.LocationsPath); path != "" {
		return LoadLocations(path)
	}
	return LocationsFromConfig(cfg.Site.Sensors)
}

func checkUnique(locations []Location) error {
	seen := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		if _, ok := seen[loc.SensorID]; ok {
			return services.Wrap(services.ErrInput, "load", "locations",
				fmt.Sprintf("duplicate sensor id %q", loc.SensorID), nil)
		}
		seen[loc.SensorID] = struct{}{}
	}
	return nil
}

// SortLocations orders locations by sensor id.
func SortLocations(locations []Location) {
	sort.Slice(locations, func(i, j int) bool { return locations[i].SensorID < locations[j].SensorID })
}

func firstIndex(t Table, names ...string) int {
	for _, name := range names {
		if idx := t.Index(name); idx >= 0 {
			return idx
		}
	}
	return -1
}
