package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Row is one synthetic sensor reading.
type Row struct {
	Time   time.Time
	Sensor string
	Conc   string
	U, V   string
}

// ReadingsCSV renders rows with the column names used by the joined
// exports (timestamp_local.x, sn.x, cpc_particle_number_conc_corr.x,
// met.wx_u, met.wx_v).
func ReadingsCSV(rows []Row) string {
	var b strings.Builder
	b.WriteString("timestamp_local.x,sn.x,cpc_particle_number_conc_corr.x,met.wx_u,met.wx_v\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s\n",
			r.Time.Format("2006-01-02 15:04:05"), r.Sensor, orNA(r.Conc), orNA(r.U), orNA(r.V))
	}
	return b.String()
}

func orNA(v string) string {
	if v == "" {
		return "NA"
	}
	return v
}

// DayOfReadings produces one reading per sensor every step across hours
// starting at start, with concentrations that rise over the day.
func DayOfReadings(start time.Time, hours int, step time.Duration, sensors ...string) []Row {
	var rows []Row
	end := start.Add(time.Duration(hours) * time.Hour)
	i := 0
	for ts := start; ts.Before(end); ts = ts.Add(step) {
		for j, sensor := range sensors {
			rows = append(rows, Row{
				Time:   ts,
				Sensor: sensor,
				Conc:   fmt.Sprintf("%d", 5000+i*250+j*1000),
				U:      "1.5",
				V:      "-2.0",
			})
		}
		i++
	}
	return rows
}
