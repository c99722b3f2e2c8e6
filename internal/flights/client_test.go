package flights

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"ufpmap/internal/services"
)

func TestWindowsSplitsLongIntervals(t *testing.T) {
	begin := time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC)
	windows := Windows(begin, begin.Add(5*time.Hour), MaxWindow)
	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3", len(windows))
	}
	if !windows[2][0].Equal(begin.Add(4*time.Hour)) || !windows[2][1].Equal(begin.Add(5*time.Hour)) {
		t.Fatalf("last window = %v", windows[2])
	}
	for i := 1; i < len(windows); i++ {
		if !windows[i][0].Equal(windows[i-1][1]) {
			t.Fatalf("windows not contiguous at %d", i)
		}
	}
}

func TestDeparturesQueriesEachWindow(t *testing.T) {
	var calls atomic.Int32
	var sawAuth atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/flights/departure" || r.URL.Query().Get("airport") != "KBOS" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if user, pass, ok := r.BasicAuth(); ok && user == "alice" && pass == "secret" {
			sawAuth.Store(true)
		}
		begin, _ := strconv.ParseInt(r.URL.Query().Get("begin"), 10, 64)
		if begin == time.Date(2025, 8, 1, 8, 0, 0, 0, time.UTC).Unix() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"icao24":"aa56b5","callsign":"UAL2439 ","firstSeen":` +
			strconv.FormatInt(begin+600, 10) + `,"lastSeen":0,"estDepartureAirport":"KBOS","estArrivalAirport":"KORD"}]`))
	}))
	defer server.Close()

	c := NewClient(Settings{BaseURL: server.URL + "/", Username: "alice", Password: "secret", RequestsPerSecond: 1000}, nil)
	begin := time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC)
	got, err := c.Departures(context.Background(), "kbos", begin, begin.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("Departures: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("requests = %d, want 3", calls.Load())
	}
	if !sawAuth.Load() {
		t.Fatal("basic auth not sent")
	}
	if len(got) != 2 {
		t.Fatalf("departures = %d, want 2 (one window empty)", len(got))
	}
	if got[0].Callsign != "UAL2439" || got[0].FirstSeen > got[1].FirstSeen {
		t.Fatalf("unexpected departures %+v", got)
	}
}

func TestDeparturesReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(Settings{BaseURL: server.URL, RequestsPerSecond: 1000}, nil)
	begin := time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC)
	_, err := c.Departures(context.Background(), "KBOS", begin, begin.Add(time.Hour))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestDeparturesValidatesInput(t *testing.T) {
	c := NewClient(Settings{BaseURL: "http://127.0.0.1:1"}, nil)
	now := time.Now()
	if _, err := c.Departures(context.Background(), "", now, now.Add(time.Hour)); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("missing airport: %v", err)
	}
	if _, err := c.Departures(context.Background(), "KBOS", now, now); !errors.Is(err, services.ErrInput) {
		t.Fatalf("empty window: %v", err)
	}
}
