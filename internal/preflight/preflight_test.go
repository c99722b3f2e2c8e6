package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"ufpmap/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed || result.Detail == "" {
		t.Fatalf("expected failure with detail for missing dir, got %#v", result)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckWritableTargetMissingDirectory(t *testing.T) {
	result := CheckWritableTarget("output", filepath.Join(t.TempDir(), "a", "b"))
	if !result.Passed {
		t.Fatalf("expected creatable target to pass, got %s", result.Detail)
	}
}

func TestCheckDataFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readings.csv")
	if err := os.WriteFile(path, []byte("timestamp,sn,conc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDataFile("data", path); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if result := CheckDataFile("data", dir); result.Passed {
		t.Fatal("expected failure for directory")
	}
	if result := CheckDataFile("data", filepath.Join(dir, "missing.csv")); result.Passed {
		t.Fatal("expected failure for missing file")
	}
}

func TestCheckHTTPReachable(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ok.Close()
	if result := CheckHTTPReachable(context.Background(), "svc", ok.URL); !result.Passed {
		t.Fatalf("expected 401 to count as reachable, got %s", result.Detail)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	if result := CheckHTTPReachable(context.Background(), "svc", broken.URL); result.Passed {
		t.Fatal("expected 5xx to fail")
	}

	if result := CheckHTTPReachable(context.Background(), "svc", " "); result.Passed || result.Detail != "missing url" {
		t.Fatalf("unexpected result for blank url: %#v", result)
	}
}

func TestTileProbeURL(t *testing.T) {
	got := TileProbeURL("https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png")
	if got != "https://a.tile.openstreetmap.org/0/0/0.png" {
		t.Fatalf("unexpected probe url %q", got)
	}
}

func TestRunAllSkipsNetworkByDefault(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.Paths.CacheDir = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()

	results := RunAll(context.Background(), &cfg, false)
	if len(results) != 3 {
		t.Fatalf("expected three filesystem checks, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %#v", failed)
	}
}
