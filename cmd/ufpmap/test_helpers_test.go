package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"ufpmap/internal/config"
	"ufpmap/internal/testsupport"
)

var testSensors = []string{"MOD-UFP-00007", "MOD-UFP-00008", "MOD-UFP-00009"}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

// setupCLITestEnv writes two days of readings and a config file pointing at
// them. mutate runs before the config is written.
func setupCLITestEnv(t *testing.T, mutate func(*config.Config)) *cliTestEnv {
	t.Helper()

	day := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	rows := testsupport.DayOfReadings(day, 1, time.Minute, testSensors...)
	rows = append(rows, testsupport.DayOfReadings(day.AddDate(0, 0, 1), 1, 10*time.Minute, testSensors[:2]...)...)

	cfg := testsupport.NewConfig(t,
		testsupport.WithDataFile("readings.csv", testsupport.ReadingsCSV(rows)),
		testsupport.WithBackend("sequential"),
		testsupport.WithStubbedBinaries(),
	)
	if mutate != nil {
		mutate(cfg)
	}

	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(base, "ufpmap.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
