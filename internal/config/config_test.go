package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Paths.MasterSheet != "Project List" {
		t.Errorf("expected sheet 'Project List', got %q", cfg.Paths.MasterSheet)
	}
	if cfg.Queue.LockTimeout != 30*time.Second {
		t.Errorf("expected lock timeout 30s, got %s", cfg.Queue.LockTimeout)
	}
	if cfg.Queue.ProcessingLease != 2*time.Hour {
		t.Errorf("expected lease 2h, got %s", cfg.Queue.ProcessingLease)
	}
	if cfg.Sync.Command != "" {
		t.Errorf("expected sync disabled by default, got %q", cfg.Sync.Command)
	}
	if len(cfg.Sync.Args) == 0 {
		t.Error("expected sync args to be populated")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
paths:
  raw_root: /data/raw
scan:
  extensions: [CSV, xlsx]
queue:
  processing_lease: 0s
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.GetRawRoot() != "/data/raw" {
		t.Errorf("expected raw root '/data/raw', got %q", cfg.GetRawRoot())
	}
	if want := []string{".csv", ".xlsx"}; !reflect.DeepEqual(cfg.Scan.Extensions, want) {
		t.Errorf("expected %v, got %v", want, cfg.Scan.Extensions)
	}
	if cfg.Queue.ProcessingLease != 0 {
		t.Errorf("expected lease disabled, got %s", cfg.Queue.ProcessingLease)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Queue.LockTimeout != 30*time.Second {
		t.Errorf("expected default lock timeout, got %s", cfg.Queue.LockTimeout)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default log format, got %q", cfg.Logging.Format)
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	cases := []string{
		"queue:\n  lock_timeout: 0s\n",
		"queue:\n  processing_lease: -1m\n",
		"server:\n  port: 70000\n",
		"queue:\n  lock_timeout: soon\n",
	}
	for _, data := range cases {
		if _, err := parse([]byte(data)); err == nil {
			t.Errorf("expected error for %q", data)
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Scan.Extensions) != 2 {
		t.Errorf("expected 2 extensions from file, got %v", cfg.Scan.Extensions)
	}
}

func TestResolveExplicitPath(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestDirs(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}
	if cfg.GetOutputDir() != filepath.Join(defaultDir, "parquet") {
		t.Errorf("expected output under data dir, got %q", cfg.GetOutputDir())
	}

	cfg.Paths.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
	if cfg.DBPath() != filepath.Join("/custom/path", "qualitypipe.db") {
		t.Errorf("unexpected db path %q", cfg.DBPath())
	}

	cfg.Paths.OutputDir = "/out"
	if cfg.GetOutputDir() != "/out" {
		t.Errorf("expected '/out', got %q", cfg.GetOutputDir())
	}
}
