package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"folio/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ingest.WorkerCount != config.Default().Ingest.WorkerCount {
		t.Fatalf("expected default worker count, got %d", cfg.Ingest.WorkerCount)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[logging]
level = "DEBUG"
format = "JSON"

[ingest]
worker_count = 2
media_extensions = [".JPG", "png"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized logging fields, got %+v", cfg.Logging)
	}
	if cfg.Ingest.WorkerCount != 2 {
		t.Fatalf("expected override to apply, got %d", cfg.Ingest.WorkerCount)
	}
	if cfg.Ingest.MediaExtensions[0] != "jpg" || cfg.Ingest.MediaExtensions[1] != "png" {
		t.Fatalf("expected normalized extensions, got %v", cfg.Ingest.MediaExtensions)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[ingest]
worker_count = 0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for zero workers")
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when config exists")
	}
}
