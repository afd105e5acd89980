package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bindery/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "bindery")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.LogDir != filepath.Join(wantData, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.FileService.BaseURL != "" {
		t.Fatalf("expected file service unconfigured by default, got %q", cfg.FileService.BaseURL)
	}
	if cfg.FileService.RequestTimeout != 30 {
		t.Fatalf("unexpected file service timeout: %d", cfg.FileService.RequestTimeout)
	}
	if !cfg.Launcher.Enabled {
		t.Fatal("expected launcher enabled by default")
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %q/%q", cfg.Logging.Format, cfg.Logging.Level)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "bindery.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
}

func TestLoadParsesFileAndTrimsBaseURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[file_service]",
		`base_url = "http://files.local:8080/"`,
		"[logging]",
		`level = "debug"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.FileService.BaseURL != "http://files.local:8080" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.FileService.BaseURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected level: %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad log format")
	}

	cfg = config.Default()
	cfg.Locality.OverrideIP = "not-an-ip"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad override IP")
	}

	cfg = config.Default()
	cfg.FileService.RequestTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero timeout")
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[file_service]") {
		t.Fatal("sample missing file_service section")
	}
}
