package testsupport

import (
	"path/filepath"
	"testing"

	"bindery/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// The file service and locality endpoints stay blank so folder moves and IP
// lookups run in local mode unless a test overrides them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.FileService.BaseURL = ""
	cfg.Locality.EndpointURL = ""
	cfg.Launcher.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithFileService points the test config at a file-operations endpoint,
// typically an httptest server URL.
func WithFileService(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.FileService.BaseURL = baseURL
	}
}

// WithLocalityOverride pins the workstation IP seen by locality checks.
func WithLocalityOverride(ip string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Locality.OverrideIP = ip
	}
}
