package testsupport

import (
	"path/filepath"
	"testing"

	"coverdex/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.CoversDir = filepath.Join(base, "covers")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.OMDb.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMaxAttempts overrides the workflow retry budget on the test config.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.MaxAttempts = attempts
	}
}
