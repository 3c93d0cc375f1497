package testsupport

import (
	"path/filepath"
	"testing"

	"labtrace/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Audit.Operator = "test-operator"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithOperator overrides the default audit operator on the test config.
func WithOperator(operator string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Audit.Operator = operator
	}
}
