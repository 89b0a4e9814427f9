package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"repack/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*testEnv)

type testEnv struct {
	tb   testing.TB
	base string
	cfg  *config.Config
}

// NewConfig returns a config rooted in a fresh temp directory, with offline
// credentials filled in so validation passes. Options run in order.
func NewConfig(tb testing.TB, opts ...ConfigOption) *config.Config {
	tb.Helper()

	base := tb.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.TempDir = filepath.Join(base, "temp")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Watch.Dir = filepath.Join(base, "watch")
	cfg.API.Account = "test-account"
	cfg.API.Password = "test-password"

	env := &testEnv{tb: tb, base: base, cfg: &cfg}
	for _, opt := range opts {
		opt(env)
	}
	return env.cfg
}

// WithSkipLogin disables every API interaction on the test config.
func WithSkipLogin() ConfigOption {
	return func(env *testEnv) { env.cfg.API.SkipLogin = true }
}

// WithStubbedBinaries puts always-succeeding 7z and ffmpeg stubs (or the
// given names) at the front of PATH for the test's lifetime.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(env *testEnv) {
		if len(names) == 0 {
			names = []string{"7z", "ffmpeg"}
		}
		binDir := filepath.Join(env.base, "bin")
		for _, name := range names {
			writeStub(env.tb, binDir, name)
		}
		env.tb.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

func writeStub(tb testing.TB, dir, name string) {
	tb.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		tb.Fatalf("write stub %s: %v", name, err)
	}
}

// BaseDir returns the temp root that backs cfg's directories.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
