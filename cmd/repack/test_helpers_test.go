package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"repack/internal/config"
	"repack/internal/queue"
	"repack/internal/testsupport"
)

// cliTestEnv gives each test a private HOME, a config file on disk, and an
// open queue store, so commands run the same code path a user would hit.
type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	env := &cliTestEnv{baseDir: t.TempDir()}

	home := filepath.Join(env.baseDir, "home")
	t.Setenv("HOME", home)

	env.cfg = testsupport.NewConfig(t, testsupport.WithSkipLogin(), testsupport.WithStubbedBinaries())
	env.configPath = filepath.Join(home, ".config", "repack", "config.toml")
	writeTestConfig(t, env.configPath, env.cfg)

	env.store = testsupport.MustOpenStore(t, env.cfg)
	return env
}

// runCLI executes one repack invocation in-process and captures both streams.
func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	var stdout, stderr bytes.Buffer
	root := newRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// writeTestConfig persists just enough TOML to point the CLI at the test
// sandbox: image re-encoding and API traffic stay off.
func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("config dir: %v", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\noutput_dir = %q\ntemp_dir = %q\nlog_dir = %q\n\n", cfg.Paths.OutputDir, cfg.Paths.TempDir, cfg.Paths.LogDir)
	b.WriteString("[images]\nenabled = false\n\n")
	fmt.Fprintf(&b, "[api]\naccount = %q\npassword = %q\nskip_login = true\n\n", cfg.API.Account, cfg.API.Password)
	fmt.Fprintf(&b, "[watch]\ndir = %q\n", cfg.Watch.Dir)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("output %q does not contain %q", output, substr)
	}
}
