package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dubber/internal/config"
)

// ConfigOption mutates the config produced by NewConfig.
type ConfigOption func(t testing.TB, cfg *config.Config)

// NewConfig returns config.Default() rooted in a fresh temp directory, with
// placeholder credentials and millisecond retry delays.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	for dir, name := range map[*string]string{
		&cfg.Paths.WorkDir:   "work",
		&cfg.Paths.OutputDir: "output",
		&cfg.Paths.StateDir:  "state",
		&cfg.Paths.LogDir:    "logs",
	} {
		*dir = filepath.Join(root, name)
	}
	cfg.API.Bind = "127.0.0.1:0"
	cfg.LLM.APIKey = "test"
	cfg.Synthesis.APIKey = "test"
	cfg.Diarization.HuggingFaceToken = "test"
	cfg.Workflow.RetryBaseDelayMillis = 1
	cfg.Workflow.RetryMaxDelayMillis = 2

	for _, opt := range opts {
		opt(t, &cfg)
	}
	return &cfg
}

func WithMaxConcurrentJobs(n int) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) { cfg.Workflow.MaxConcurrentJobs = n }
}

func WithAPIToken(token string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) { cfg.API.Token = token }
}

// WithStubbedBinaries puts no-op executables named after tools at the front
// of PATH for the duration of the test.
func WithStubbedBinaries(tools ...string) ConfigOption {
	return func(t testing.TB, cfg *config.Config) {
		t.Helper()
		bin := filepath.Join(BaseDir(cfg), "bin")
		for _, tool := range tools {
			WriteFile(t, filepath.Join(bin, tool), []byte("#!/bin/sh\nexit 0\n"))
			if err := os.Chmod(filepath.Join(bin, tool), 0o755); err != nil {
				t.Fatalf("chmod %s: %v", tool, err)
			}
		}
		t.Setenv("PATH", strings.Join([]string{bin, os.Getenv("PATH")}, string(os.PathListSeparator)))
	}
}

// BaseDir is the temp root NewConfig placed every path under.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
}
