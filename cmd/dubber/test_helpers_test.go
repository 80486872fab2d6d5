package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pelletier/go-toml/v2"

	"dubber/internal/config"
	"dubber/internal/daemon"
	"dubber/internal/dubbing"
	"dubber/internal/events"
	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/stage"
	"dubber/internal/testsupport"
	"dubber/internal/workflow"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStage optionally waits on gate; the final stage writes the result.
type fakeStage struct {
	gate  chan struct{}
	final bool
}

func (fakeStage) Prepare(context.Context, *stage.Run) error { return nil }

func (s fakeStage) Execute(ctx context.Context, run *stage.Run) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	run.Report(1, 1)
	if !s.final {
		return nil
	}
	if err := os.MkdirAll(run.OutputDir, 0o755); err != nil {
		return err
	}
	run.ResultPath = filepath.Join(run.OutputDir, "clip.es.mp4")
	return os.WriteFile(run.ResultPath, []byte("dubbed"), 0o644)
}

func (fakeStage) HealthCheck(context.Context) stage.Health { return stage.Healthy("fake") }

type fakeCatalog struct{}

func (fakeCatalog) Voices(_ context.Context, lang string) ([]dubbing.VoiceCandidate, error) {
	if lang != "es" {
		return nil, nil
	}
	return []dubbing.VoiceCandidate{{ID: "v-lucia", Name: "Lucia", Languages: []string{"es"}, Gender: "female"}}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	configPath string
	source     string
	gate       chan struct{}
}

// setupCLITestEnv runs an in-process daemon with fake stages and writes a
// config file pointing the CLI at it. With blocking set, the download step
// waits until release is called.
func setupCLITestEnv(t *testing.T, blocking bool) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	bus := events.NewBus(100)
	repo := jobs.NewRepository(store, jobs.WithObserver(bus.ObserveJob))
	manager := workflow.NewManager(cfg, repo, logging.NewNop())

	env := &cliTestEnv{cfg: cfg}
	download := fakeStage{}
	if blocking {
		env.gate = make(chan struct{})
		download.gate = env.gate
	}
	manager.ConfigureStages(workflow.StageSet{
		Download:   download,
		Extract:    fakeStage{},
		Diarize:    fakeStage{},
		Transcribe: fakeStage{},
		Align:      fakeStage{},
		Voices:     fakeStage{},
		Translate:  fakeStage{},
		Synthesize: fakeStage{},
		Sync:       fakeStage{final: true},
	})

	d, err := daemon.New(cfg, store, repo, manager, bus, logging.NewNop(), daemon.WithCatalog(fakeCatalog{}))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		env.release()
		d.Stop()
	})
	env.daemon = d

	cfg.API.Bind = d.Addr()
	env.configPath = filepath.Join(testsupport.BaseDir(cfg), "dubber.toml")
	writeTestConfig(t, env.configPath, cfg)

	env.source = filepath.Join(testsupport.BaseDir(cfg), "clip.mp4")
	testsupport.WriteFile(t, env.source, []byte("video"))
	return env
}

func (e *cliTestEnv) release() {
	if e.gate == nil {
		return
	}
	select {
	case <-e.gate:
	default:
		close(e.gate)
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
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

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
