package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"dubber/internal/api"
	"dubber/internal/cleanup"
	"dubber/internal/config"
	"dubber/internal/dubbing"
	"dubber/internal/events"
	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/synth"
	"dubber/internal/workflow"
)

// Daemon coordinates background processing and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *jobs.Store
	repo    *jobs.Repository
	manager *workflow.Manager
	bus     *events.Bus
	catalog synth.Catalog

	forwarder     *events.Forwarder
	sweeper       *cleanup.Sweeper
	sweepInterval time.Duration

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithCatalog exposes the voice catalog through the API.
func WithCatalog(catalog synth.Catalog) Option {
	return func(d *Daemon) { d.catalog = catalog }
}

// WithForwarder runs an event forwarder for the daemon lifetime.
func WithForwarder(f *events.Forwarder) Option {
	return func(d *Daemon) { d.forwarder = f }
}

// WithSweeper runs the retention sweeper every interval.
func WithSweeper(s *cleanup.Sweeper, interval time.Duration) Option {
	return func(d *Daemon) {
		d.sweeper = s
		d.sweepInterval = interval
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, repo *jobs.Repository, manager *workflow.Manager, bus *events.Bus, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || repo == nil || manager == nil || bus == nil {
		return nil, errors.New("daemon requires config, store, repository, workflow manager, and event bus")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		repo:     repo,
		manager:  manager,
		bus:      bus,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, fails jobs orphaned by a previous run,
// and launches the workflow manager, background loops and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dubber daemon instance is already running")
	}

	recovered, err := d.repo.Recover(ctx, jobs.DaemonStopReason)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover jobs: %w", err)
	}
	if len(recovered) > 0 {
		d.logger.Warn("failed jobs left unfinished by a previous run",
			logging.Int("count", len(recovered)),
			logging.String(logging.FieldEventType, "jobs_recovered"),
			logging.String(logging.FieldImpact, "interrupted jobs must be resubmitted"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.manager.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.manager.Stop()
		_ = d.lock.Unlock()
		return err
	}
	if d.forwarder != nil {
		d.forwarder.Start(runCtx)
	}
	if d.sweeper != nil && d.sweepInterval > 0 {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.sweeper.Run(runCtx, d.sweepInterval)
		}()
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("dubber daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// Stop halts background processing and releases the instance lock. Jobs
// still running are failed with jobs.DaemonStopReason.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	d.api.stop()
	d.manager.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if d.forwarder != nil {
		d.forwarder.Wait()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
	d.logger.Info("dubber daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool { return d.running.Load() }

// Addr returns the address the API listens on, empty when not serving.
func (d *Daemon) Addr() string { return d.api.address() }

// Health aggregates daemon, database and pipeline readiness.
func (d *Daemon) Health(ctx context.Context) api.HealthResponse {
	resp := api.HealthResponse{
		Running:    d.running.Load(),
		PID:        os.Getpid(),
		QueueDepth: d.manager.QueueDepth(),
		ActiveJobs: d.manager.ActiveJobs(),
		Stages:     api.FromStageHealth(d.manager.Health(ctx)),
	}
	dbHealth, err := d.store.CheckHealth(ctx)
	if err != nil && dbHealth.Error == "" {
		dbHealth.Error = err.Error()
	}
	resp.Database = api.FromDatabaseHealth(dbHealth)

	resp.Ready = resp.Running && dbHealth.Error == "" && dbHealth.IntegrityCheck
	for _, stage := range resp.Stages {
		if !stage.Ready {
			resp.Ready = false
		}
	}
	return resp
}

// Voices lists catalog voices able to speak language.
func (d *Daemon) Voices(ctx context.Context, language string) ([]dubbing.VoiceCandidate, error) {
	if d.catalog == nil {
		return nil, errors.New("voice catalog unavailable")
	}
	return d.catalog.Voices(ctx, language)
}
