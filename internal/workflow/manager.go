package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"dubber/internal/config"
	"dubber/internal/fileutil"
	"dubber/internal/jobs"
	"dubber/internal/language"
	"dubber/internal/logging"
	"dubber/internal/metrics"
	"dubber/internal/notifications"
	"dubber/internal/services"
	"dubber/internal/services/ytdlp"
)

// StatsRecent is how many recent jobs Stats reports.
const StatsRecent = 10

const maxAccentHintLength = 32

// Manager owns job submission and scheduling.
type Manager struct {
	cfg      *config.Config
	repo     *jobs.Repository
	logger   *slog.Logger
	notifier notifications.Service
	jobLog   *JobLogger
	newID    func() string

	slots     *semaphore.Weighted
	heartbeat *HeartbeatMonitor

	mu      sync.Mutex
	stages  []pipelineStage
	pending []string
	wake    chan struct{}
	active  int
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier replaces the notifier built from configuration.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithIDGenerator overrides job ID generation.
func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, repo *jobs.Repository, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := int64(cfg.Workflow.MaxConcurrentJobs)
	if workers <= 0 {
		workers = 1
	}
	m := &Manager{
		cfg:       cfg,
		repo:      repo,
		logger:    logging.NewComponentLogger(logger, "workflow-manager"),
		notifier:  notifications.NewService(cfg),
		jobLog:    NewJobLogger(cfg),
		newID:     uuid.NewString,
		slots:     semaphore.NewWeighted(workers),
		heartbeat: NewHeartbeatMonitor(heartbeatInterval(cfg)),
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit validates req, creates the job and queues it. Validation failures
// return services.ErrInvalidInput and create nothing.
func (m *Manager) Submit(ctx context.Context, req Request) (jobs.Job, error) {
	spec, err := m.validate(req)
	if err != nil {
		return jobs.Job{}, err
	}
	job, err := m.repo.Create(ctx, m.newID(), spec)
	if err != nil {
		return jobs.Job{}, err
	}
	m.enqueue(job.ID)
	logging.WithContext(services.WithJobID(ctx, job.ID), m.logger).Info("job submitted",
		logging.String("source", job.Source),
		logging.String("target_language", job.TargetLanguage),
		logging.String("source_language", job.SourceLanguage),
		logging.String(logging.FieldEventType, "job_submitted"),
	)
	return job, nil
}

func (m *Manager) validate(req Request) (jobs.Spec, error) {
	source := strings.TrimSpace(req.Source)
	switch {
	case source == "":
		return jobs.Spec{}, invalid("source is required")
	case ytdlp.IsURL(source):
	case strings.Contains(source, "://"):
		return jobs.Spec{}, invalid("source URL must be http or https with a host")
	default:
		expanded, err := config.ExpandPath(source)
		if err != nil || !fileutil.IsRegularFile(expanded) {
			return jobs.Spec{}, invalid(fmt.Sprintf("source %q is neither a URL nor an existing file", source))
		}
		source = expanded
	}

	target, err := language.NormalizeTarget(req.TargetLanguage)
	if err != nil {
		return jobs.Spec{}, invalid(fmt.Sprintf("target language: %v", err))
	}
	var sourceLang string
	if raw := strings.TrimSpace(req.SourceLanguage); raw != "" {
		if sourceLang, err = language.Normalize(raw); err != nil {
			return jobs.Spec{}, invalid(fmt.Sprintf("source language: %v", err))
		}
	}
	accent := strings.TrimSpace(req.AccentHint)
	if len(accent) > maxAccentHintLength {
		return jobs.Spec{}, invalid("accent hint is too long")
	}
	return jobs.Spec{
		Source:         source,
		TargetLanguage: target,
		SourceLanguage: sourceLang,
		AccentHint:     accent,
	}, nil
}

func invalid(message string) error {
	return services.Wrap(services.ErrInvalidInput, "submit", "validate", message, nil)
}

// Status returns the current snapshot of a job.
func (m *Manager) Status(ctx context.Context, id string) (jobs.Job, error) {
	return m.repo.Get(ctx, id)
}

// Result returns the dubbed output path of a completed job.
func (m *Manager) Result(ctx context.Context, id string) (string, error) {
	job, err := m.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if job.Status != jobs.StatusCompleted {
		return "", fmt.Errorf("%w: job %s is %s", services.ErrNotReady, id, job.Status)
	}
	return job.ResultPath, nil
}

// Stats reports the total, per-status counts and recent jobs.
func (m *Manager) Stats(ctx context.Context) (jobs.Stats, error) {
	return m.repo.Stats(ctx, StatsRecent)
}

// List returns jobs newest first, optionally filtered by status.
func (m *Manager) List(ctx context.Context, statuses ...jobs.Status) ([]jobs.Job, error) {
	return m.repo.List(ctx, statuses...)
}

// Wait blocks until the job is terminal or ctx ends.
func (m *Manager) Wait(ctx context.Context, id string) (jobs.Job, error) {
	return m.repo.Wait(ctx, id)
}

// Cancel flags a job for cancellation. Queued jobs fail immediately; running
// jobs stop at the next step boundary.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	if m.dequeue(id) {
		job, err := m.repo.Fail(ctx, id, jobs.CancelReason)
		if err != nil {
			m.requeue(id)
			return err
		}
		m.finished(job, services.ErrCancelled)
		return nil
	}
	_, err := m.repo.RequestCancel(ctx, id)
	return err
}

// Remove purges a terminal job with its working and output directories.
func (m *Manager) Remove(ctx context.Context, id string) error {
	if _, err := m.repo.Remove(ctx, id); err != nil {
		return err
	}
	var errs []error
	for _, dir := range []string{m.cfg.JobWorkDir(id), m.cfg.JobOutputDir(id)} {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("remove job files: %w", err)
	}
	return nil
}

func (m *Manager) enqueue(id string) {
	m.mu.Lock()
	m.pending = append(m.pending, id)
	metrics.SetQueueDepth(len(m.pending))
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// requeue puts id back at the head of the queue.
func (m *Manager) requeue(id string) {
	m.mu.Lock()
	m.pending = append([]string{id}, m.pending...)
	metrics.SetQueueDepth(len(m.pending))
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) dequeue(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, pending := range m.pending {
		if pending == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			metrics.SetQueueDepth(len(m.pending))
			return true
		}
	}
	return false
}

func (m *Manager) pop() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return "", false
	}
	id := m.pending[0]
	m.pending = m.pending[1:]
	metrics.SetQueueDepth(len(m.pending))
	return id, true
}

// QueueDepth returns the number of jobs waiting for a slot.
func (m *Manager) QueueDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
