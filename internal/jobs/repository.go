package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dubber/internal/services"
)

// ErrInvalidTransition is returned when a state change violates the pipeline
// order or targets a terminal job.
var ErrInvalidTransition = errors.New("invalid transition")

// Observer receives a copy of every snapshot written by the repository.
type Observer func(Job)

// Repository owns job records. Readers load an immutable snapshot without
// locking; writers serialize per job and persist before publishing.
type Repository struct {
	store    *Store
	now      func() time.Time
	observer Observer

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	snapshot atomic.Pointer[Job]
	writeMu  sync.Mutex
	done     chan struct{}
	doneOnce sync.Once
}

func newEntry(job Job) *entry {
	e := &entry{done: make(chan struct{})}
	e.snapshot.Store(&job)
	if job.Status.IsTerminal() {
		e.markDone()
	}
	return e
}

func (e *entry) markDone() {
	e.doneOnce.Do(func() { close(e.done) })
}

// RepositoryOption customizes a Repository.
type RepositoryOption func(*Repository)

// WithObserver registers fn to be called after each successful write.
func WithObserver(fn Observer) RepositoryOption {
	return func(r *Repository) { r.observer = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) RepositoryOption {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRepository wraps store with the in-memory snapshot layer.
func NewRepository(store *Store, opts ...RepositoryOption) *Repository {
	r := &Repository{
		store:   store,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetObserver replaces the write observer. It must be called before jobs are
// created.
func (r *Repository) SetObserver(fn Observer) {
	r.observer = fn
}

// Create registers a new job in the initialized state.
func (r *Repository) Create(ctx context.Context, id string, spec Spec) (Job, error) {
	if id == "" {
		return Job{}, fmt.Errorf("%w: empty job id", services.ErrInvalidInput)
	}
	now := r.now().UTC()
	job := Job{
		ID:             id,
		Source:         spec.Source,
		TargetLanguage: spec.TargetLanguage,
		SourceLanguage: spec.SourceLanguage,
		AccentHint:     spec.AccentHint,
		Status:         StatusInitialized,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	r.mu.Lock()
	if _, exists := r.entries[id]; exists {
		r.mu.Unlock()
		return Job{}, fmt.Errorf("%w: job %s already exists", services.ErrInvalidInput, id)
	}
	e := newEntry(job)
	r.entries[id] = e
	r.mu.Unlock()

	if err := r.store.Save(ctx, job); err != nil {
		r.mu.Lock()
		delete(r.entries, id)
		r.mu.Unlock()
		return Job{}, err
	}
	r.notify(job)
	return job, nil
}

// Get returns the current snapshot of a job.
func (r *Repository) Get(ctx context.Context, id string) (Job, error) {
	e, err := r.lookup(ctx, id)
	if err != nil {
		return Job{}, err
	}
	return *e.snapshot.Load(), nil
}

// Transition moves the job to the next pipeline state. Progress is raised to
// the floor of the new state's band and never lowered.
func (r *Repository) Transition(ctx context.Context, id string, to Status) (Job, error) {
	if to == StatusFailed || to == StatusCompleted {
		return Job{}, fmt.Errorf("%w: use Fail or Complete to enter %s", ErrInvalidTransition, to)
	}
	return r.update(ctx, id, func(job *Job) error {
		if !CanTransition(job.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, to)
		}
		if job.Status == StatusInitialized {
			job.StartedAt = r.now().UTC()
		}
		job.Status = to
		if band, ok := to.Band(); ok {
			job.Progress = max(job.Progress, band.Floor)
		}
		return nil
	})
}

// Progress records done/total completion within the current state's band.
func (r *Repository) Progress(ctx context.Context, id string, done, total int) (Job, error) {
	return r.update(ctx, id, func(job *Job) error {
		if job.Status.IsTerminal() {
			return fmt.Errorf("%w: progress on %s job", ErrInvalidTransition, job.Status)
		}
		band, ok := job.Status.Band()
		if !ok {
			return nil
		}
		job.Progress = max(job.Progress, band.At(done, total))
		return nil
	})
}

// Complete moves a synchronizing job to completed with its result path.
func (r *Repository) Complete(ctx context.Context, id, resultPath string) (Job, error) {
	return r.update(ctx, id, func(job *Job) error {
		if !CanTransition(job.Status, StatusCompleted) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, StatusCompleted)
		}
		if resultPath == "" {
			return fmt.Errorf("%w: completed job needs a result path", services.ErrInvalidInput)
		}
		job.Status = StatusCompleted
		job.Progress = BandCompleted.Ceil
		job.ResultPath = resultPath
		job.ErrorMessage = ""
		job.CompletedAt = r.now().UTC()
		return nil
	})
}

// Fail moves a non-terminal job to failed. Progress keeps its last value.
func (r *Repository) Fail(ctx context.Context, id, message string) (Job, error) {
	return r.update(ctx, id, func(job *Job) error {
		if !CanTransition(job.Status, StatusFailed) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, StatusFailed)
		}
		if message == "" {
			message = "unknown error"
		}
		job.Status = StatusFailed
		job.ErrorMessage = message
		job.ResultPath = ""
		job.CompletedAt = r.now().UTC()
		return nil
	})
}

// Annotate updates the job's descriptive counters. Lifecycle fields are
// restored after fn runs.
func (r *Repository) Annotate(ctx context.Context, id string, fn func(*Job)) (Job, error) {
	return r.update(ctx, id, func(job *Job) error {
		before := *job
		fn(job)
		job.ID = before.ID
		job.Status = before.Status
		job.Progress = before.Progress
		job.ErrorMessage = before.ErrorMessage
		job.ResultPath = before.ResultPath
		job.CancelRequested = before.CancelRequested
		job.CreatedAt = before.CreatedAt
		job.StartedAt = before.StartedAt
		job.CompletedAt = before.CompletedAt
		return nil
	})
}

// RequestCancel flags a running job for cooperative cancellation.
func (r *Repository) RequestCancel(ctx context.Context, id string) (Job, error) {
	return r.update(ctx, id, func(job *Job) error {
		if job.Status.IsTerminal() {
			return fmt.Errorf("%w: job %s is already %s", ErrInvalidTransition, id, job.Status)
		}
		job.CancelRequested = true
		return nil
	})
}

// CancelRequested reports whether a cancel flag is set on the job.
func (r *Repository) CancelRequested(id string) bool {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return e.snapshot.Load().CancelRequested
}

// Done returns a channel closed once the job reaches a terminal state.
func (r *Repository) Done(ctx context.Context, id string) (<-chan struct{}, error) {
	e, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.done, nil
}

// Wait blocks until the job is terminal or ctx ends.
func (r *Repository) Wait(ctx context.Context, id string) (Job, error) {
	e, err := r.lookup(ctx, id)
	if err != nil {
		return Job{}, err
	}
	select {
	case <-e.done:
		return *e.snapshot.Load(), nil
	case <-ctx.Done():
		return *e.snapshot.Load(), ctx.Err()
	}
}

// List returns persisted jobs newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, statuses ...Status) ([]Job, error) {
	return r.store.List(ctx, statuses...)
}

// Stats returns the total, per-status counts and the recent most recent jobs.
func (r *Repository) Stats(ctx context.Context, recent int) (Stats, error) {
	counts, err := r.store.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Counts: make(map[Status]int, len(allStatuses))}
	for _, status := range allStatuses {
		stats.Counts[status] = counts[status]
		stats.Total += counts[status]
	}
	if stats.Recent, err = r.store.Recent(ctx, recent); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Remove deletes a terminal job from memory and storage.
func (r *Repository) Remove(ctx context.Context, id string) (Job, error) {
	e, err := r.lookup(ctx, id)
	if err != nil {
		return Job{}, err
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	job := *e.snapshot.Load()
	if !job.Status.IsTerminal() {
		return Job{}, fmt.Errorf("%w: job %s is still %s", ErrInvalidTransition, id, job.Status)
	}
	if _, err := r.store.Remove(ctx, id); err != nil {
		return Job{}, err
	}
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
	return job, nil
}

// Expired returns terminal jobs last updated before cutoff.
func (r *Repository) Expired(ctx context.Context, cutoff time.Time) ([]Job, error) {
	return r.store.FinishedBefore(ctx, cutoff)
}

// Recover fails every persisted non-terminal job with reason. It is meant to
// run once at daemon start, before any job is scheduled.
func (r *Repository) Recover(ctx context.Context, reason string) ([]Job, error) {
	unfinished, err := r.store.Unfinished(ctx)
	if err != nil {
		return nil, err
	}
	recovered := make([]Job, 0, len(unfinished))
	for _, job := range unfinished {
		now := r.now().UTC()
		job.Status = StatusFailed
		job.ErrorMessage = reason
		job.ResultPath = ""
		job.UpdatedAt = now
		job.CompletedAt = now
		if err := r.store.Save(ctx, job); err != nil {
			return recovered, err
		}
		r.mu.Lock()
		delete(r.entries, job.ID)
		r.mu.Unlock()
		recovered = append(recovered, job)
		r.notify(job)
	}
	return recovered, nil
}

func (r *Repository) lookup(ctx context.Context, id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	job, found, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: job %s", services.ErrNotFound, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[id]; ok {
		return existing, nil
	}
	e = newEntry(job)
	r.entries[id] = e
	return e, nil
}

func (r *Repository) update(ctx context.Context, id string, fn func(*Job) error) (Job, error) {
	e, err := r.lookup(ctx, id)
	if err != nil {
		return Job{}, err
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	next := *e.snapshot.Load()
	if err := fn(&next); err != nil {
		return Job{}, err
	}
	if now := r.now().UTC(); now.After(next.UpdatedAt) {
		next.UpdatedAt = now
	}
	if err := r.store.Save(ctx, next); err != nil {
		return Job{}, err
	}
	e.snapshot.Store(&next)
	r.notify(next)
	if next.Status.IsTerminal() {
		e.markDone()
	}
	return next, nil
}

func (r *Repository) notify(job Job) {
	if r.observer != nil {
		r.observer(job)
	}
}
