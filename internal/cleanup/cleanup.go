// Package cleanup purges finished jobs after the retention window and
// removes job directories no job record points at.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dubber/internal/jobs"
	"dubber/internal/logging"
)

// Result reports what a sweep removed.
type Result struct {
	Jobs    []string
	Orphans []string
	Errors  []Error
}

// Error pairs a job ID or path with the failure to remove it.
type Error struct {
	Target string
	Err    error
}

// JobSource lists terminal jobs older than a cutoff and every known job.
type JobSource interface {
	Expired(ctx context.Context, cutoff time.Time) ([]jobs.Job, error)
	List(ctx context.Context, statuses ...jobs.Status) ([]jobs.Job, error)
}

// Remover purges one job with its files.
type Remover interface {
	Remove(ctx context.Context, id string) error
}

// Sweeper runs retention passes.
type Sweeper struct {
	source  JobSource
	remover Remover
	maxAge  time.Duration
	dirs    []string
	logger  *slog.Logger
	now     func() time.Time
}

// NewSweeper purges jobs finished more than maxAge ago. dirs are the roots
// (work and output directories) holding one subdirectory per job.
func NewSweeper(source JobSource, remover Remover, maxAge time.Duration, dirs []string, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sweeper{
		source:  source,
		remover: remover,
		maxAge:  maxAge,
		dirs:    dirs,
		logger:  logging.NewComponentLogger(logger, "retention"),
		now:     time.Now,
	}
}

// Sweep removes expired jobs, then job directories with no matching record.
func (s *Sweeper) Sweep(ctx context.Context) Result {
	var result Result
	expired, err := s.source.Expired(ctx, s.now().Add(-s.maxAge))
	if err != nil {
		result.Errors = append(result.Errors, Error{Target: "expired jobs", Err: err})
		return result
	}
	for _, job := range expired {
		if err := s.remover.Remove(ctx, job.ID); err != nil {
			result.Errors = append(result.Errors, Error{Target: job.ID, Err: err})
			s.logger.Warn("failed to purge expired job",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "retention_purge_failed"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Jobs = append(result.Jobs, job.ID)
		s.logger.Info("purged expired job",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("status", string(job.Status)),
			logging.Duration("age", s.now().Sub(job.UpdatedAt)),
			logging.String(logging.FieldEventType, "retention_purge"),
		)
	}

	known, err := s.source.List(ctx)
	if err != nil {
		result.Errors = append(result.Errors, Error{Target: "job list", Err: err})
		return result
	}
	active := make(map[string]struct{}, len(known))
	for _, job := range known {
		active[job.ID] = struct{}{}
	}
	for _, dir := range s.dirs {
		orphans := CleanOrphaned(dir, active, s.logger)
		result.Orphans = append(result.Orphans, orphans.Orphans...)
		result.Errors = append(result.Errors, orphans.Errors...)
	}
	return result
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CleanOrphaned removes subdirectories of root whose name is not a known
// job ID. Files are left alone.
func CleanOrphaned(root string, known map[string]struct{}, logger *slog.Logger) Result {
	var result Result
	root = strings.TrimSpace(root)
	if root == "" {
		return result
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			result.Errors = append(result.Errors, Error{Target: root, Err: err})
		}
		return result
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := known[entry.Name()]; ok {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, Error{Target: path, Err: err})
			if logger != nil {
				logger.Warn("failed to remove orphaned job directory",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "orphan_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check work_dir and output_dir permissions"),
				)
			}
			continue
		}
		result.Orphans = append(result.Orphans, path)
		if logger != nil {
			logger.Info("removed orphaned job directory",
				logging.String("path", path),
				logging.String(logging.FieldEventType, "orphan_cleanup"),
			)
		}
	}
	return result
}
