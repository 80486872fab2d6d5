package workflow

import (
	"context"
	"errors"
	"time"

	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/metrics"
	"dubber/internal/services"
	"dubber/internal/stage"
)

// Start begins dispatching queued jobs.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.dispatch(runCtx)
	return nil
}

// Stop cancels in-flight jobs and waits for them to record their outcome.
// Jobs still queued stay initialized and are failed by the next Recover.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) dispatch(ctx context.Context) {
	defer m.wg.Done()
	for {
		// Jobs stay in pending until a slot is held.
		if err := m.slots.Acquire(ctx, 1); err != nil {
			return
		}
		id, ok := m.pop()
		if !ok {
			m.slots.Release(1)
			select {
			case <-ctx.Done():
				return
			case <-m.wake:
			}
			continue
		}
		m.setActive(1)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			defer m.slots.Release(1)
			defer m.setActive(-1)
			m.runJob(ctx, id)
		}()
	}
}

func (m *Manager) setActive(delta int) {
	m.mu.Lock()
	m.active += delta
	active := m.active
	m.mu.Unlock()
	metrics.SetRunningJobs(active)
}

// ActiveJobs returns how many jobs currently hold a pipeline slot.
func (m *Manager) ActiveJobs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) runJob(ctx context.Context, id string) {
	ctx = services.WithJobID(ctx, id)
	job, err := m.repo.Get(ctx, id)
	if err != nil {
		logging.WithContext(ctx, m.logger).Error("queued job vanished", logging.Error(err))
		return
	}
	if job.Status.IsTerminal() {
		return
	}

	loggers := jobLoggers{base: m.logger}
	if handler, closer, err := m.jobLog.Open(id); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "job log unavailable; logging to daemon log only", "job_log_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "per-job log file will be missing"),
		)
	} else {
		defer closer.Close()
		loggers.file = handler
	}
	logger := loggers.job(ctx)
	started := time.Now()
	logger.Info("job started",
		logging.String("source", job.Source),
		logging.String("target_language", job.TargetLanguage),
		logging.String(logging.FieldEventType, "job_start"),
	)

	if err := m.runPreflightChecks(ctx, logger); err != nil {
		m.failJob(ctx, loggers, job, "preflight", err, started)
		return
	}

	m.mu.Lock()
	stages := append([]pipelineStage(nil), m.stages...)
	m.mu.Unlock()

	run := stage.NewRun(job, m.cfg.JobWorkDir(id), m.cfg.JobOutputDir(id))
	for _, s := range stages {
		if m.repo.CancelRequested(id) {
			m.failJob(ctx, loggers, run.Job, s.name, services.ErrCancelled, started)
			return
		}
		if ctx.Err() != nil {
			m.failJob(ctx, loggers, run.Job, s.name, context.Cause(ctx), started)
			return
		}
		if err := m.executeStage(ctx, loggers, s, run); err != nil {
			m.failJob(ctx, loggers, run.Job, s.name, err, started)
			return
		}
	}

	final, err := m.repo.Complete(context.WithoutCancel(ctx), id, run.ResultPath)
	if err != nil {
		m.failJob(ctx, loggers, run.Job, "complete", err, started)
		return
	}
	logger.Info("job completed",
		logging.String("result_path", final.ResultPath),
		logging.Int("speakers", final.SpeakerCount),
		logging.Int("segments", final.SegmentCount),
		logging.Int("flagged_segments", final.FlaggedSegments),
		logging.Int("drifted_segments", final.DriftedSegments),
		logging.Duration("job_duration", time.Since(started)),
		logging.String(logging.FieldEventType, "job_complete"),
	)
	metrics.AddFlaggedSegments(final.FlaggedSegments)
	metrics.AddDriftedSegments(final.DriftedSegments)
	m.finished(final, nil)
	m.notifyCompleted(ctx, logger, final, time.Since(started))
}

// annotate copies the run's counters onto the job record.
func (m *Manager) annotate(ctx context.Context, run *stage.Run) (jobs.Job, error) {
	return m.repo.Annotate(ctx, run.Job.ID, func(job *jobs.Job) {
		job.SpeakerCount = len(run.Speakers)
		job.SegmentCount = len(run.Segments)
		job.FlaggedSegments = run.FlaggedSegments()
		job.DriftedSegments = run.DriftedSegments()
	})
}
