package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"dubber/internal/logging"
	"dubber/internal/metrics"
	"dubber/internal/services"
	"dubber/internal/stage"
)

func (m *Manager) executeStage(ctx context.Context, loggers jobLoggers, s pipelineStage, run *stage.Run) error {
	stageCtx := withStageContext(ctx, s.name, run.Job.ID, uuid.NewString())
	stageLogger := loggers.forStage(stageCtx, s.name)
	stageCtx = logging.IntoContext(stageCtx, stageLogger)

	if s.handler == nil {
		stageLogger.Warn("missing stage handler", logging.String(logging.FieldStage, s.name))
		return services.Wrap(services.ErrConfiguration, s.name, "dispatch", "stage handler unavailable", nil)
	}

	if run.Job.Status != s.status {
		job, err := m.repo.Transition(stageCtx, run.Job.ID, s.status)
		if err != nil {
			return fmt.Errorf("enter %s: %w", s.status, err)
		}
		run.Job = job
	}

	id := run.Job.ID
	run.SetProgress(func(done, total int) {
		if _, err := m.repo.Progress(stageCtx, id, done, total); err != nil {
			stageLogger.Debug("progress update rejected", logging.Error(err))
		}
	})

	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("status", string(s.status)),
		logging.String("status_label", deriveStageLabel(s.status)),
	)

	if err := s.handler.Prepare(stageCtx, run); err != nil {
		metrics.RecordStageDuration(s.name, "failed", time.Since(stageStart).Seconds())
		return err
	}
	if err := m.executeWithHeartbeat(stageCtx, s.handler, run, stageStart); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			stageLogger.Debug("stage interrupted by shutdown")
		}
		metrics.RecordStageDuration(s.name, "failed", time.Since(stageStart).Seconds())
		return err
	}

	job, err := m.annotate(stageCtx, run)
	if err != nil {
		stageLogger.Warn("failed to record job counters", logging.Error(err))
	} else {
		run.Job = job
	}
	elapsed := time.Since(stageStart)
	metrics.RecordStageDuration(s.name, "completed", elapsed.Seconds())
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("progress", run.Job.Progress),
		logging.Duration("stage_duration", elapsed),
	)
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, run *stage.Run, started time.Time) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, logging.FromContext(ctx, m.logger), started)

	execErr := handler.Execute(ctx, run)
	hbCancel()
	hbWG.Wait()
	return execErr
}
