package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/metrics"
	"dubber/internal/services"
)

// failJob records err on the job and emits the failure log, metric and
// notification. Shutdown and cancellation get fixed messages so clients can
// tell them apart from pipeline errors.
func (m *Manager) failJob(ctx context.Context, loggers jobLoggers, job jobs.Job, stageName string, stageErr error, started time.Time) {
	persistCtx := context.WithoutCancel(ctx)
	logger := loggers.forStage(ctx, stageName)

	message := classifyFailure(ctx, stageErr)
	outcomeErr := stageErr
	if ctx.Err() != nil && !errors.Is(stageErr, services.ErrCancelled) {
		outcomeErr = errors.Join(services.ErrCancelled, stageErr)
	}

	failed, err := m.repo.Fail(persistCtx, job.ID, message)
	if err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
		return
	}

	attrs := []logging.Attr{
		logging.String("error_message", message),
		logging.String("error_kind", services.Kind(stageErr)),
		logging.String("failed_status", string(job.Status)),
		logging.Int("progress", failed.Progress),
		logging.Duration("job_duration", time.Since(started)),
	}
	switch {
	case errors.Is(outcomeErr, services.ErrCancelled):
		logger.Warn("job cancelled", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "job_cancelled"))...)...)
	default:
		attrs = append(attrs,
			logging.Alert("stage_failure"),
			logging.Error(stageErr),
			logging.String(logging.FieldErrorHint, failureHint(stageErr)),
		)
		logging.ErrorWithContext(logger, "stage failed", "stage_failure", attrs...)
	}

	m.finished(failed, outcomeErr)
	if !errors.Is(outcomeErr, services.ErrCancelled) {
		m.notifyFailed(persistCtx, logger, failed, stageName, message)
	}
}

func classifyFailure(ctx context.Context, stageErr error) string {
	switch {
	case errors.Is(stageErr, services.ErrCancelled):
		return jobs.CancelReason
	case ctx.Err() != nil:
		return jobs.DaemonStopReason
	case stageErr == nil:
		return "unknown error"
	}
	if message := strings.TrimSpace(stageErr.Error()); message != "" {
		return message
	}
	return "unknown error"
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrConfiguration):
		return "check dubber config and `dubber deps`"
	case errors.Is(err, services.ErrSourceUnavailable):
		return "verify the source URL or file is reachable"
	case errors.Is(err, services.ErrNoCandidateAvailable):
		return "add voices for the target language to the synthesis catalog"
	case services.IsTransient(err):
		return "capability kept failing after retries; check service availability"
	default:
		return "see the job log for details"
	}
}

// finished records the terminal outcome metric.
func (m *Manager) finished(job jobs.Job, err error) {
	switch {
	case err == nil && job.Status == jobs.StatusCompleted:
		metrics.RecordJobOutcome(metrics.OutcomeCompleted)
	case errors.Is(err, services.ErrCancelled):
		metrics.RecordJobOutcome(metrics.OutcomeCancelled)
	default:
		metrics.RecordJobOutcome(metrics.OutcomeFailed)
	}
}
