package workflow

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/notifications"
)

func (m *Manager) notifyCompleted(ctx context.Context, logger *slog.Logger, job jobs.Job, took time.Duration) {
	m.publish(ctx, logger, notifications.EventJobCompleted, notifications.Payload{
		"title":    notificationTitle(job),
		"jobID":    job.ID,
		"language": job.TargetLanguage,
		"result":   job.ResultPath,
		"duration": took,
	})
}

func (m *Manager) notifyFailed(ctx context.Context, logger *slog.Logger, job jobs.Job, stageName, message string) {
	m.publish(ctx, logger, notifications.EventJobFailed, notifications.Payload{
		"title":    notificationTitle(job),
		"jobID":    job.ID,
		"language": job.TargetLanguage,
		"stage":    stageName,
		"error":    message,
	})
}

func (m *Manager) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send notification")
			return
		}
		logger.Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

func notificationTitle(job jobs.Job) string {
	if job.Source == "" {
		return job.ID
	}
	base := filepath.Base(job.Source)
	if base == "." || base == "/" {
		return job.Source
	}
	return base
}
