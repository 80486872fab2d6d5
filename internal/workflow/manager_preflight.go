package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"dubber/internal/logging"
	"dubber/internal/services"
	"dubber/internal/stage"
)

// Health reports the readiness of every configured pipeline step.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	m.mu.Lock()
	stages := append([]pipelineStage(nil), m.stages...)
	m.mu.Unlock()

	records := make([]stage.Health, 0, len(stages))
	for _, s := range stages {
		if s.handler == nil {
			records = append(records, stage.Unhealthy(s.name, "handler not configured"))
			continue
		}
		h := s.handler.HealthCheck(ctx)
		if h.Name == "" {
			h.Name = s.name
		}
		records = append(records, h)
	}
	return records
}

// runPreflightChecks verifies every step is ready before a job starts so a
// misconfigured capability fails the job up front instead of midway.
func (m *Manager) runPreflightChecks(ctx context.Context, logger *slog.Logger) error {
	var failures []string
	for _, h := range m.Health(ctx) {
		if h.Ready {
			logger.Debug("preflight check passed",
				logging.String("check", h.Name),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", h.Name),
			logging.String("detail", h.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported issue; `dubber deps` and /health show details"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", h.Name, h.Detail))
	}
	if len(failures) > 0 {
		return services.Wrap(services.ErrConfiguration, "preflight", "health",
			"pipeline not ready: "+strings.Join(failures, "; "), nil)
	}
	return nil
}
