package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dubber/internal/config"
	"dubber/internal/logging"
)

// HeartbeatMonitor logs liveness for long-running steps so a stalled
// capability is visible in the job log.
type HeartbeatMonitor struct {
	interval time.Duration
}

// NewHeartbeatMonitor creates a monitor ticking every interval. A
// non-positive interval disables it.
func NewHeartbeatMonitor(interval time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{interval: interval}
}

func heartbeatInterval(cfg *config.Config) time.Duration {
	if cfg == nil || cfg.Workflow.HeartbeatInterval <= 0 {
		return 0
	}
	return time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second
}

// StartLoop logs a heartbeat for the running step until ctx is cancelled.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger, started time.Time) {
	defer wg.Done()
	if h == nil || h.interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("stage still running",
				logging.Duration("elapsed", time.Since(started)),
				logging.String(logging.FieldEventType, "stage_heartbeat"),
			)
		}
	}
}
