package workflow

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dubber/internal/config"
	"dubber/internal/logging"
)

// JobLogger opens the per-job JSON log files under <log_dir>/jobs.
type JobLogger struct {
	cfg   *config.Config
	level slog.Level
}

// NewJobLogger returns a JobLogger writing at the configured level.
func NewJobLogger(cfg *config.Config) *JobLogger {
	level := slog.LevelInfo
	if cfg != nil && strings.EqualFold(strings.TrimSpace(cfg.Logging.Level), "debug") {
		level = slog.LevelDebug
	}
	return &JobLogger{cfg: cfg, level: level}
}

// Open appends to the log for jobID and returns a handler for it. The closer
// must be called once the job finishes.
func (l *JobLogger) Open(jobID string) (slog.Handler, io.Closer, error) {
	if l == nil || l.cfg == nil || strings.TrimSpace(l.cfg.Paths.LogDir) == "" {
		return nil, nil, fmt.Errorf("job log directory not configured")
	}
	path := l.cfg.JobLogPath(jobID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create job log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open job log: %w", err)
	}
	return logging.NewJSONHandler(file, l.level), file, nil
}
