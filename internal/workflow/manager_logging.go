package workflow

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/services"
)

var titleCaser = cases.Title(language.English)

// jobLoggers carries the loggers for one job: the daemon logger and, when
// available, the job's file handler.
type jobLoggers struct {
	base *slog.Logger
	file slog.Handler
}

func (l jobLoggers) forStage(ctx context.Context, stageName string) *slog.Logger {
	logger := logging.ForStage(l.base, stageName)
	if l.file != nil {
		file := l.file.WithAttrs([]slog.Attr{slog.String(logging.FieldStage, stageName)})
		logger = logging.TeeLogger(logger, file)
	}
	return withJobFields(ctx, logger)
}

func (l jobLoggers) job(ctx context.Context) *slog.Logger {
	logger := l.base
	if l.file != nil {
		logger = logging.TeeLogger(l.base, l.file)
	}
	return withJobFields(ctx, logger)
}

// withJobFields attaches the job and request identifiers. The stage field is
// added by ForStage so it is not repeated here.
func withJobFields(ctx context.Context, logger *slog.Logger) *slog.Logger {
	attrs := make([]any, 0, 2)
	if id, ok := services.JobIDFromContext(ctx); ok {
		attrs = append(attrs, logging.String(logging.FieldJobID, id))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		attrs = append(attrs, logging.String(logging.FieldCorrelationID, rid))
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrs...)
}

func withStageContext(ctx context.Context, stageName, jobID, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if jobID != "" {
		ctx = services.WithJobID(ctx, jobID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

// deriveStageLabel renders a status as a human label, e.g. "Generating Speech".
func deriveStageLabel(status jobs.Status) string {
	if status == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(string(status), "_", " "))
}
