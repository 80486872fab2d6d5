package logging

import (
	"context"
	"log/slog"

	"dubber/internal/services"
)

// Attribute keys shared by every package. Per-job log queries filter on
// FieldStage and FieldEventType, so keep them stable.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldStage         = "stage"
	FieldSegment       = "segment"
	FieldSpeaker       = "speaker"
	FieldCorrelationID = "correlation_id"
	FieldAlert         = "alert"      // marks lines the console renders bold
	FieldEventType     = "event_type" // stage_start, stage_complete, ...
	FieldErrorHint     = "error_hint"
	FieldImpact        = "impact"
)

// ContextFields turns the job, stage and request IDs carried by ctx into
// attributes.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	add := func(key string, value string, ok bool) {
		if ok {
			attrs = append(attrs, slog.String(key, value))
		}
	}
	id, ok := services.JobIDFromContext(ctx)
	add(FieldJobID, id, ok)
	stage, ok := services.StageFromContext(ctx)
	add(FieldStage, stage, ok)
	rid, ok := services.RequestIDFromContext(ctx)
	add(FieldCorrelationID, rid, ok)
	return attrs
}

// WithContext appends ContextFields(ctx) to logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if attrs := ContextFields(ctx); len(attrs) > 0 {
		return logger.With(Args(attrs...)...)
	}
	return logger
}

type ctxLogger struct{}

// IntoContext attaches a job-scoped logger so stage code deep in the call
// tree writes to that job's log.
func IntoContext(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLogger{}, logger)
}

// FromContext returns the IntoContext logger, else fallback, else a no-op.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if l, _ := ctx.Value(ctxLogger{}).(*slog.Logger); l != nil {
			return l
		}
	}
	if fallback != nil {
		return fallback
	}
	return NewNop()
}
