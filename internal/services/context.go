package services

import "context"

// ctxKey values identify the string annotations carried through a job's
// context. Empty values are never stored.
type ctxKey int

const (
	keyJobID ctxKey = iota
	keyStage
	keyRequestID
)

func withString(ctx context.Context, k ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

func stringFrom(ctx context.Context, k ctxKey) (string, bool) {
	v, _ := ctx.Value(k).(string)
	return v, v != ""
}

func WithJobID(ctx context.Context, id string) context.Context { return withString(ctx, keyJobID, id) }
func JobIDFromContext(ctx context.Context) (string, bool)      { return stringFrom(ctx, keyJobID) }

// WithStage records the job status name of the step currently running.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, keyStage, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, keyStage) }

// WithRequestID carries the API request's correlation ID into the job.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, keyRequestID, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, keyRequestID) }
