package logging

import (
	"context"
	"log/slog"
	"strings"
)

// stageGate filters records below min before they reach next. The wrapped
// handler runs at the most verbose level any stage needs; ForStage swaps min
// for the stage's own level.
type stageGate struct {
	next     slog.Handler
	min      slog.Level
	perStage map[string]slog.Level
}

func (g *stageGate) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= g.min && g.next.Enabled(ctx, l)
}

func (g *stageGate) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < g.min {
		return nil
	}
	return g.next.Handle(ctx, r)
}

func (g *stageGate) WithAttrs(attrs []slog.Attr) slog.Handler {
	return g.wrap(g.next.WithAttrs(attrs), g.min)
}

func (g *stageGate) WithGroup(name string) slog.Handler {
	return g.wrap(g.next.WithGroup(name), g.min)
}

func (g *stageGate) wrap(next slog.Handler, lvl slog.Level) *stageGate {
	return &stageGate{next: next, min: lvl, perStage: g.perStage}
}

// ForStage tags logger with the stage name. When logging.stage_overrides
// names the stage, its level replaces the global minimum.
func ForStage(logger *slog.Logger, stage string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if g, ok := logger.Handler().(*stageGate); ok {
		if lvl, found := g.perStage[normalizeStage(stage)]; found {
			logger = slog.New(g.wrap(g.next, lvl))
		}
	}
	return logger.With(String(FieldStage, stage))
}

func normalizeStage(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
