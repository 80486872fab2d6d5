package pipeline

import (
	"context"
	"log/slog"

	"dubber/internal/logging"
	"dubber/internal/services"
	"dubber/internal/stage"
	"dubber/internal/translate"
)

// Translate runs timing-aware translation over every segment.
type Translate struct {
	translator *translate.Translator
	logger     *slog.Logger
}

// NewTranslate constructs the translation step.
func NewTranslate(translator *translate.Translator, logger *slog.Logger) *Translate {
	return &Translate{translator: translator, logger: logger}
}

func (t *Translate) Prepare(_ context.Context, run *stage.Run) error {
	if len(run.Segments) == 0 {
		return stage.Missing(services.ErrTranslation, "translate", "aligned segments")
	}
	return nil
}

func (t *Translate) Execute(ctx context.Context, run *stage.Run) error {
	err := t.translator.TranslateSegments(ctx, run.Segments, run.Job.SourceLanguage, run.Job.TargetLanguage, run.Report)
	if err != nil {
		return err
	}
	logger := logging.FromContext(ctx, t.logger)
	if err := stage.WriteArtifact(run, "translation", run.Segments); err != nil {
		logger.Debug("translation artifact not written", logging.Error(err))
	}
	logger.Info("segments translated",
		logging.Int("segments", len(run.Segments)),
		logging.Int("over_budget", run.FlaggedSegments()),
	)
	return nil
}

func (t *Translate) HealthCheck(context.Context) stage.Health {
	if t.translator == nil {
		return stage.Unhealthy("translate", "translator not configured")
	}
	return checkReady("translate", t.translator.Backend())
}
