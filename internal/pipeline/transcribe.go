package pipeline

import (
	"context"
	"log/slog"

	"dubber/internal/logging"
	"dubber/internal/services"
	"dubber/internal/stage"
)

// Transcribe converts the extracted audio into time-stamped text.
type Transcribe struct {
	transcriber Transcriber
	logger      *slog.Logger
}

// NewTranscribe constructs the transcription step.
func NewTranscribe(transcriber Transcriber, logger *slog.Logger) *Transcribe {
	return &Transcribe{transcriber: transcriber, logger: logger}
}

func (t *Transcribe) Prepare(_ context.Context, run *stage.Run) error {
	if run.AudioPath == "" {
		return stage.Missing(services.ErrTranscription, "transcribe", "extracted audio")
	}
	return nil
}

func (t *Transcribe) Execute(ctx context.Context, run *stage.Run) error {
	segments, err := t.transcriber.Transcribe(ctx, run.AudioPath, run.WorkDir, run.Job.SourceLanguage)
	if err != nil {
		return err
	}
	run.Transcript = segments
	run.Report(1, 1)

	words := 0
	for _, seg := range segments {
		words += len(seg.Words)
	}
	logging.FromContext(ctx, t.logger).Info("audio transcribed",
		logging.Int("segments", len(segments)),
		logging.Int("timed_words", words),
		logging.String("language_hint", run.Job.SourceLanguage),
	)
	return nil
}

func (t *Transcribe) HealthCheck(context.Context) stage.Health {
	return checkReady("transcribe", t.transcriber)
}
