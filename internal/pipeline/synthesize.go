package pipeline

import (
	"context"
	"log/slog"

	"dubber/internal/logging"
	"dubber/internal/services"
	"dubber/internal/stage"
	"dubber/internal/synth"
)

// Synthesize renders every translated segment with its speaker's voice.
type Synthesize struct {
	synthesizer *synth.Synthesizer
	logger      *slog.Logger
}

// NewSynthesize constructs the speech generation step.
func NewSynthesize(synthesizer *synth.Synthesizer, logger *slog.Logger) *Synthesize {
	return &Synthesize{synthesizer: synthesizer, logger: logger}
}

func (s *Synthesize) Prepare(_ context.Context, run *stage.Run) error {
	if len(run.Segments) == 0 {
		return stage.Missing(services.ErrSynthesis, "synthesize", "translated segments")
	}
	for _, speaker := range run.Speakers {
		if speaker.Voice == nil {
			return stage.Missing(services.ErrSynthesis, "synthesize", "voice for "+speaker.ID)
		}
	}
	return nil
}

func (s *Synthesize) Execute(ctx context.Context, run *stage.Run) error {
	if err := s.synthesizer.SynthesizeSegments(ctx, run.Segments, run.Speakers, run.WorkDir, run.Report); err != nil {
		return err
	}
	logger := logging.FromContext(ctx, s.logger)
	if err := stage.WriteArtifact(run, "synthesis", run.Segments); err != nil {
		logger.Debug("synthesis artifact not written", logging.Error(err))
	}
	logger.Info("speech generated",
		logging.Int("segments", len(run.Segments)),
		logging.Int("drifted", run.DriftedSegments()),
	)
	return nil
}

func (s *Synthesize) HealthCheck(context.Context) stage.Health {
	if s.synthesizer == nil {
		return stage.Unhealthy("synthesize", "synthesizer not configured")
	}
	return checkReady("synthesize", s.synthesizer.Engine())
}
