package pipeline

import (
	"context"
	"log/slog"

	"dubber/internal/align"
	"dubber/internal/logging"
	"dubber/internal/services"
	"dubber/internal/stage"
)

// Align attributes transcript segments to diarized speakers.
type Align struct {
	logger *slog.Logger
}

// NewAlign constructs the alignment step.
func NewAlign(logger *slog.Logger) *Align {
	return &Align{logger: logger}
}

func (a *Align) Prepare(context.Context, *stage.Run) error { return nil }

func (a *Align) Execute(ctx context.Context, run *stage.Run) error {
	logger := logging.FromContext(ctx, a.logger)
	result := align.Align(run.Intervals, run.Transcript)
	if len(result.Segments) == 0 {
		return services.Wrap(services.ErrTranscription, "align", "attribute segments",
			"no speech segments found in source", nil)
	}
	for i := range result.Speakers {
		if profile, ok := run.Profiles[result.Speakers[i].ID]; ok {
			result.Speakers[i].Profile = profile
		}
	}
	run.Segments = result.Segments
	run.Speakers = result.Speakers

	if result.Unattributed > 0 {
		logging.WarnWithContext(logger, "segments without a diarized speaker", "align_unattributed",
			logging.Int("count", result.Unattributed),
			logging.String(logging.FieldImpact, "these lines share one fallback voice"),
		)
	}
	if err := stage.WriteArtifact(run, "segments", run.Segments); err != nil {
		logger.Debug("segments artifact not written", logging.Error(err))
	}
	logger.Info("segments aligned",
		logging.Int("segments", len(result.Segments)),
		logging.Int("speakers", len(result.Speakers)),
		logging.Int("dropped", result.Dropped),
		logging.Int("folded", result.Folded),
	)
	return nil
}

func (a *Align) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("align")
}
