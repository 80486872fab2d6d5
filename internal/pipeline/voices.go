package pipeline

import (
	"context"
	"log/slog"

	"dubber/internal/logging"
	"dubber/internal/services"
	"dubber/internal/stage"
	"dubber/internal/synth"
	"dubber/internal/voicematch"
)

// Voices assigns one synthesis voice to every speaker.
type Voices struct {
	catalog synth.Catalog
	matcher *voicematch.Matcher
	logger  *slog.Logger
}

// NewVoices constructs the voice matching step.
func NewVoices(catalog synth.Catalog, matcher *voicematch.Matcher, logger *slog.Logger) *Voices {
	return &Voices{catalog: catalog, matcher: matcher, logger: logger}
}

func (v *Voices) Prepare(_ context.Context, run *stage.Run) error {
	if len(run.Speakers) == 0 {
		return stage.Missing(services.ErrNoCandidateAvailable, "voices", "aligned speakers")
	}
	return nil
}

func (v *Voices) Execute(ctx context.Context, run *stage.Run) error {
	logger := logging.FromContext(ctx, v.logger)
	candidates, err := v.catalog.Voices(ctx, run.Job.TargetLanguage)
	if err != nil {
		return services.Wrap(services.ErrNoCandidateAvailable, "voices", "list catalog", run.Job.TargetLanguage, err)
	}
	assignments, err := v.matcher.Assign(run.Speakers, candidates, run.Job.TargetLanguage, run.Job.AccentHint)
	if err != nil {
		return err
	}
	voicematch.Apply(run.Speakers, assignments)
	for _, a := range assignments {
		logger.Info("speaker voice",
			logging.String(logging.FieldSpeaker, a.SpeakerID),
			logging.String("voice_id", a.Voice.ID),
			logging.String("voice_name", a.Voice.Name),
			logging.Float64("score", a.Score.Total),
			logging.Bool("reused", a.Reused),
		)
	}
	if err := stage.WriteArtifact(run, "speakers", run.Speakers); err != nil {
		logger.Debug("speakers artifact not written", logging.Error(err))
	}
	run.Report(1, 1)
	return nil
}

func (v *Voices) HealthCheck(context.Context) stage.Health {
	if v.matcher == nil {
		return stage.Unhealthy("voices", "voice matcher not configured")
	}
	return checkReady("voices", v.catalog)
}
