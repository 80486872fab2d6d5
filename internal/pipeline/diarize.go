package pipeline

import (
	"context"
	"log/slog"

	"dubber/internal/acoustic"
	"dubber/internal/logging"
	"dubber/internal/services"
	"dubber/internal/stage"
)

// Diarize labels speakers and profiles each speaker's voice.
type Diarize struct {
	diarizer Diarizer
	profiler *acoustic.Profiler
	logger   *slog.Logger
}

// NewDiarize constructs the diarization step.
func NewDiarize(diarizer Diarizer, profiler *acoustic.Profiler, logger *slog.Logger) *Diarize {
	return &Diarize{diarizer: diarizer, profiler: profiler, logger: logger}
}

func (d *Diarize) Prepare(_ context.Context, run *stage.Run) error {
	if run.AudioPath == "" {
		return stage.Missing(services.ErrDiarization, "diarize", "extracted audio")
	}
	return nil
}

func (d *Diarize) Execute(ctx context.Context, run *stage.Run) error {
	logger := logging.FromContext(ctx, d.logger)
	intervals, err := d.diarizer.Diarize(ctx, run.AudioPath, run.WorkDir)
	if err != nil {
		return err
	}
	run.Intervals = intervals
	run.Report(1, 2)
	if len(intervals) == 0 {
		logging.WarnWithContext(logger, "diarization found no speech turns", "diarization_empty",
			logging.String(logging.FieldImpact, "every transcript segment is attributed to an unknown speaker"),
		)
	}

	spans := make([]acoustic.Span, len(intervals))
	for i, iv := range intervals {
		spans[i] = acoustic.Span{Speaker: iv.Speaker, Start: iv.Start, End: iv.End}
	}
	profiles, err := d.profiler.ProfileSpeakers(ctx, run.AudioPath, spans)
	if err != nil {
		return services.Wrap(services.ErrDiarization, "diarize", "acoustic profiling", "", err)
	}
	run.Profiles = profiles
	run.Report(2, 2)

	if err := stage.WriteArtifact(run, "diarization", intervals); err != nil {
		logger.Debug("diarization artifact not written", logging.Error(err))
	}
	logger.Info("speakers profiled",
		logging.Int("turns", len(intervals)),
		logging.Int("speakers", len(profiles)),
	)
	return nil
}

func (d *Diarize) HealthCheck(context.Context) stage.Health {
	if d.profiler == nil {
		return stage.Unhealthy("diarize", "acoustic profiler not configured")
	}
	return checkReady("diarize", d.diarizer)
}
