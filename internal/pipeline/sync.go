package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"dubber/internal/logging"
	"dubber/internal/services"
	"dubber/internal/stage"
	"dubber/internal/synth"
	"dubber/internal/textutil"
)

// DurationTolerance bounds how far the synchronized output may deviate from
// the source duration before the job fails.
const DurationTolerance = 0.5

// Sync assembles the dubbed track and writes the final output.
type Sync struct {
	synchronizer *synth.Synchronizer
	prober       Prober
	tolerance    float64
	logger       *slog.Logger
}

// NewSync constructs the synchronization step. tolerance <= 0 selects
// DurationTolerance.
func NewSync(synchronizer *synth.Synchronizer, prober Prober, tolerance float64, logger *slog.Logger) *Sync {
	if tolerance <= 0 {
		tolerance = DurationTolerance
	}
	return &Sync{synchronizer: synchronizer, prober: prober, tolerance: tolerance, logger: logger}
}

func (s *Sync) Prepare(_ context.Context, run *stage.Run) error {
	if run.Media.Path == "" {
		return stage.Missing(services.ErrSync, "sync", "acquired media")
	}
	if len(run.Segments) == 0 {
		return stage.Missing(services.ErrSync, "sync", "synthesized segments")
	}
	if err := os.MkdirAll(run.OutputDir, 0o755); err != nil {
		return services.Wrap(services.ErrSync, "sync", "prepare", "create output directory", err)
	}
	return nil
}

func (s *Sync) Execute(ctx context.Context, run *stage.Run) error {
	logger := logging.FromContext(ctx, s.logger)
	original, err := s.originalDuration(ctx, run)
	if err != nil {
		return err
	}

	hasVideo := run.Info.HasVideo()
	output := filepath.Join(run.OutputDir, textutil.DubbedFileName(
		resultTitle(run), run.Job.ID, run.Job.TargetLanguage, outputExtension(run.Media.Path, hasVideo)))
	result, err := s.synchronizer.Render(ctx, synth.RenderInput{
		Segments:         run.Segments,
		OriginalDuration: original,
		VideoPath:        run.Media.Path,
		HasVideo:         hasVideo,
		TrackPath:        filepath.Join(run.WorkDir, "audio", "dubbed.m4a"),
		OutputPath:       output,
	})
	if err != nil {
		return err
	}
	run.Report(1, 2)

	info, err := s.prober.Probe(ctx, output)
	if err != nil {
		return services.Wrap(services.ErrSync, "sync", "verify output", filepath.Base(output), err)
	}
	got := info.DurationSeconds()
	if got <= 0 || math.Abs(got-original) > s.tolerance {
		return services.Wrap(services.ErrSync, "sync", "verify output",
			fmt.Sprintf("output runs %.2fs, source %.2fs", got, original), nil)
	}
	if hasVideo && !info.HasVideo() {
		return services.Wrap(services.ErrSync, "sync", "verify output", "video stream missing from output", nil)
	}
	run.ResultPath = output
	run.Report(2, 2)

	logger.Info("dubbed output written",
		logging.String("result_path", output),
		logging.Float64("source_seconds", original),
		logging.Float64("output_seconds", got),
		logging.Int("placed", result.Placed),
		logging.Int("silent", result.Skipped),
		logging.Int("clipped_samples", result.ClippedFrames),
	)
	return nil
}

func (s *Sync) originalDuration(ctx context.Context, run *stage.Run) (float64, error) {
	if d := run.Info.DurationSeconds(); d > 0 {
		return d, nil
	}
	info, err := s.prober.Probe(ctx, run.Media.Path)
	if err != nil {
		return 0, services.Wrap(services.ErrSync, "sync", "probe source", filepath.Base(run.Media.Path), err)
	}
	run.Info = info
	if d := info.DurationSeconds(); d > 0 {
		return d, nil
	}
	return 0, services.Wrap(services.ErrSync, "sync", "probe source", "source duration unavailable", nil)
}

func (s *Sync) HealthCheck(context.Context) stage.Health {
	if s.synchronizer == nil {
		return stage.Unhealthy("sync", "synchronizer not configured")
	}
	return checkReady("sync", s.prober)
}

func resultTitle(run *stage.Run) string {
	if title := strings.TrimSpace(run.Media.Title); title != "" {
		return title
	}
	base := filepath.Base(run.Media.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// outputExtension keeps the source container unless it cannot carry AAC.
func outputExtension(source string, hasVideo bool) string {
	if !hasVideo {
		return ".m4a"
	}
	switch ext := strings.ToLower(filepath.Ext(source)); ext {
	case ".mp4", ".mkv", ".mov", ".m4v":
		return ext
	default:
		return ".mkv"
	}
}
