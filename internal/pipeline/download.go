package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dubber/internal/logging"
	"dubber/internal/services"
	"dubber/internal/stage"
)

// Download acquires the job source and records its container layout.
type Download struct {
	acquirer Acquirer
	prober   Prober
	logger   *slog.Logger
}

// NewDownload constructs the download step.
func NewDownload(acquirer Acquirer, prober Prober, logger *slog.Logger) *Download {
	return &Download{acquirer: acquirer, prober: prober, logger: logger}
}

func (d *Download) Prepare(_ context.Context, run *stage.Run) error {
	if strings.TrimSpace(run.Job.Source) == "" {
		return stage.Missing(services.ErrInvalidInput, "download", "job source")
	}
	if err := os.MkdirAll(sourceDir(run), 0o755); err != nil {
		return services.Wrap(services.ErrSourceUnavailable, "download", "prepare", "create source directory", err)
	}
	return nil
}

func (d *Download) Execute(ctx context.Context, run *stage.Run) error {
	logger := logging.FromContext(ctx, d.logger)
	media, err := d.acquirer.Acquire(ctx, run.Job.Source, sourceDir(run))
	if err != nil {
		return err
	}
	run.Media = media
	run.Report(1, 2)

	info, err := d.prober.Probe(ctx, media.Path)
	if err != nil {
		return services.Wrap(services.ErrSourceUnavailable, "download", "probe", filepath.Base(media.Path), err)
	}
	if info.AudioStreamCount() == 0 {
		return services.Wrap(services.ErrSourceUnavailable, "download", "probe",
			"source has no audio stream", nil)
	}
	run.Info = info
	run.Report(2, 2)

	logger.Info("source acquired",
		logging.String("path", media.Path),
		logging.String("title", media.Title),
		logging.Bool("remote", media.Remote),
		logging.Float64("duration_seconds", info.DurationSeconds()),
		logging.Int("video_streams", info.VideoStreamCount()),
		logging.Int("audio_streams", info.AudioStreamCount()),
		logging.Int("subtitle_streams", info.SubtitleStreamCount()),
	)
	return nil
}

func (d *Download) HealthCheck(context.Context) stage.Health {
	return checkReady("download", d.acquirer, d.prober)
}

func sourceDir(run *stage.Run) string {
	return filepath.Join(run.WorkDir, "source")
}
