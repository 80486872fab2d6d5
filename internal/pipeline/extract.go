package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"dubber/internal/logging"
	"dubber/internal/services"
	"dubber/internal/stage"
)

// DefaultExtractSampleRate is the rate diarization and transcription expect.
const DefaultExtractSampleRate = 16000

// Extract writes the analysis audio track (mono 16 kHz PCM WAV).
type Extract struct {
	extractor  AudioExtractor
	sampleRate int
	logger     *slog.Logger
}

// NewExtract constructs the extraction step.
func NewExtract(extractor AudioExtractor, sampleRate int, logger *slog.Logger) *Extract {
	if sampleRate <= 0 {
		sampleRate = DefaultExtractSampleRate
	}
	return &Extract{extractor: extractor, sampleRate: sampleRate, logger: logger}
}

func (e *Extract) Prepare(_ context.Context, run *stage.Run) error {
	if run.Media.Path == "" {
		return stage.Missing(services.ErrExtraction, "extract", "acquired media")
	}
	return os.MkdirAll(filepath.Dir(audioPath(run)), 0o755)
}

func (e *Extract) Execute(ctx context.Context, run *stage.Run) error {
	out := audioPath(run)
	if err := e.extractor.ExtractAudio(ctx, run.Media.Path, out, e.sampleRate); err != nil {
		return services.Wrap(services.ErrExtraction, "extract", "ffmpeg", filepath.Base(run.Media.Path), err)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExtraction, "extract", "verify", "extracted audio is empty", err)
	}
	run.AudioPath = out
	run.Report(1, 1)
	logging.FromContext(ctx, e.logger).Info("audio extracted",
		logging.String("audio_path", out),
		logging.Int("sample_rate", e.sampleRate),
		logging.Int64("size_bytes", info.Size()),
	)
	return nil
}

func (e *Extract) HealthCheck(context.Context) stage.Health {
	return checkReady("extract", e.extractor)
}

func audioPath(run *stage.Run) string {
	return filepath.Join(run.WorkDir, "audio", "source.wav")
}
