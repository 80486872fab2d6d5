package pipeline

import (
	"context"

	"dubber/internal/dubbing"
	"dubber/internal/media/ffprobe"
	"dubber/internal/stage"
)

// Acquirer fetches a job source into dir.
type Acquirer interface {
	Acquire(ctx context.Context, source, dir string) (dubbing.Media, error)
}

// Prober inspects media containers.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
}

// AudioExtractor writes the first audio stream of input as mono PCM WAV.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, input, output string, sampleRate int) error
}

// Diarizer labels who speaks when.
type Diarizer interface {
	Diarize(ctx context.Context, audio, workDir string) ([]dubbing.Interval, error)
}

// Transcriber produces time-stamped text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio, workDir, language string) ([]dubbing.TranscriptSegment, error)
}

// Readiness is implemented by capabilities that can cheaply verify their
// local prerequisites (binaries on PATH, credentials present).
type Readiness interface {
	Ready() error
}

// checkReady reports the first failing Readiness among deps. Dependencies
// that do not implement Readiness are assumed ready; nil ones are not.
func checkReady(name string, deps ...any) stage.Health {
	for _, dep := range deps {
		if dep == nil {
			return stage.Unhealthy(name, "capability not configured")
		}
		if r, ok := dep.(Readiness); ok {
			if err := r.Ready(); err != nil {
				return stage.Unhealthy(name, err.Error())
			}
		}
	}
	return stage.Healthy(name)
}
