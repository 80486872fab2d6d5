package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dubber/internal/config"
	"dubber/internal/dubbing"
	"dubber/internal/logging"
	"dubber/internal/services"
)

// Engine renders text with a voice into outPath and reports the audio
// duration.
type Engine interface {
	Synthesize(ctx context.Context, text, voiceID, outPath string) (time.Duration, error)
}

// Catalog lists voices able to speak a language.
type Catalog interface {
	Voices(ctx context.Context, language string) ([]dubbing.VoiceCandidate, error)
}

// Stretcher changes tempo without shifting pitch and measures results.
type Stretcher interface {
	Stretch(ctx context.Context, input, output string, tempo float64, sampleRate int) error
	Duration(ctx context.Context, path string) (float64, error)
}

// ProgressFunc receives done/total segment counts.
type ProgressFunc func(done, total int)

// Options holds the speed correction policy.
type Options struct {
	MinRate        float64
	MaxRate        float64
	DriftTolerance float64
	Workers        int
	SampleRate     int
}

// OptionsFromConfig reads the synthesis, media and workflow sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MinRate:        cfg.Synthesis.MinRate,
		MaxRate:        cfg.Synthesis.MaxRate,
		DriftTolerance: cfg.Synthesis.DriftToleranceSeconds,
		Workers:        cfg.Workflow.SegmentWorkers,
		SampleRate:     cfg.Media.TrackSampleRate,
	}
}

// Synthesizer produces per-segment audio files.
type Synthesizer struct {
	engine  Engine
	tools   Stretcher
	options Options
	logger  *slog.Logger
}

// NewSynthesizer constructs a Synthesizer.
func NewSynthesizer(engine Engine, tools Stretcher, options Options, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if options.Workers <= 0 {
		options.Workers = 1
	}
	return &Synthesizer{engine: engine, tools: tools, options: options, logger: logger}
}

// Engine returns the synthesis engine.
func (s *Synthesizer) Engine() Engine { return s.engine }

// ClampRate limits a playback speed factor to [min, max].
func ClampRate(rate, minRate, maxRate float64) float64 {
	return math.Min(maxRate, math.Max(minRate, rate))
}

// SynthesizeSegments fills AudioPath, AudioDuration, Rate, Drift and
// Drifted on every segment with translated text. Drift beyond tolerance is
// logged and recorded, never returned as an error.
func (s *Synthesizer) SynthesizeSegments(ctx context.Context, segments []dubbing.Segment, speakers []dubbing.Speaker, workDir string, progress ProgressFunc) error {
	voices := make(map[string]string, len(speakers))
	for _, speaker := range speakers {
		if speaker.Voice != nil {
			voices[speaker.ID] = speaker.Voice.ID
		}
	}
	dir := filepath.Join(workDir, "segments")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrSynthesis, "synthesis", "prepare", "create segment directory", err)
	}

	total := len(segments)
	var (
		mu   sync.Mutex
		done int
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.options.Workers)
	for i := range segments {
		seg := &segments[i]
		group.Go(func() error {
			if err := s.synthesizeOne(groupCtx, seg, voices, dir); err != nil {
				return err
			}
			if progress != nil {
				mu.Lock()
				done++
				progress(done, total)
				mu.Unlock()
			}
			return nil
		})
	}
	return group.Wait()
}

func (s *Synthesizer) synthesizeOne(ctx context.Context, seg *dubbing.Segment, voices map[string]string, dir string) error {
	if seg.TranslatedText == "" {
		logging.WarnWithContext(logging.FromContext(ctx, s.logger), "segment has no translated text", "synthesis_empty_segment",
			logging.Int(logging.FieldSegment, seg.Index),
			logging.String(logging.FieldImpact, "segment left silent in the dubbed track"),
		)
		return nil
	}
	voiceID, ok := voices[seg.SpeakerID]
	if !ok {
		return services.Wrap(services.ErrSynthesis, "synthesis", "select voice",
			fmt.Sprintf("speaker %s has no assigned voice", seg.SpeakerID), nil)
	}

	rawPath := filepath.Join(dir, fmt.Sprintf("seg-%04d.mp3", seg.Index))
	generated, err := s.engine.Synthesize(ctx, seg.TranslatedText, voiceID, rawPath)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, services.ErrSynthesis) {
			return err
		}
		return services.Wrap(services.ErrSynthesis, "synthesis", "synthesize",
			fmt.Sprintf("segment %d", seg.Index), err)
	}
	if generated <= 0 {
		return services.Wrap(services.ErrSynthesis, "synthesis", "synthesize",
			fmt.Sprintf("segment %d produced no audio", seg.Index), nil)
	}

	original := seg.Duration()
	generatedSeconds := generated.Seconds()
	rate := ClampRate(generatedSeconds/original, s.options.MinRate, s.options.MaxRate)

	outPath := filepath.Join(dir, fmt.Sprintf("seg-%04d.wav", seg.Index))
	if err := s.tools.Stretch(ctx, rawPath, outPath, rate, s.options.SampleRate); err != nil {
		return services.Wrap(services.ErrSynthesis, "synthesis", "time stretch",
			fmt.Sprintf("segment %d at %.3fx", seg.Index, rate), err)
	}
	stretched, err := s.tools.Duration(ctx, outPath)
	if err != nil {
		stretched = generatedSeconds / rate
		logging.FromContext(ctx, s.logger).Debug("stretched duration unavailable, using estimate",
			logging.Int(logging.FieldSegment, seg.Index),
			logging.Error(err),
		)
	}

	seg.AudioPath = outPath
	seg.AudioDuration = stretched
	seg.Rate = rate
	seg.Drift = stretched - original
	seg.Drifted = math.Abs(seg.Drift) > s.options.DriftTolerance
	if seg.Drifted {
		logging.WarnWithContext(logging.FromContext(ctx, s.logger), "segment drifts from original timing", "synthesis_drift",
			logging.Int(logging.FieldSegment, seg.Index),
			logging.Float64("original_seconds", original),
			logging.Float64("generated_seconds", generatedSeconds),
			logging.Float64("stretched_seconds", stretched),
			logging.Float64("rate", rate),
			logging.Float64("drift_seconds", seg.Drift),
			logging.String(logging.FieldImpact, "segment audio overruns or underruns its slot"),
			logging.String(logging.FieldErrorHint, "raise synthesis.max_rate or tighten translation budgets"),
		)
	}
	return nil
}
