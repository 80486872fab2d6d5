package acoustic

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"dubber/internal/logging"
)

// Span is a speaker-labelled stretch of the source audio, in seconds.
type Span struct {
	Speaker string
	Start   float64
	End     float64
}

// Decoder reads a window of an audio file as mono float samples.
type Decoder interface {
	DecodePCM(ctx context.Context, path string, start, duration float64, sampleRate int) ([]float64, error)
}

// Profiler builds one Profile per speaker from a sample of their spans.
type Profiler struct {
	decoder    Decoder
	sampleRate int
	maxSpans   int
	minSeconds float64
	logger     *slog.Logger
}

// NewProfiler analyzes up to maxSpans spans of at least minSeconds each.
func NewProfiler(decoder Decoder, sampleRate, maxSpans int, minSeconds float64, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if maxSpans <= 0 {
		maxSpans = 3
	}
	return &Profiler{
		decoder:    decoder,
		sampleRate: sampleRate,
		maxSpans:   maxSpans,
		minSeconds: minSeconds,
		logger:     logger,
	}
}

// ProfileSpeakers returns a Profile keyed by speaker label, built from each
// speaker's longest spans. Speakers whose spans are all shorter than the
// minimum still get a profile from what they have.
func (p *Profiler) ProfileSpeakers(ctx context.Context, audioPath string, spans []Span) (map[string]Profile, error) {
	bySpeaker := make(map[string][]Span)
	for _, span := range spans {
		if span.End <= span.Start {
			continue
		}
		bySpeaker[span.Speaker] = append(bySpeaker[span.Speaker], span)
	}

	profiles := make(map[string]Profile, len(bySpeaker))
	for speaker, speakerSpans := range bySpeaker {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chosen := p.choose(speakerSpans)
		var samples []float64
		for _, span := range chosen {
			chunk, err := p.decoder.DecodePCM(ctx, audioPath, span.Start, span.End-span.Start, p.sampleRate)
			if err != nil {
				return nil, fmt.Errorf("decode %s at %.2fs: %w", speaker, span.Start, err)
			}
			samples = append(samples, chunk...)
		}
		profile := Extract(samples, p.sampleRate)
		profiles[speaker] = profile
		logging.FromContext(ctx, p.logger).Debug("speaker profiled",
			logging.String("speaker", speaker),
			logging.Int("spans", len(chosen)),
			logging.Float64("mean_pitch", profile.MeanPitch),
			logging.Float64("spectral_centroid", profile.SpectralCentroid),
			logging.Float64("rms_energy", profile.RMSEnergy),
		)
	}
	return profiles, nil
}

// choose returns up to maxSpans of the longest spans, earliest first among
// equal lengths. Spans under minSeconds count only when nothing else is left.
func (p *Profiler) choose(spans []Span) []Span {
	ranked := append([]Span(nil), spans...)
	sort.SliceStable(ranked, func(i, j int) bool {
		li, lj := ranked[i].End-ranked[i].Start, ranked[j].End-ranked[j].Start
		if li != lj {
			return li > lj
		}
		return ranked[i].Start < ranked[j].Start
	})
	chosen := make([]Span, 0, p.maxSpans)
	for _, span := range ranked {
		if span.End-span.Start >= p.minSeconds {
			chosen = append(chosen, span)
			if len(chosen) == p.maxSpans {
				break
			}
		}
	}
	if len(chosen) > 0 {
		return chosen
	}
	if len(ranked) > p.maxSpans {
		ranked = ranked[:p.maxSpans]
	}
	return ranked
}
