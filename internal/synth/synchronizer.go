package synth

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"dubber/internal/dubbing"
	"dubber/internal/logging"
	"dubber/internal/services"
)

// Mixer decodes segment audio and writes the final artifacts.
type Mixer interface {
	DecodePCM(ctx context.Context, path string, start, duration float64, sampleRate int) ([]float64, error)
	EncodeTrack(ctx context.Context, samples []float64, sampleRate int, output string) error
	ReplaceAudio(ctx context.Context, video, audio, output string) error
}

// RenderInput describes one synchronization run.
type RenderInput struct {
	Segments         []dubbing.Segment
	OriginalDuration float64
	VideoPath        string
	HasVideo         bool
	TrackPath        string
	OutputPath       string
}

// RenderResult reports what was placed on the track.
type RenderResult struct {
	Placed        int
	Skipped       int
	ClippedFrames int
	TrackSeconds  float64
}

// Synchronizer assembles the dubbed track.
type Synchronizer struct {
	mixer      Mixer
	sampleRate int
	logger     *slog.Logger
}

// NewSynchronizer constructs a Synchronizer rendering at sampleRate.
func NewSynchronizer(mixer Mixer, sampleRate int, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Synchronizer{mixer: mixer, sampleRate: sampleRate, logger: logger}
}

// Render places each segment at its start offset on a silent buffer sized
// to the original duration, summing overlaps, then encodes the track and
// replaces the source audio stream with it.
func (s *Synchronizer) Render(ctx context.Context, in RenderInput) (RenderResult, error) {
	if in.OriginalDuration <= 0 {
		return RenderResult{}, services.Wrap(services.ErrSync, "sync", "render", "original duration is unknown", nil)
	}
	segments := append([]dubbing.Segment(nil), in.Segments...)
	dubbing.SortByStart(segments)

	track := make([]float64, int(math.Ceil(in.OriginalDuration*float64(s.sampleRate))))
	result := RenderResult{TrackSeconds: float64(len(track)) / float64(s.sampleRate)}
	for _, seg := range segments {
		if seg.AudioPath == "" {
			result.Skipped++
			continue
		}
		samples, err := s.mixer.DecodePCM(ctx, seg.AudioPath, 0, 0, s.sampleRate)
		if err != nil {
			return result, services.Wrap(services.ErrSync, "sync", "decode segment",
				fmt.Sprintf("segment %d", seg.Index), err)
		}
		offset := int(math.Round(seg.Start * float64(s.sampleRate)))
		cut := Place(track, samples, offset)
		if cut > 0 {
			logging.FromContext(ctx, s.logger).Debug("segment audio runs past end of track",
				logging.Int(logging.FieldSegment, seg.Index),
				logging.Int("samples_cut", cut),
			)
		}
		result.Placed++
	}
	result.ClippedFrames = countClipped(track)
	if result.ClippedFrames > 0 {
		logging.WarnWithContext(logging.FromContext(ctx, s.logger), "dubbed track clips", "sync_clipping",
			logging.Int("clipped_samples", result.ClippedFrames),
			logging.String(logging.FieldImpact, "overlapping speech is saturated at full scale"),
		)
	}

	if !in.HasVideo {
		if err := s.mixer.EncodeTrack(ctx, track, s.sampleRate, in.OutputPath); err != nil {
			return result, services.Wrap(services.ErrSync, "sync", "encode track", "audio-only output", err)
		}
		return result, nil
	}
	if err := s.mixer.EncodeTrack(ctx, track, s.sampleRate, in.TrackPath); err != nil {
		return result, services.Wrap(services.ErrSync, "sync", "encode track", in.TrackPath, err)
	}
	if err := s.mixer.ReplaceAudio(ctx, in.VideoPath, in.TrackPath, in.OutputPath); err != nil {
		return result, services.Wrap(services.ErrSync, "sync", "mux", in.OutputPath, err)
	}
	return result, nil
}

// Place sums samples into track starting at offset and returns how many
// samples fell outside the track.
func Place(track, samples []float64, offset int) int {
	cut := 0
	for i, v := range samples {
		pos := offset + i
		if pos < 0 || pos >= len(track) {
			cut++
			continue
		}
		track[pos] += v
	}
	return cut
}

func countClipped(track []float64) int {
	n := 0
	for _, v := range track {
		if v > 1 || v < -1 {
			n++
		}
	}
	return n
}
