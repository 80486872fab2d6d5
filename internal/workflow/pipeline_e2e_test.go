package workflow_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dubber/internal/acoustic"
	"dubber/internal/dubbing"
	"dubber/internal/jobs"
	"dubber/internal/media/ffprobe"
	"dubber/internal/pipeline"
	"dubber/internal/synth"
	"dubber/internal/testsupport"
	"dubber/internal/translate"
	"dubber/internal/voicematch"
	"dubber/internal/workflow"
)

const clipSeconds = 20.0

// fakeMedia stands in for ffmpeg/ffprobe: every container it reports is a
// 20 second clip with one video and one audio stream.
type fakeMedia struct {
	mu          sync.Mutex
	trackLength int
	trackRate   int
	muxed       string
}

func (f *fakeMedia) Acquire(_ context.Context, source, _ string) (dubbing.Media, error) {
	return dubbing.Media{Path: source, Title: "Interview"}, nil
}

func (f *fakeMedia) Probe(context.Context, string) (ffprobe.Result, error) {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{Index: 0, CodecType: "video"}, {Index: 1, CodecType: "audio"}},
		Format:  ffprobe.Format{Duration: "20.000000"},
	}, nil
}

func (f *fakeMedia) ExtractAudio(_ context.Context, _, output string, _ int) error {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	return os.WriteFile(output, []byte("RIFF"), 0o644)
}

func (f *fakeMedia) DecodePCM(_ context.Context, _ string, _, duration float64, sampleRate int) ([]float64, error) {
	if duration <= 0 {
		duration = 4
	}
	samples := make([]float64, int(duration*float64(sampleRate)))
	for i := range samples {
		samples[i] = 0.3 * math.Sin(2*math.Pi*130*float64(i)/float64(sampleRate))
	}
	return samples, nil
}

func (f *fakeMedia) EncodeTrack(_ context.Context, samples []float64, sampleRate int, output string) error {
	f.mu.Lock()
	f.trackLength = len(samples)
	f.trackRate = sampleRate
	f.mu.Unlock()
	return os.WriteFile(output, []byte("aac"), 0o644)
}

func (f *fakeMedia) ReplaceAudio(_ context.Context, _, _, output string) error {
	f.mu.Lock()
	f.muxed = output
	f.mu.Unlock()
	return os.WriteFile(output, []byte("mp4"), 0o644)
}

func (f *fakeMedia) Stretch(_ context.Context, _, output string, _ float64, _ int) error {
	return os.WriteFile(output, []byte("wav"), 0o644)
}

func (f *fakeMedia) Duration(context.Context, string) (float64, error) {
	return 4, nil
}

type oneSpeaker struct{}

func (oneSpeaker) Diarize(context.Context, string, string) ([]dubbing.Interval, error) {
	return []dubbing.Interval{{Speaker: "SPEAKER_00", Start: 0.5, End: 19.5}}, nil
}

func (oneSpeaker) Transcribe(context.Context, string, string, string) ([]dubbing.TranscriptSegment, error) {
	return []dubbing.TranscriptSegment{
		{Start: 1, End: 5, Text: "Welcome back to the show."},
		{Start: 5.5, End: 9.5, Text: "Today we talk about rivers."},
		{Start: 10, End: 14, Text: "They shape every valley."},
		{Start: 14.5, End: 18.5, Text: "Thanks for listening."},
	}, nil
}

type echoBackend struct{}

func (echoBackend) Translate(_ context.Context, req translate.Request) (string, error) {
	if req.Target != "es" {
		return "", os.ErrInvalid
	}
	return "hola a todos", nil
}

type fixedEngine struct{}

func (fixedEngine) Synthesize(_ context.Context, _, _, outPath string) (time.Duration, error) {
	return 4 * time.Second, os.WriteFile(outPath, []byte("mp3"), 0o644)
}

type staticCatalog struct{}

func (staticCatalog) Voices(context.Context, string) ([]dubbing.VoiceCandidate, error) {
	return []dubbing.VoiceCandidate{
		{ID: "es-m-1", Name: "Mateo", Languages: []string{"es"}, Gender: dubbing.GenderMale, Age: dubbing.AgeMiddleAged, Energy: dubbing.EnergyNeutral},
		{ID: "es-f-1", Name: "Lucia", Languages: []string{"es"}, Gender: dubbing.GenderFemale, Age: dubbing.AgeYoung, Energy: dubbing.EnergyEnergetic},
		{ID: "de-m-1", Name: "Jonas", Languages: []string{"de"}, Gender: dubbing.GenderMale},
	}, nil
}

func TestSingleSpeakerClipDubsToSpanish(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	repo := testsupport.NewRepository(t, cfg)
	media := &fakeMedia{}
	profiler := acoustic.NewProfiler(media, cfg.Media.ExtractSampleRate, cfg.Diarization.ProfileSegments, cfg.Diarization.ProfileMinSeconds, nil)
	translator := translate.NewTranslator(echoBackend{}, translate.PolicyFromConfig(cfg), nil)
	synthesizer := synth.NewSynthesizer(fixedEngine{}, media, synth.OptionsFromConfig(cfg), nil)
	synchronizer := synth.NewSynchronizer(media, cfg.Media.TrackSampleRate, nil)

	manager := workflow.NewManager(cfg, repo, nil)
	manager.ConfigureStages(workflow.StageSet{
		Download:   pipeline.NewDownload(media, media, nil),
		Extract:    pipeline.NewExtract(media, cfg.Media.ExtractSampleRate, nil),
		Diarize:    pipeline.NewDiarize(oneSpeaker{}, profiler, nil),
		Transcribe: pipeline.NewTranscribe(oneSpeaker{}, nil),
		Align:      pipeline.NewAlign(nil),
		Voices:     pipeline.NewVoices(staticCatalog{}, voicematch.NewMatcher(voicematch.ThresholdsFromConfig(cfg.VoiceMatching), nil), nil),
		Translate:  pipeline.NewTranslate(translator, nil),
		Synthesize: pipeline.NewSynthesize(synthesizer, nil),
		Sync:       pipeline.NewSync(synchronizer, media, pipeline.DurationTolerance, nil),
	})
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(manager.Stop)

	source := filepath.Join(testsupport.BaseDir(cfg), "interview.mp4")
	testsupport.WriteFile(t, source, []byte("video"))
	job, err := manager.Submit(context.Background(), workflow.Request{Source: source, TargetLanguage: "es"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	final, err := manager.Wait(ctx, job.ID)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if final.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s: %s", final.Status, final.ErrorMessage)
	}
	if final.SpeakerCount != 1 {
		t.Fatalf("expected one speaker, got %d", final.SpeakerCount)
	}
	if final.SegmentCount != 4 {
		t.Fatalf("expected four segments, got %d", final.SegmentCount)
	}
	if final.DriftedSegments != 0 {
		t.Fatalf("expected no drift, got %d", final.DriftedSegments)
	}
	if filepath.Ext(final.ResultPath) != ".mp4" || !strings.Contains(filepath.Base(final.ResultPath), "es") {
		t.Fatalf("unexpected result path %q", final.ResultPath)
	}
	if _, err := os.Stat(final.ResultPath); err != nil {
		t.Fatalf("result file missing: %v", err)
	}

	media.mu.Lock()
	trackSeconds := float64(media.trackLength) / float64(media.trackRate)
	muxed := media.muxed
	media.mu.Unlock()
	if math.Abs(trackSeconds-clipSeconds) > pipeline.DurationTolerance {
		t.Fatalf("dubbed track runs %.3fs, want %.1fs", trackSeconds, clipSeconds)
	}
	if muxed != final.ResultPath {
		t.Fatalf("muxed output %q differs from result %q", muxed, final.ResultPath)
	}

	speakers, err := os.ReadFile(filepath.Join(cfg.JobWorkDir(job.ID), "artifacts", "speakers.json"))
	if err != nil {
		t.Fatalf("speakers artifact: %v", err)
	}
	if strings.Count(string(speakers), `"voice"`) != 1 || strings.Contains(string(speakers), "de-m-1") {
		t.Fatalf("expected exactly one Spanish voice assignment:\n%s", speakers)
	}
}
