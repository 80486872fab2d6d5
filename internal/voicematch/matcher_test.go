package voicematch_test

import (
	"errors"
	"math"
	"testing"

	"dubber/internal/acoustic"
	"dubber/internal/dubbing"
	"dubber/internal/services"
	"dubber/internal/voicematch"
)

func speaker(id string, duration, pitch, centroid, rms float64) dubbing.Speaker {
	return dubbing.Speaker{
		ID:            id,
		TotalDuration: duration,
		Profile: acoustic.Profile{
			MeanPitch:        pitch,
			SpectralCentroid: centroid,
			RMSEnergy:        rms,
		},
	}
}

func TestScoreComponents(t *testing.T) {
	m := voicematch.NewMatcher(voicematch.DefaultThresholds(), nil)
	female := speaker("A", 10, 210, 2300, 0.15)

	cases := []struct {
		name  string
		voice dubbing.VoiceCandidate
		hint  string
		want  voicematch.Breakdown
	}{
		{
			name:  "full match",
			voice: dubbing.VoiceCandidate{ID: "v1", Gender: "female", Age: "young", Energy: "energetic", Accent: "es-MX"},
			hint:  "es_mx",
			want:  voicematch.Breakdown{Pitch: 1, Age: 1, Energy: 1, Accent: 1, Total: 7},
		},
		{
			name:  "wrong gender and partial age",
			voice: dubbing.VoiceCandidate{ID: "v2", Gender: "male", Age: "old", Energy: "calm"},
			want:  voicematch.Breakdown{Pitch: 0, Age: 0.2, Energy: 0, Accent: 0, Total: 0.4},
		},
		{
			name:  "untagged voice",
			voice: dubbing.VoiceCandidate{ID: "v3"},
			want:  voicematch.Breakdown{Pitch: 1, Age: 0.5, Energy: 0, Accent: 0, Total: 4},
		},
		{
			name:  "middle aged outside range",
			voice: dubbing.VoiceCandidate{ID: "v4", Gender: "neutral", Age: "middle aged", Energy: "neutral"},
			want:  voicematch.Breakdown{Pitch: 1, Age: 0.7, Energy: 0, Accent: 0, Total: 4.4},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := m.Score(female, tc.voice, tc.hint)
			if !near(got.Pitch, tc.want.Pitch) || !near(got.Age, tc.want.Age) || !near(got.Energy, tc.want.Energy) ||
				!near(got.Accent, tc.want.Accent) || !near(got.Total, tc.want.Total) {
				t.Fatalf("Score = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestAssignReusesWhenPoolSmallerThanSpeakers(t *testing.T) {
	m := voicematch.NewMatcher(voicematch.DefaultThresholds(), nil)
	speakers := []dubbing.Speaker{
		speaker("S1", 5, 120, 1400, 0.04),
		speaker("S2", 30, 220, 2200, 0.12),
		speaker("S3", 10, 130, 1300, 0.03),
	}
	pool := []dubbing.VoiceCandidate{
		{ID: "male-calm", Languages: []string{"es"}, Gender: "male", Age: "old", Energy: "calm"},
		{ID: "female-young", Languages: []string{"es-ES"}, Gender: "female", Age: "young", Energy: "energetic"},
		{ID: "german", Languages: []string{"de"}, Gender: "male", Age: "old", Energy: "calm"},
	}

	assignments, err := m.Assign(speakers, pool, "es", "")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if len(assignments) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(assignments))
	}
	got := map[string]voicematch.Assignment{}
	for _, a := range assignments {
		got[a.SpeakerID] = a
	}
	if assignments[0].SpeakerID != "S2" || got["S2"].Voice.ID != "female-young" {
		t.Fatalf("most prominent speaker should pick first: %#v", assignments[0])
	}
	if got["S3"].Voice.ID != "male-calm" || got["S3"].Reused {
		t.Fatalf("S3 should take the remaining voice without reuse: %#v", got["S3"])
	}
	if got["S1"].Voice.ID != "male-calm" || !got["S1"].Reused {
		t.Fatalf("S1 should reuse the best voice after exhaustion: %#v", got["S1"])
	}
	for _, a := range assignments {
		if a.Voice.ID == "german" {
			t.Fatal("voice not supporting target language was assigned")
		}
	}

	voicematch.Apply(speakers, assignments)
	for _, s := range speakers {
		if s.Voice == nil {
			t.Fatalf("speaker %s has no voice after Apply", s.ID)
		}
	}
}

func TestAssignAfterExhaustionPicksBestOfWholePool(t *testing.T) {
	m := voicematch.NewMatcher(voicematch.DefaultThresholds(), nil)
	speakers := []dubbing.Speaker{
		speaker("S1", 40, 210, 2300, 0.15),
		speaker("S2", 30, 110, 1300, 0.03),
		speaker("S3", 20, 205, 2250, 0.14),
		speaker("S4", 10, 220, 2400, 0.16),
	}
	pool := []dubbing.VoiceCandidate{
		{ID: "f", Languages: []string{"es"}, Gender: "female", Age: "young", Energy: "energetic"},
		{ID: "m", Languages: []string{"es"}, Gender: "male", Age: "old", Energy: "calm"},
	}

	assignments, err := m.Assign(speakers, pool, "es", "")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	want := map[string]struct {
		voice  string
		reused bool
	}{
		"S1": {"f", false},
		"S2": {"m", false},
		"S3": {"f", true},
		"S4": {"f", true},
	}
	for _, a := range assignments {
		w := want[a.SpeakerID]
		if a.Voice.ID != w.voice || a.Reused != w.reused {
			t.Fatalf("%s -> %s (reused=%v, score=%.2f), want %s (reused=%v)",
				a.SpeakerID, a.Voice.ID, a.Reused, a.Score.Total, w.voice, w.reused)
		}
	}
}

func TestAssignTieBreaksByCandidateID(t *testing.T) {
	m := voicematch.NewMatcher(voicematch.DefaultThresholds(), nil)
	pool := []dubbing.VoiceCandidate{
		{ID: "zeta", Languages: []string{"fr"}},
		{ID: "alpha", Languages: []string{"fr"}},
	}
	assignments, err := m.Assign([]dubbing.Speaker{speaker("S", 1, 0, 0, 0)}, pool, "fr", "")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if assignments[0].Voice.ID != "alpha" {
		t.Fatalf("expected alpha on tie, got %s", assignments[0].Voice.ID)
	}
}

func TestAssignEmptyPool(t *testing.T) {
	m := voicematch.NewMatcher(voicematch.DefaultThresholds(), nil)
	pool := []dubbing.VoiceCandidate{{ID: "en-only", Languages: []string{"en"}}}
	_, err := m.Assign([]dubbing.Speaker{speaker("S", 1, 150, 1500, 0.1)}, pool, "ja", "")
	if !errors.Is(err, services.ErrNoCandidateAvailable) {
		t.Fatalf("expected ErrNoCandidateAvailable, got %v", err)
	}
	if services.Kind(err) != "no_candidate_available" {
		t.Fatalf("unexpected kind %q", services.Kind(err))
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
