package tts_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"dubber/internal/dubbing"
	"dubber/internal/services/tts"
	"dubber/internal/testsupport"
)

type staticLister struct {
	voices []tts.RemoteVoice
	err    error
	calls  int
}

func (s *staticLister) ListVoices(context.Context) ([]tts.RemoteVoice, error) {
	s.calls++
	return s.voices, s.err
}

func remote(id, name string, labels map[string]string, locales ...string) tts.RemoteVoice {
	v := tts.RemoteVoice{VoiceID: id, Name: name, Labels: labels}
	for _, l := range locales {
		v.VerifiedLanguages = append(v.VerifiedLanguages, tts.VerifiedLanguage{Locale: l})
	}
	return v
}

func TestCatalogMapsLabelsAndFiltersLanguage(t *testing.T) {
	lister := &staticLister{voices: []tts.RemoteVoice{
		remote("v2", "Rachel", map[string]string{"gender": "female", "age": "young", "description": "calm"}),
		remote("v1", "Pierre", map[string]string{"Gender": "male", "age": "middle aged", "accent": "french"}, "fr-FR"),
	}}
	catalog := tts.NewCatalog(lister, tts.Overlay{}, nil, nil)

	spanish, err := catalog.Voices(context.Background(), "es")
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(spanish) != 1 || spanish[0].ID != "v2" {
		t.Fatalf("expected only the multilingual voice, got %+v", spanish)
	}
	if spanish[0].Gender != dubbing.GenderFemale || spanish[0].Age != dubbing.AgeYoung || spanish[0].Energy != dubbing.EnergyCalm {
		t.Fatalf("labels not mapped: %+v", spanish[0])
	}

	french, _ := catalog.Voices(context.Background(), "fr-CA")
	if len(french) != 2 || french[0].ID != "v1" || french[0].Age != dubbing.AgeMiddleAged {
		t.Fatalf("unexpected french voices %+v", french)
	}
	if lister.calls != 1 {
		t.Fatalf("expected cached voice list, got %d calls", lister.calls)
	}
}

func TestCatalogOverlayAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voices.yaml")
	testsupport.WriteFile(t, path, []byte(`voices:
  - id: v1
    gender: male
    energy: energetic
    accent: mexican
    languages: [es-MX]
  - id: extra
    name: Extra
    languages: [de]
`))
	overlay, err := tts.LoadOverlay(path)
	if err != nil {
		t.Fatalf("LoadOverlay: %v", err)
	}
	lister := &staticLister{err: errors.New("offline")}
	catalog := tts.NewCatalog(lister, overlay, map[string]string{"es": "fallback-es"}, nil)

	voices, err := catalog.Voices(context.Background(), "es")
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(voices) != 2 || voices[0].ID != "fallback-es" || voices[1].ID != "v1" {
		t.Fatalf("unexpected voices %+v", voices)
	}
	if voices[1].Energy != dubbing.EnergyEnergetic || voices[1].Accent != "mexican" {
		t.Fatalf("overlay not applied: %+v", voices[1])
	}
}

func TestLoadOverlayMissingFileIsEmpty(t *testing.T) {
	overlay, err := tts.LoadOverlay(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil || len(overlay.Voices) != 0 {
		t.Fatalf("unexpected overlay %+v, %v", overlay, err)
	}
}

func TestLoadOverlayRejectsMissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voices.yaml")
	testsupport.WriteFile(t, path, []byte("voices:\n  - name: nameless\n"))
	if _, err := tts.LoadOverlay(path); err == nil {
		t.Fatal("expected error")
	}
}
