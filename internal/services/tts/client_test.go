package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"dubber/internal/config"
	"dubber/internal/services"
	"dubber/internal/services/tts"
)

type fixedProber float64

func (p fixedProber) Duration(context.Context, string) (float64, error) { return float64(p), nil }

func noSleep(context.Context, time.Duration) error { return nil }

func newClient(url string, opts ...tts.Option) *tts.Client {
	cfg := config.Synthesis{BaseURL: url + "/", APIKey: "xi-test", Model: "eleven_multilingual_v2", OutputFormat: "mp3_44100_128"}
	return tts.NewClient(cfg, fixedProber(2.5), append([]tts.Option{tts.WithSleeper(noSleep)}, opts...)...)
}

func TestSynthesizeWritesAudioAndMeasures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/voice-1" || r.URL.Query().Get("output_format") != "mp3_44100_128" {
			t.Errorf("unexpected request %s", r.URL)
		}
		if r.Header.Get("xi-api-key") != "xi-test" {
			t.Errorf("missing api key header")
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["text"] != "hola" || body["model_id"] != "eleven_multilingual_v2" {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer server.Close()

	out := filepath.Join(t.TempDir(), "seg.mp3")
	got, err := newClient(server.URL).Synthesize(context.Background(), "hola", "voice-1", out)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got != 2500*time.Millisecond {
		t.Fatalf("unexpected duration %v", got)
	}
	if data, _ := os.ReadFile(out); string(data) != "ID3audio" {
		t.Fatalf("unexpected audio %q", data)
	}
}

func TestSynthesizeRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("audio"))
	}))
	defer server.Close()

	out := filepath.Join(t.TempDir(), "seg.mp3")
	if _, err := newClient(server.URL).Synthesize(context.Background(), "hola", "v", out); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
}

func TestSynthesizeClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"detail":"voice_not_found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newClient(server.URL).Synthesize(context.Background(), "hola", "missing", filepath.Join(t.TempDir(), "x.mp3"))
	if !errors.Is(err, services.ErrSynthesis) {
		t.Fatalf("expected synthesis error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single call, got %d", calls.Load())
	}
}

func TestSynthesizeRequiresKey(t *testing.T) {
	client := tts.NewClient(config.Synthesis{}, fixedProber(1))
	if _, err := client.Synthesize(context.Background(), "x", "v", "out"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestListVoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"a","name":"Ana","labels":{"gender":"female"}}]}`))
	}))
	defer server.Close()
	voices, err := newClient(server.URL).ListVoices(context.Background())
	if err != nil || len(voices) != 1 || voices[0].Name != "Ana" {
		t.Fatalf("unexpected voices %+v, %v", voices, err)
	}
}
