package pyannote_test

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"testing"

	"dubber/internal/services"
	"dubber/internal/services/pyannote"
)

func TestDiarizeParsesTurns(t *testing.T) {
	workDir := t.TempDir()
	d := pyannote.New(pyannote.Config{HFToken: "hf-test", MaxSpeakers: 3}, "")
	var gotEnv, gotArgs []string
	d.WithRunner(func(_ context.Context, env []string, name string, args ...string) ([]byte, []byte, error) {
		gotEnv, gotArgs = env, args
		script := args[slices.Index(args, "python")+1]
		if _, err := os.Stat(script); err != nil {
			t.Fatalf("script not written: %v", err)
		}
		return []byte(`{"turns":[{"speaker":"SPEAKER_01","start":3.2,"end":5.0},{"speaker":"SPEAKER_00","start":0.0,"end":3.1},{"speaker":"SPEAKER_00","start":6.0,"end":6.0}]}`), nil, nil
	})

	intervals, err := d.Diarize(context.Background(), "/tmp/audio.wav", workDir)
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}
	if len(intervals) != 2 || intervals[0].Speaker != "SPEAKER_00" || intervals[1].Start != 3.2 {
		t.Fatalf("unexpected intervals %+v", intervals)
	}
	if !slices.Contains(gotEnv, "HF_TOKEN=hf-test") {
		t.Fatalf("HF_TOKEN not forwarded: %v", gotEnv)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "--with pyannote.audio") || !strings.Contains(joined, "--max-speakers 3") {
		t.Fatalf("unexpected args %s", joined)
	}
	if strings.Contains(joined, "--min-speakers") {
		t.Fatalf("unset min speakers should be omitted: %s", joined)
	}
}

func TestDiarizeRequiresToken(t *testing.T) {
	d := pyannote.New(pyannote.Config{}, "")
	if _, err := d.Diarize(context.Background(), "a.wav", t.TempDir()); !errors.Is(err, services.ErrDiarization) {
		t.Fatalf("expected diarization error, got %v", err)
	}
}

func TestDiarizeReportsGatedModel(t *testing.T) {
	d := pyannote.New(pyannote.Config{HFToken: "x"}, "")
	d.WithRunner(func(context.Context, []string, string, ...string) ([]byte, []byte, error) {
		return nil, []byte("Traceback...\nhuggingface_hub.errors.GatedRepoError: 403"), errors.New("exit status 1")
	})
	_, err := d.Diarize(context.Background(), "a.wav", t.TempDir())
	if !errors.Is(err, services.ErrDiarization) || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestDiarizeReportsScriptError(t *testing.T) {
	d := pyannote.New(pyannote.Config{HFToken: "x"}, "")
	d.WithRunner(func(context.Context, []string, string, ...string) ([]byte, []byte, error) {
		return nil, []byte(`{"error": "audio file is empty"}`), errors.New("exit status 1")
	})
	_, err := d.Diarize(context.Background(), "a.wav", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "audio file is empty") {
		t.Fatalf("unexpected error %v", err)
	}
}
