package apiclient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"dubber/internal/api"
	"dubber/internal/apiclient"
)

func newClient(t *testing.T, handler http.HandlerFunc) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := apiclient.New(srv.URL, "secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRequiresBind(t *testing.T) {
	if _, err := apiclient.New("  ", ""); !errors.Is(err, apiclient.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSubmitSendsBodyAndToken(t *testing.T) {
	var got api.SubmitRequest
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusCreated, api.JobResponse{Job: api.Job{ID: "j1", Status: "initialized"}})
	})

	job, err := client.Submit(context.Background(), api.SubmitRequest{Source: "https://example.com/v", TargetLanguage: "es"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.ID != "j1" || got.TargetLanguage != "es" {
		t.Fatalf("unexpected job %#v / request %#v", job, got)
	}
}

func TestErrorsCarryKind(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusConflict, api.ErrorResponse{Error: "job j1 is transcribing", Kind: "not_ready"})
	})

	_, err := client.Download(context.Background(), "j1", &bytes.Buffer{})
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *apiclient.Error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Message != "job j1 is transcribing" {
		t.Fatalf("unexpected error %#v", apiErr)
	}
	if !apiclient.IsKind(err, "not_ready") {
		t.Fatal("expected not_ready kind")
	}
}

func TestDownloadReturnsFileName(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/jobs/j1/result" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Disposition", `attachment; filename="clip.es.mp4"`)
		_, _ = w.Write([]byte("dubbed"))
	})

	var buf bytes.Buffer
	name, err := client.Download(context.Background(), "j1", &buf)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if name != "clip.es.mp4" || buf.String() != "dubbed" {
		t.Fatalf("got %q / %q", name, buf.String())
	}
}

func TestLogBuildsQuery(t *testing.T) {
	var query url.Values
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		writeJSON(w, http.StatusOK, api.LogResponse{Lines: []string{`{"msg":"x"}`}, Offset: 12})
	})

	page, err := client.Log(context.Background(), "j1", apiclient.LogQuery{Offset: -1, Limit: 50, Follow: true, Wait: 5, Stage: "synthesize", Level: "warn"})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if page.Offset != 12 || len(page.Lines) != 1 {
		t.Fatalf("unexpected page %#v", page)
	}
	want := map[string]string{"offset": "-1", "limit": "50", "follow": "1", "wait": "5", "stage": "synthesize", "level": "warn"}
	for key, value := range want {
		if query.Get(key) != value {
			t.Fatalf("query %s = %q, want %q", key, query.Get(key), value)
		}
	}
}

func TestHealthDecodesNotReady(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, api.HealthResponse{Running: true, Stages: []api.StageHealth{{Name: "download", Detail: "yt-dlp missing"}}})
	})

	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Ready || !health.Running || len(health.Stages) != 1 {
		t.Fatalf("unexpected health %#v", health)
	}
}

func TestRemoveAndJobs(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Query().Get("status") == "completed,failed":
			writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: []api.Job{{ID: "a"}, {ID: "b"}}})
		default:
			writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "bad", Kind: "invalid_input"})
		}
	})

	if err := client.Remove(context.Background(), "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	list, err := client.Jobs(context.Background(), "completed", "failed")
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(list))
	}
}

func TestIsUnavailable(t *testing.T) {
	client, err := apiclient.New("127.0.0.1:1", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Stats(context.Background())
	if !apiclient.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}
