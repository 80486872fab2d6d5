package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"dubber/internal/services"
)

func noSleep(context.Context, time.Duration) error { return nil }

func reply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		reply(t, w, "```json\n{\"ok\":true}\n```")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		reply(t, w, "hola mundo")
	}))
	defer server.Close()

	var retries []int
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithSleeper(noSleep),
		WithRetryObserver(func(attempt int, _ error) { retries = append(retries, attempt) }),
	)
	got, err := client.Complete(context.Background(), "translate", "hello world")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "hola mundo" || calls.Load() != 3 || len(retries) != 2 {
		t.Fatalf("got %q after %d calls, retries %v", got, calls.Load(), retries)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL}, WithSleeper(noSleep))
	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClientExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL},
		WithSleeper(noSleep),
		WithRetryPolicy(services.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}),
	)
	_, err := client.Complete(context.Background(), "s", "u")
	if !services.IsTransient(err) {
		t.Fatalf("expected transient error after exhaustion, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClientRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.Complete(context.Background(), "s", "u"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDecodeLLMJSON(t *testing.T) {
	cases := []string{
		`{"text":"hola"}`,
		"```json\n{\"text\":\"hola\"}\n```",
		"Sure! Here it is: {\"text\":\"hola\"} hope that helps",
	}
	for _, raw := range cases {
		var out struct {
			Text string `json:"text"`
		}
		if err := DecodeLLMJSON(raw, &out); err != nil || out.Text != "hola" {
			t.Fatalf("DecodeLLMJSON(%q) = %q, %v", raw, out.Text, err)
		}
	}
	if err := DecodeLLMJSON("   ", &struct{}{}); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestStripCodeFence(t *testing.T) {
	if got := StripCodeFence("```\nbonjour\n```"); got != "bonjour" {
		t.Fatalf("unexpected %q", got)
	}
	if got := StripCodeFence("plain"); got != "plain" {
		t.Fatalf("unexpected %q", got)
	}
}
