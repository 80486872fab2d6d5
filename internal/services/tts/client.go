package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"dubber/internal/config"
	"dubber/internal/services"
)

// Prober measures the duration of an audio file in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Client is the synthesis HTTP client.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	outputFormat string
	http         *http.Client
	prober       Prober
	policy       services.RetryPolicy
	sleep        services.Sleeper
	onRetry      func(attempt int, err error)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(policy services.RetryPolicy) Option {
	return func(c *Client) { c.policy = policy }
}

// WithSleeper overrides retry waits.
func WithSleeper(sleep services.Sleeper) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithRetryObserver registers a callback invoked before each retry.
func WithRetryObserver(fn func(attempt int, err error)) Option {
	return func(c *Client) { c.onRetry = fn }
}

// NewClient builds a client from the synthesis section. prober measures
// rendered files.
func NewClient(cfg config.Synthesis, prober Prober, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		model:        cfg.Model,
		outputFormat: cfg.OutputFormat,
		http:         &http.Client{Timeout: timeout},
		prober:       prober,
		policy:       services.RetryPolicy{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
		sleep:        services.SleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
}

// Synthesize renders text with voiceID into outPath and returns the audio
// duration.
func (c *Client) Synthesize(ctx context.Context, text, voiceID, outPath string) (time.Duration, error) {
	if c.apiKey == "" {
		return 0, services.Wrap(services.ErrConfiguration, "synthesis", "synthesize", "synthesis api key required", nil)
	}
	if strings.TrimSpace(text) == "" {
		return 0, services.Wrap(services.ErrSynthesis, "synthesis", "synthesize", "no text provided", nil)
	}
	body, err := json.Marshal(synthesisRequest{Text: text, ModelID: c.model})
	if err != nil {
		return 0, fmt.Errorf("encode synthesis request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, url.PathEscape(voiceID))
	if c.outputFormat != "" {
		endpoint += "?output_format=" + url.QueryEscape(c.outputFormat)
	}

	err = services.Retry(ctx, c.policy, c.sleep, c.onRetry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "audio/mpeg")
		req.Header.Set("xi-api-key", c.apiKey)
		audio, err := c.do(req)
		if err != nil {
			return err
		}
		if len(audio) == 0 {
			return services.Transient(errors.New("synthesis returned empty audio"))
		}
		return os.WriteFile(outPath, audio, 0o644)
	})
	if err != nil {
		return 0, services.Wrap(services.ErrSynthesis, "synthesis", "synthesize", "voice "+voiceID, err)
	}
	seconds, err := c.prober.Duration(ctx, outPath)
	if err != nil {
		return 0, services.Wrap(services.ErrSynthesis, "synthesis", "measure", outPath, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// RemoteVoice is one entry of the provider's voice list.
type RemoteVoice struct {
	VoiceID           string             `json:"voice_id"`
	Name              string             `json:"name"`
	Labels            map[string]string  `json:"labels"`
	VerifiedLanguages []VerifiedLanguage `json:"verified_languages"`
}

// VerifiedLanguage is a language the provider verified a voice speaks.
type VerifiedLanguage struct {
	Language string `json:"language"`
	Locale   string `json:"locale"`
}

// ListVoices returns the raw voice list.
func (c *Client) ListVoices(ctx context.Context) ([]RemoteVoice, error) {
	if c.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "synthesis", "list voices", "synthesis api key required", nil)
	}
	var voices []RemoteVoice
	err := services.Retry(ctx, c.policy, c.sleep, c.onRetry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("xi-api-key", c.apiKey)
		payload, err := c.do(req)
		if err != nil {
			return err
		}
		var decoded struct {
			Voices []RemoteVoice `json:"voices"`
		}
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return fmt.Errorf("decode voices: %w", err)
		}
		voices = decoded.Voices
		return nil
	})
	return voices, err
}

// Ping verifies the API key by listing voices.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListVoices(ctx)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, err
		}
		return nil, services.Transient(fmt.Errorf("synthesis request: %w", err))
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Transient(fmt.Errorf("synthesis read body: %w", err))
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := fmt.Errorf("synthesis http %d: %s", resp.StatusCode, snippet(payload))
		if services.TransientHTTPStatus(resp.StatusCode) {
			return nil, services.Transient(statusErr)
		}
		return nil, statusErr
	}
	return payload, nil
}

func snippet(body []byte) string {
	text := strings.Join(strings.Fields(string(body)), " ")
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		return "<empty>"
	}
	return text
}

// Ready verifies the client has an endpoint and credentials.
func (c *Client) Ready() error {
	if c.baseURL == "" {
		return errors.New("synthesis base_url not configured")
	}
	if c.apiKey == "" {
		return errors.New("synthesis api_key not configured")
	}
	return nil
}
