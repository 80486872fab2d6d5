package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dubber/internal/config"
	"dubber/internal/services"
)

const (
	openRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	requestTimeout     = 30 * time.Second
)

// Config holds the connection settings for a chat-completions endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// FromConfig maps the [llm] section onto a client Config.
func FromConfig(cfg config.LLMConfig) Config {
	return Config(cfg)
}

func (c Config) normalized() Config {
	out := Config{
		APIKey:         strings.TrimSpace(c.APIKey),
		BaseURL:        strings.TrimSpace(c.BaseURL),
		Model:          strings.TrimSpace(c.Model),
		Referer:        strings.TrimSpace(c.Referer),
		Title:          strings.TrimSpace(c.Title),
		TimeoutSeconds: c.TimeoutSeconds,
	}
	if out.BaseURL == "" {
		out.BaseURL = openRouterEndpoint
	}
	return out
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return requestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	cfg     Config
	http    *http.Client
	retry   services.RetryPolicy
	sleep   services.Sleeper
	onRetry func(attempt int, err error)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithRetryPolicy(policy services.RetryPolicy) Option {
	return func(c *Client) { c.retry = policy }
}

// WithSleeper replaces the wait between attempts. Tests pass a no-op.
func WithSleeper(sleep services.Sleeper) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithRetryObserver is called with the failed attempt number before each retry.
func WithRetryObserver(fn func(attempt int, err error)) Option {
	return func(c *Client) { c.onRetry = fn }
}

func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.normalized()
	c := &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.timeout()},
		retry: services.RetryPolicy{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
		sleep: services.SleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Model() string { return c.cfg.Model }

// Ready reports whether credentials and a model are configured.
func (c *Client) Ready() error {
	var missing []string
	if c.cfg.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if c.cfg.Model == "" {
		missing = append(missing, "model")
	}
	if len(missing) > 0 {
		return fmt.Errorf("llm %s not configured", strings.Join(missing, " and "))
	}
	return nil
}

// Complete returns the model's plain-text answer.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.ask(ctx, "llm complete", c.chat(systemPrompt, userPrompt, false))
}

// CompleteJSON asks for a JSON object response and returns it undecoded.
// Callers usually pass the result to DecodeLLMJSON.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.ask(ctx, "llm complete json", c.chat(systemPrompt, userPrompt, true))
}

// HealthCheck sends a tiny prompt and expects {"ok":true} back.
func (c *Client) HealthCheck(ctx context.Context) error {
	raw, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var pong struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(raw, &pong); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !pong.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

func (c *Client) ask(ctx context.Context, op string, req chatRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: %s: api key required", services.ErrConfiguration, op)
	}

	var answer string
	attempt := func(ctx context.Context) error {
		resp, err := c.post(ctx, req)
		if err != nil {
			return err
		}
		text, finish, refusal := resp.firstChoice()
		if text == "" {
			// Providers occasionally return an empty choice under load.
			return services.Transient(&blankAnswerError{op: op, finish: finish, refusal: refusal})
		}
		answer = text
		return nil
	}
	if err := services.Retry(ctx, c.retry, c.sleep, c.onRetry, attempt); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return answer, nil
}

// ClassifyStatus marks err transient for 408, 429 and 5xx responses.
func ClassifyStatus(err error, status int) error {
	if services.TransientHTTPStatus(status) {
		return services.Transient(err)
	}
	return err
}
