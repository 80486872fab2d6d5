package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"dubber/internal/services"
)

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *formatSpec   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type formatSpec struct {
	Type string `json:"type"`
}

func (c *Client) chat(system, user string, jsonOnly bool) chatRequest {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: strings.TrimSpace(system)},
			{Role: "user", Content: strings.TrimSpace(user)},
		},
	}
	if jsonOnly {
		req.ResponseFormat = &formatSpec{Type: "json_object"}
	}
	return req
}

func (r chatRequest) validate() error {
	for _, m := range r.Messages {
		if m.Content == "" {
			return fmt.Errorf("%s prompt required", m.Role)
		}
	}
	return nil
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatChoice struct {
	Message      choiceBody `json:"message"`
	Delta        choiceBody `json:"delta"` // streaming shape, sent by some providers even with stream=false
	Text         string     `json:"text"`
	FinishReason string     `json:"finish_reason"`
}

type choiceBody struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

// firstChoice returns the first non-empty answer across choices along with
// the first reported finish reason and refusal.
func (r chatResponse) firstChoice() (text, finish, refusal string) {
	for _, ch := range r.Choices {
		if finish == "" {
			finish = strings.TrimSpace(ch.FinishReason)
		}
		if refusal == "" {
			refusal = coalesce(ch.Message.Refusal, ch.Delta.Refusal)
		}
		if text = coalesce(ch.Message.Content, ch.Delta.Content, ch.Text); text != "" {
			return text, finish, refusal
		}
	}
	return "", finish, refusal
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.code, summarizePayloadSnippet(e.body))
}

type blankAnswerError struct {
	op      string
	finish  string
	refusal string
}

func (e *blankAnswerError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q)", e.op, e.finish, e.refusal)
}

func (c *Client) post(ctx context.Context, body chatRequest) (chatResponse, error) {
	var out chatResponse
	buf, err := json.Marshal(body)
	if err != nil {
		return out, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(buf))
	if err != nil {
		return out, fmt.Errorf("llm request: %w", err)
	}
	c.decorate(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return out, transportError(fmt.Errorf("llm request (timeout %s): %w", c.http.Timeout, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, transportError(fmt.Errorf("llm request: read body: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		return out, ClassifyStatus(&statusError{code: resp.StatusCode, body: string(raw)}, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("llm request: decode response: %w", err)
	}
	if out.Error != nil {
		return out, fmt.Errorf("llm request: api error: %s", strings.TrimSpace(out.Error.Message))
	}
	return out, nil
}

func (c *Client) decorate(h http.Header) {
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+c.cfg.APIKey)
	// OpenRouter attribution headers.
	if c.cfg.Referer != "" {
		h.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		h.Set("X-Title", c.cfg.Title)
	}
}

// transportError marks timeouts transient; cancellation and other failures
// pass through unchanged.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return services.Transient(err)
	}
	return err
}
