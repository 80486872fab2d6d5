package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"dubber/internal/services"
	"dubber/internal/services/llm"
	"dubber/internal/translate"
)

const systemPrompt = `You translate dialogue for dubbing. The translation is spoken aloud in the
same time slot as the original line, so it must fit a word budget.

Rules:
- Translate the meaning, not word for word. Keep names, numbers and tone.
- Use at most the requested number of words. Shorter is fine.
- Never add explanations, notes or quotes.

Respond with JSON only: {"translation": "<text>"}`

// Completer issues JSON-only chat completions.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Backend implements translate.Backend over an LLM. Malformed replies are
// re-requested under the retry policy.
type Backend struct {
	client Completer
	policy services.RetryPolicy
	sleep  services.Sleeper
}

// NewBackend wraps client.
func NewBackend(client Completer, policy services.RetryPolicy) *Backend {
	return &Backend{client: client, policy: policy, sleep: services.SleepContext}
}

// Translate returns the translated text for req.
func (b *Backend) Translate(ctx context.Context, req translate.Request) (string, error) {
	if b == nil || b.client == nil {
		return "", services.Wrap(services.ErrConfiguration, "translation", "translate", "llm client unavailable", nil)
	}
	prompt := BuildPrompt(req)
	var (
		text      string
		clientErr error
	)
	err := services.Retry(ctx, b.policy, b.sleep, nil, func(ctx context.Context) error {
		content, err := b.client.CompleteJSON(ctx, systemPrompt, prompt)
		if err != nil {
			// Transport failures were already retried by the client.
			clientErr = err
			return nil
		}
		var payload struct {
			Translation string `json:"translation"`
		}
		if err := llm.DecodeLLMJSON(content, &payload); err != nil {
			return services.Transient(fmt.Errorf("decode translation: %w", err))
		}
		text = strings.TrimSpace(payload.Translation)
		if text == "" {
			return services.Transient(errors.New("decode translation: empty translation"))
		}
		return nil
	})
	if clientErr != nil {
		return "", clientErr
	}
	return text, err
}

// BuildPrompt renders the user prompt for one segment.
func BuildPrompt(req translate.Request) string {
	var b strings.Builder
	source := languageName(req.Source)
	if source == "" {
		source = "the detected source language"
	}
	fmt.Fprintf(&b, "Source language: %s\n", source)
	fmt.Fprintf(&b, "Target language: %s\n", languageName(req.Target))
	fmt.Fprintf(&b, "Word budget: %d\n", req.WordBudget)
	fmt.Fprintf(&b, "Text: %s", strings.TrimSpace(req.Text))
	return b.String()
}

func languageName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return code
	}
	return fmt.Sprintf("%s (%s)", name, tag.String())
}

// Ready delegates to the underlying client when it can report readiness.
func (b *Backend) Ready() error {
	if b == nil || b.client == nil {
		return errors.New("llm client unavailable")
	}
	if r, ok := b.client.(interface{ Ready() error }); ok {
		return r.Ready()
	}
	return nil
}
