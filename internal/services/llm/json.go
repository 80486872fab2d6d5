package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeLLMJSON unmarshals a model answer into target. Markdown fences and
// prose around a single JSON object are tolerated.
func DecodeLLMJSON(content string, target any) error {
	raw := strings.TrimSpace(content)
	if raw == "" {
		return errors.New("empty payload")
	}
	firstErr := json.Unmarshal([]byte(raw), target)
	if firstErr == nil {
		return nil
	}
	inner := extractObject(raw)
	if inner == "" || inner == raw {
		return fmt.Errorf("%w (payload snippet: %s)", firstErr, summarizePayloadSnippet(raw))
	}
	if err := json.Unmarshal([]byte(inner), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, summarizePayloadSnippet(inner))
	}
	return nil
}

func extractObject(content string) string {
	body := StripCodeFence(content)
	if body == "" || strings.IndexByte("{[", body[0]) >= 0 {
		return body
	}
	open := strings.IndexByte(body, '{')
	closing := strings.LastIndexByte(body, '}')
	if open < 0 || closing <= open {
		return body
	}
	return strings.TrimSpace(body[open : closing+1])
}

// StripCodeFence unwraps ```lang ... ``` blocks. Text without a leading
// fence is returned trimmed.
func StripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	rest, ok := strings.CutPrefix(s, "```")
	if !ok {
		return s
	}
	// Drop an info string such as "json" on the opening line.
	if nl := strings.IndexAny(rest, "\r\n"); nl >= 0 {
		if tag := strings.TrimSpace(rest[:nl]); !strings.ContainsAny(tag, " {[\"") {
			rest = rest[nl:]
		}
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func summarizePayloadSnippet(content string) string {
	const limit = 160
	flat := strings.Join(strings.Fields(content), " ")
	if flat == "" {
		return "<empty>"
	}
	if r := []rune(flat); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return flat
}
