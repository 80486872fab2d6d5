package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dubber/internal/config"
)

// Event identifies a notification-worthy job milestone.
type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventTest         Event = "test"
)

// Payload carries the values used to render an event message. Recognized
// keys: title, jobID, language, result, duration, stage, error.
type Payload map[string]any

func (p Payload) text(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	}
	return ""
}

// subject names the job in a message: its title, else its ID.
func (p Payload) subject() string {
	if t := p.text("title"); t != "" {
		return t
	}
	return p.text("jobID")
}

type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService returns an ntfy notifier, or a no-op when notifications.ntfy_topic
// is empty.
func NewService(cfg *config.Config) Service {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return noopService{}
	}
	n := cfg.Notifications
	timeout := 10 * time.Second
	if n.RequestTimeout > 0 {
		timeout = time.Duration(n.RequestTimeout) * time.Second
	}
	return &ntfy{
		topicURL: strings.TrimSpace(n.NtfyTopic),
		http:     &http.Client{Timeout: timeout},
		muted: map[Event]bool{
			EventJobCompleted: !n.JobCompleted,
			EventJobFailed:    !n.JobFailed,
		},
	}
}

// note is one ntfy message: the body goes in the POST, the rest in headers.
type note struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

var composers = map[Event]func(Payload) note{
	EventJobCompleted: func(p Payload) note {
		lines := []string{fmt.Sprintf("Dub ready: %s (%s)", p.subject(), strings.ToUpper(p.text("language")))}
		if r := p.text("result"); r != "" {
			lines = append(lines, "File: "+r)
		}
		if d, _ := p["duration"].(time.Duration); d > 0 {
			lines = append(lines, "Took "+d.Round(time.Second).String())
		}
		return note{Title: "Dubber - Complete", Body: strings.Join(lines, "\n"), Tags: []string{"dubber", "job", "completed"}, Priority: "high"}
	},
	EventJobFailed: func(p Payload) note {
		head := "Dub failed: " + p.subject()
		if st := p.text("stage"); st != "" {
			head += " during " + st
		}
		reason := p.text("error")
		if reason == "" {
			reason = "unknown"
		}
		return note{Title: "Dubber - Error", Body: head + ": " + reason, Tags: []string{"dubber", "error", "alert"}, Priority: "high"}
	},
	EventTest: func(Payload) note {
		return note{Title: "Dubber - Test", Body: "Notification system test", Tags: []string{"dubber", "test"}, Priority: "low"}
	},
}

type ntfy struct {
	topicURL string
	http     *http.Client
	muted    map[Event]bool
}

func (n *ntfy) Publish(ctx context.Context, event Event, payload Payload) error {
	if n.muted[event] {
		return nil
	}
	compose, ok := composers[event]
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.post(ctx, compose(payload))
}

func (n *ntfy) post(ctx context.Context, msg note) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.topicURL, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	h := req.Header
	h.Set("User-Agent", "dubber")
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Title", msg.Title)
	h.Set("Tags", strings.Join(msg.Tags, ","))
	h.Set("Priority", msg.Priority)

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
