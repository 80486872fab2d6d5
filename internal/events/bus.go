// Package events keeps a bounded, sequenced history of job lifecycle events
// and optionally mirrors them to RabbitMQ.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dubber/internal/jobs"
	"dubber/internal/logging"
)

// Type classifies an event.
type Type string

const (
	TypeStatus   Type = "status"
	TypeProgress Type = "progress"
	TypeResult   Type = "result"
	TypeError    Type = "error"
)

// Event is one sequenced job update.
type Event struct {
	Seq       int64       `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	JobID     string      `json:"job_id"`
	Type      Type        `json:"type"`
	Status    jobs.Status `json:"status"`
	Progress  int         `json:"progress"`
	Message   string      `json:"message,omitempty"`
}

// Sink receives every published event after it has been sequenced.
type Sink interface {
	Deliver(Event)
}

// Bus stores recent events and serves incremental reads.
type Bus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	last      map[string]jobs.Job
	sinks     []Sink
}

// NewBus creates a bus retaining at most maxEvents events.
func NewBus(maxEvents int, sinks ...Sink) *Bus {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &Bus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		last:      make(map[string]jobs.Job),
		sinks:     sinks,
	}
}

// Publish appends one event and assigns its sequence and timestamp.
func (b *Bus) Publish(event Event) Event {
	b.mu.Lock()
	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}
	sinks := b.sinks
	b.mu.Unlock()

	for _, sink := range sinks {
		sink.Deliver(event)
	}
	return event
}

// ObserveJob converts a repository snapshot into an event. Writes that change
// neither status nor progress are ignored.
func (b *Bus) ObserveJob(job jobs.Job) {
	b.mu.Lock()
	prev, seen := b.last[job.ID]
	if seen && prev.Status == job.Status && prev.Progress == job.Progress {
		b.mu.Unlock()
		return
	}
	if job.Status.IsTerminal() {
		delete(b.last, job.ID)
	} else {
		b.last[job.ID] = job
	}
	b.mu.Unlock()

	event := Event{
		JobID:     job.ID,
		Type:      TypeProgress,
		Status:    job.Status,
		Progress:  job.Progress,
		Timestamp: job.UpdatedAt,
	}
	switch {
	case job.Status == jobs.StatusCompleted:
		event.Type = TypeResult
		event.Message = job.ResultPath
	case job.Status == jobs.StatusFailed:
		event.Type = TypeError
		event.Message = job.ErrorMessage
	case !seen || prev.Status != job.Status:
		event.Type = TypeStatus
	}
	b.Publish(event)
}

// Since returns events with sequence strictly greater than seq.
func (b *Bus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}
	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// ForJob filters Since(seq) to one job.
func (b *Bus) ForJob(jobID string, seq int64) []Event {
	all := b.Since(seq)
	out := all[:0]
	for _, event := range all {
		if event.JobID == jobID {
			out = append(out, event)
		}
	}
	return out
}

// LastSeq returns the most recent sequence number.
func (b *Bus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

// Forwarder hands events to a publish function on its own goroutine so a slow
// broker never blocks job writers. Events are dropped when the buffer is full.
type Forwarder struct {
	ch      chan Event
	publish func(context.Context, Event) error
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewForwarder returns a Forwarder with the given buffer size.
func NewForwarder(buffer int, publish func(context.Context, Event) error, logger *slog.Logger) *Forwarder {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Forwarder{ch: make(chan Event, buffer), publish: publish, logger: logger}
}

// Deliver queues an event without blocking.
func (f *Forwarder) Deliver(event Event) {
	select {
	case f.ch <- event:
	default:
		f.logger.Warn("event forwarder buffer full; dropping event",
			logging.String(logging.FieldJobID, event.JobID),
			logging.Int64("seq", event.Seq),
			logging.String(logging.FieldEventType, "event_dropped"),
		)
	}
}

// Start runs the forwarding loop until ctx ends.
func (f *Forwarder) Start(ctx context.Context) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-f.ch:
				if err := f.publish(ctx, event); err != nil {
					f.logger.Warn("event publish failed",
						logging.Error(err),
						logging.String(logging.FieldJobID, event.JobID),
						logging.String(logging.FieldEventType, "event_publish_failed"),
						logging.String(logging.FieldImpact, "external subscribers miss this event"),
					)
				}
			}
		}
	}()
}

// Wait blocks until the forwarding loop exits.
func (f *Forwarder) Wait() { f.wg.Wait() }
