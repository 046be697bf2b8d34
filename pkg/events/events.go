// Package events publishes narration outcome notifications.
package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Event types. The NATS subject is "<prefix>.<type>".
const (
	TypeCompleted = "completed"
	TypeFailed    = "failed"
	TypeOrphaned  = "orphaned"
)

// Event describes the outcome of one narration request.
type Event struct {
	Type       string    `json:"type"`
	RecordID   string    `json:"recordId"`
	RequestID  string    `json:"requestId,omitempty"`
	StorageKey string    `json:"storageKey,omitempty"`
	AudioURL   string    `json:"audioUrl,omitempty"`
	Bytes      int       `json:"bytes,omitempty"`
	DurationMs int64     `json:"durationMs,omitempty"`
	ErrorKind  string    `json:"errorKind,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Fanout publishes every event to each of its publishers.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the type of each published event in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

var (
	_ Publisher = Nop{}
	_ Publisher = Fanout(nil)
	_ Publisher = (*Recorder)(nil)
)
