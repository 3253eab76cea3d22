// Package eventbus is the process-wide, in-memory event log (component H):
// an append-only record of workflow events with asynchronous fan-out to
// subscribers, grounded on the teacher's swarm.EventDispatcher
// (pkg/swarm/node.go) — goroutine-per-handler dispatch with panic recovery.
package eventbus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventWorkflowStart    EventType = "workflow_start"
	EventWorkflowComplete EventType = "workflow_complete"
	EventWorkflowError    EventType = "workflow_error"
	EventStepStart        EventType = "step_start"
	EventStepComplete     EventType = "step_complete"
	EventStepError        EventType = "step_error"
	EventLLMStart         EventType = "llm_start"
	EventLLMComplete      EventType = "llm_complete"
	EventLLMError         EventType = "llm_error"
	EventToolStart        EventType = "tool_start"
	EventToolComplete     EventType = "tool_complete"
	EventToolError        EventType = "tool_error"
	EventMessageAdded     EventType = "message_added"
	EventProgressUpdate   EventType = "progress_update"
)

// Event is the append-only record emitted by the workflow runtime.
type Event struct {
	ID            string
	Timestamp     time.Time
	Type          EventType
	WorkflowID    string
	StepID        string
	Data          map[string]any
	UserRequestID string
}

// Subscriber receives every event emitted after it subscribes.
type Subscriber func(Event)

// Bus is a mutex-guarded event log with goroutine-per-subscriber fan-out;
// readers take a copy-on-snapshot of the log, never the live slice.
type Bus struct {
	mu          sync.Mutex
	events      []Event
	subscribers map[int]Subscriber
	nextSubID   int
}

func New() *Bus {
	return &Bus{subscribers: make(map[int]Subscriber)}
}

// Emit appends event and dispatches it to every current subscriber. Each
// subscriber runs on its own goroutine so a slow or panicking listener
// can't block emission or take down the bus.
func (b *Bus) Emit(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	b.events = append(b.events, event)
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		go func(s Subscriber) {
			defer func() { recover() }()
			s(event)
		}(sub)
	}
}

// Subscribe registers callback and returns a token for Unsubscribe.
func (b *Bus) Subscribe(callback Subscriber) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSubID
	b.nextSubID++
	b.subscribers[id] = callback
	return id
}

func (b *Bus) Unsubscribe(token int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, token)
}

// EventsSince returns a snapshot of every event at or after ts.
func (b *Bus) EventsSince(ts time.Time) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, e := range b.events {
		if !e.Timestamp.Before(ts) {
			out = append(out, e)
		}
	}
	return out
}

// EventsFor returns a snapshot of every event for workflowID.
func (b *Bus) EventsFor(workflowID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, e := range b.events {
		if e.WorkflowID == workflowID {
			out = append(out, e)
		}
	}
	return out
}

// Prune drops events older than maxAge relative to now.
func (b *Bus) Prune(now time.Time, maxAge time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := now.Add(-maxAge)
	kept := b.events[:0]
	for _, e := range b.events {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	b.events = kept
}
