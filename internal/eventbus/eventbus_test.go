package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmit_AssignsIDAndTimestampWhenMissing(t *testing.T) {
	b := New()
	b.Emit(Event{Type: EventWorkflowStart, WorkflowID: "wf1"})

	events := b.EventsFor("wf1")
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestEmit_DispatchesToSubscribers(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var received []Event

	done := make(chan struct{}, 1)
	b.Subscribe(func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
		done <- struct{}{}
	})

	b.Emit(Event{Type: EventToolStart, WorkflowID: "wf1"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber was never called")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, EventToolStart, received[0].Type)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	var mu sync.Mutex

	token := b.Subscribe(func(e Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	b.Unsubscribe(token)
	b.Emit(Event{Type: EventToolStart})

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls)
}

func TestSubscriberPanicDoesNotCrashBus(t *testing.T) {
	b := New()
	b.Subscribe(func(e Event) { panic("boom") })
	assert.NotPanics(t, func() {
		b.Emit(Event{Type: EventToolError})
		time.Sleep(20 * time.Millisecond)
	})
}

func TestEventsSince_FiltersByTimestamp(t *testing.T) {
	b := New()
	cutoff := time.Now().UTC()
	b.Emit(Event{Type: EventProgressUpdate, Timestamp: cutoff.Add(-time.Hour)})
	b.Emit(Event{Type: EventProgressUpdate, Timestamp: cutoff.Add(time.Hour)})

	recent := b.EventsSince(cutoff)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Timestamp.After(cutoff))
}

func TestEventsFor_FiltersByWorkflowID(t *testing.T) {
	b := New()
	b.Emit(Event{Type: EventStepStart, WorkflowID: "a"})
	b.Emit(Event{Type: EventStepStart, WorkflowID: "b"})

	assert.Len(t, b.EventsFor("a"), 1)
	assert.Len(t, b.EventsFor("b"), 1)
	assert.Len(t, b.EventsFor("c"), 0)
}

func TestPrune_DropsEventsOlderThanMaxAge(t *testing.T) {
	b := New()
	now := time.Now().UTC()
	b.Emit(Event{Type: EventStepStart, Timestamp: now.Add(-time.Hour)})
	b.Emit(Event{Type: EventStepStart, Timestamp: now})

	b.Prune(now, 10*time.Minute)

	remaining := b.EventsSince(now.Add(-time.Hour))
	assert.Len(t, remaining, 1)
}
