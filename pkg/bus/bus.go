// Package bus provides non-blocking fan-out of routed events to named
// observer taps. Taps are for observation only (dashboards, tests, audit
// trails); they never participate in rule dispatch, and a slow tap drops
// events rather than stalling the funnel.
package bus

import (
	"sync"

	"github.com/greybell/butler/pkg/domain"
)

// Subscriber is a named tap on the event stream. Multiple subscribers can
// independently observe the same events (fan-out).
type Subscriber struct {
	Name string
	ch   chan domain.AgentEvent // receives copies of published events
}

// EventTap fans every published AgentEvent out to all registered
// subscribers.
type EventTap struct {
	subs      []*Subscriber
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewEventTap creates an empty tap set.
func NewEventTap() *EventTap {
	return &EventTap{}
}

// Subscribe creates a named subscriber that receives copies of all
// published events. The returned channel is buffered; slow consumers drop.
func (t *EventTap) Subscribe(name string) <-chan domain.AgentEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	sub := &Subscriber{Name: name, ch: make(chan domain.AgentEvent, 64)}
	t.subs = append(t.subs, sub)
	return sub.ch
}

// Publish sends an event to every subscriber without blocking.
func (t *EventTap) Publish(event domain.AgentEvent) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	for _, sub := range t.subs {
		select {
		case sub.ch <- event:
		default: // drop if subscriber is slow
		}
	}
}

// SubscriberCount returns the number of registered taps (for diagnostics).
func (t *EventTap) SubscriberCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Close closes every subscriber channel. Publish becomes a no-op.
func (t *EventTap) Close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.closed = true
		for _, sub := range t.subs {
			close(sub.ch)
		}
	})
}
