package domain

import "fmt"

// ---------------------------------------------------------------------------
// AgentEvent: one occurrence reported by any source
// ---------------------------------------------------------------------------

// AgentEvent is the universal envelope for everything the Butler reacts to.
// Events are created by a source (or the scheduler when a job fires),
// routed exactly once, and never mutated after creation.
type AgentEvent struct {
	// ID uniquely identifies this event instance.
	ID EntityID `json:"id"`

	// Source identifies who emitted the event (e.g. "calendar", "scheduler").
	Source string `json:"source"`

	// Type classifies the event (e.g. "calendar.upcoming", "schedule.triggered").
	Type string `json:"event_type"`

	// Payload carries event-specific data.
	Payload Payload `json:"payload,omitempty"`

	// Metadata carries transport-level annotations.
	Metadata Metadata `json:"metadata,omitempty"`

	// Timestamp is when the event was emitted.
	Timestamp Timestamp `json:"timestamp"`
}

// NewAgentEvent creates a timestamped event.
func NewAgentEvent(source, eventType string, payload Payload, metadata Metadata) AgentEvent {
	return AgentEvent{
		ID:        NewID(),
		Source:    source,
		Type:      eventType,
		Payload:   payload,
		Metadata:  metadata,
		Timestamp: Now(),
	}
}

// Describe returns a short human-readable form of the event, used when an
// action needs a textual fallback for an untemplated payload.
func (e AgentEvent) Describe() string {
	if len(e.Payload) == 0 {
		return fmt.Sprintf("[%s] %s", e.Source, e.Type)
	}
	return fmt.Sprintf("[%s] %s %v", e.Source, e.Type, map[string]interface{}(e.Payload))
}

// ---------------------------------------------------------------------------
// Well-known sources and event types
// ---------------------------------------------------------------------------

const (
	// SourceScheduler marks events emitted by job firing loops.
	SourceScheduler = "scheduler"
	// SourceButler marks events emitted by the butler service itself.
	SourceButler = "butler"

	// WildcardPattern matches any source or event type in a trigger condition.
	WildcardPattern = "*"
)

// Dotted event type constants. Sources outside this module define their own;
// these are the ones the core itself emits.
const (
	EventScheduleTriggered = "schedule.triggered"
	EventButlerStarted     = "butler.started"
	EventButlerStopped     = "butler.stopped"
)

// ---------------------------------------------------------------------------
// Event flow contracts
// ---------------------------------------------------------------------------

// EventCallback receives one event from a producer. Implementations must be
// safe for concurrent use: sources may deliver from independent goroutines.
type EventCallback func(AgentEvent)

// EventSource is an external producer of AgentEvents (calendar poller,
// webhook receiver, ...). Concrete sources live outside this module; the
// Butler only drives their lifecycle and receives their events through the
// callback bound before Start.
type EventSource interface {
	// Name identifies the source in status reports and logs.
	Name() string
	// Bind installs the callback invoked for every event the source produces.
	// Called exactly once, before Start.
	Bind(cb EventCallback)
	// Start begins producing events. Non-blocking.
	Start() error
	// Stop halts event production and releases resources.
	Stop()
	// Running reports whether the source is currently producing events.
	Running() bool
}
