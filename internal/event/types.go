package event

import (
	"time"

	"github.com/conclave-ai/conclave/internal/council"
)

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "council.stage_changed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// TypeStageChanged is published whenever a launch transitions between stages.
const TypeStageChanged = "council.stage_changed"

// TypeLogEntry is published for every log entry recorded against a launch.
const TypeLogEntry = "council.log"

// TypeDiscussionMessage is published when a discussion message is recorded.
const TypeDiscussionMessage = "council.discussion_message"

// StageChangedEvent is emitted when a launch moves from one stage to another.
type StageChangedEvent struct {
	baseEvent
	LaunchID      string        // Launch that changed stage
	PreviousStage council.Stage // Stage before the transition
	CurrentStage  council.Stage // Stage after the transition
	SessionIDs    []string      // Worker sessions spawned by the transition, if any
}

// NewStageChangedEvent creates a StageChangedEvent.
func NewStageChangedEvent(launchID string, previous, current council.Stage, sessionIDs []string) StageChangedEvent {
	return StageChangedEvent{
		baseEvent:     newBaseEvent(TypeStageChanged),
		LaunchID:      launchID,
		PreviousStage: previous,
		CurrentStage:  current,
		SessionIDs:    sessionIDs,
	}
}

// LogEntryEvent is emitted for every log entry recorded against a launch.
// Subscribers see entries in the order they were written.
type LogEntryEvent struct {
	baseEvent
	Entry council.LogEntry
}

// NewLogEntryEvent creates a LogEntryEvent.
func NewLogEntryEvent(entry council.LogEntry) LogEntryEvent {
	return LogEntryEvent{
		baseEvent: newBaseEvent(TypeLogEntry),
		Entry:     entry,
	}
}

// DiscussionMessageEvent is emitted when a discussion message is recorded,
// including the placeholder messages written for agents that produced no
// output in a round.
type DiscussionMessageEvent struct {
	baseEvent
	Message council.DiscussionMessage
}

// NewDiscussionMessageEvent creates a DiscussionMessageEvent.
func NewDiscussionMessageEvent(msg council.DiscussionMessage) DiscussionMessageEvent {
	return DiscussionMessageEvent{
		baseEvent: newBaseEvent(TypeDiscussionMessage),
		Message:   msg,
	}
}
