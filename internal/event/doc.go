// Package event provides a pub-sub event bus for decoupled inter-component
// communication in conclave.
//
// The stage controller, discussion runner, and watchers publish events as a
// launch progresses; renderers and log sinks subscribe without the publishers
// knowing who is listening.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Types
//
//   - [StageChangedEvent]: Emitted when a launch moves between stages
//   - [LogEntryEvent]: Emitted for every launch log entry
//   - [DiscussionMessageEvent]: Emitted when a discussion message is recorded
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Multiple goroutines can publish
// and subscribe concurrently. Handlers are called synchronously and protected
// against panics - a panicking handler will not prevent other handlers from
// being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	// Subscribe to specific event types
//	bus.Subscribe("council.stage_changed", func(e event.Event) {
//	    changed := e.(event.StageChangedEvent)
//	    log.Printf("Launch %s entered %s", changed.LaunchID, changed.CurrentStage)
//	})
//
//	// Subscribe to all events (useful for logging)
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("Event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Unsubscribe when done
//	id := bus.Subscribe("council.log", handler)
//	bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - council.stage_changed
//   - council.log
//   - council.discussion_message
package event
