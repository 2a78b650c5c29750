// Package runtime defines the worker-session runtime the orchestration core
// drives, plus an exec-backed reference implementation.
//
// A Runtime owns the actual agent processes. The core only needs to start and
// stop sessions, observe their completion through typed events, and read back
// their captured output. Anything heavier (remote transports, containerized
// agents) can implement the same interface without touching the core.
package runtime

import (
	"context"
	"time"

	"github.com/conclave-ai/conclave/internal/council"
)

// Event is the sealed union of session lifecycle events. Only Exited and
// Stopped mean a session is done; consumers ignore event kinds they do not
// recognize.
type Event interface{ isEvent() }

// Exited reports that a session's process exited on its own.
type Exited struct {
	// Code is the process exit code.
	Code int
	// Duration is how long the process ran.
	Duration time.Duration
}

// Stopped reports that a session was terminated via StopProcess.
type Stopped struct{}

// OutputChunk carries a fragment of the session's stdout as it arrives.
// The orchestration core ignores these; live views subscribe to them.
type OutputChunk struct {
	Content string
}

func (Exited) isEvent()      {}
func (Stopped) isEvent()     {}
func (OutputChunk) isEvent() {}

// EventHandler receives lifecycle events for a session it subscribed to.
type EventHandler func(sessionID string, ev Event)

// Runtime manages worker-session processes.
//
// The typical lifecycle is:
//  1. Subscribe to the session id to observe completion.
//  2. StartProcess with the session and its prompt.
//  3. Read Output once an Exited or Stopped event arrives.
//  4. Unsubscribe.
//
// Implementations must be safe for concurrent use.
type Runtime interface {
	// StartProcess launches the worker process for a session, delivering
	// the prompt on stdin. It returns once the process has started; the
	// session runs in the background until it exits or is stopped.
	StartProcess(ctx context.Context, sess *council.Session, prompt string) error

	// StopProcess force-terminates a session's process. Stopping an
	// unknown or already-finished session is not an error.
	StopProcess(id string) error

	// IsRunning reports whether the session's process is alive.
	IsRunning(id string) bool

	// Subscribe registers a handler for one session's events and returns
	// a token for Unsubscribe. Handlers for the same session are invoked
	// in registration order.
	Subscribe(id string, h EventHandler) string

	// Unsubscribe removes a previously registered handler. Unknown tokens
	// are ignored.
	Unsubscribe(id, subID string)

	// SendMessage delivers a follow-up message to a running session's
	// stdin. Returns false if the session is not running.
	SendMessage(id, content string) bool

	// Output returns everything the session has written to stdout so far,
	// or "" for an unknown session.
	Output(id string) string
}
