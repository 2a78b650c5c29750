// Package errors provides centralized error definitions and error handling
// utilities for the conclave codebase. It defines sentinel errors, semantic
// error types, error constructors with context wrapping, and classification
// helpers.
//
// # Error Types
//
// Semantic errors represent the conditions the orchestration core surfaces at
// operation boundaries:
//   - NotFoundError: a council, project, launch, session, or agent is missing
//   - InvalidStateError: a stage transition was attempted from an illegal stage
//   - TimeoutError: an operation exceeded its budget
//
// RuntimeError is the domain error for failures talking to the session
// runtime (process spawn, stop, message delivery).
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewNotFoundError("council", "abc123")
//	err := errors.NewInvalidStateError(launchID, stage, "trigger review")
//	err := errors.NewRuntimeError("start failed", cause).WithSessionID(id)
//
// Checking errors:
//
//	if errors.IsNotFound(err) { ... }
//	if errors.Is(err, errors.ErrInvalidStage) { ... }
//
//	var nf *errors.NotFoundError
//	if errors.As(err, &nf) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Lookup sentinel errors, one per entity kind. The store wraps these; the
// orchestrator converts them into NotFoundError at operation boundaries.
var (
	// ErrCouncilNotFound indicates that a council could not be found.
	ErrCouncilNotFound = New("council not found")
	// ErrProjectNotFound indicates that a project could not be found.
	ErrProjectNotFound = New("project not found")
	// ErrLaunchNotFound indicates that a launch could not be found.
	ErrLaunchNotFound = New("launch not found")
	// ErrSessionNotFound indicates that a worker session could not be found.
	ErrSessionNotFound = New("session not found")
	// ErrAgentNotFound indicates that a roster agent could not be found.
	ErrAgentNotFound = New("agent not found")
)

// Stage machine sentinel errors
var (
	// ErrInvalidStage indicates that an operation was attempted from a stage
	// that does not permit it.
	ErrInvalidStage = New("invalid stage for operation")
	// ErrLaunchTerminal indicates that a launch already reached the complete
	// stage and accepts no further transitions.
	ErrLaunchTerminal = New("launch already complete")
	// ErrNoSynthesis indicates that a follow-up chat was requested before a
	// synthesis exists.
	ErrNoSynthesis = New("launch has no synthesis")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// ConclaveError is the base interface for all conclave errors. It extends the
// standard error interface with classification methods.
type ConclaveError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// RuntimeError represents failures interacting with the session runtime:
// spawning, stopping, or messaging worker processes.
//
// Example:
//
//	err := errors.NewRuntimeError("process start failed", cause).
//		WithSessionID("sess-1").WithAgentID("sonnet")
type RuntimeError struct {
	baseError
	SessionID string
	AgentID   string
}

// NewRuntimeError creates a new RuntimeError.
func NewRuntimeError(message string, cause error) *RuntimeError {
	return &RuntimeError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *RuntimeError) WithSessionID(id string) *RuntimeError {
	e.SessionID = id
	return e
}

// WithAgentID adds an agent ID to the error context.
func (e *RuntimeError) WithAgentID(id string) *RuntimeError {
	e.AgentID = id
	return e
}

// WithSeverity sets the error severity.
func (e *RuntimeError) WithSeverity(s Severity) *RuntimeError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *RuntimeError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.AgentID != "" {
		parts = append(parts, fmt.Sprintf("agent=%s", e.AgentID))
	}

	prefix := "runtime error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("runtime error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *RuntimeError) Is(target error) bool {
	if _, ok := target.(*RuntimeError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("council", "abc123")
//	fmt.Println(err) // "council 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// InvalidStateError represents a stage transition attempted from a stage that
// does not allow it. Callers must re-read launch state before retrying.
//
// Example:
//
//	err := errors.NewInvalidStateError("launch-1", "complete", "trigger review")
//	fmt.Println(err) // `cannot trigger review: launch 'launch-1' is in stage 'complete'`
type InvalidStateError struct {
	baseError
	LaunchID  string
	Stage     string
	Operation string
}

// NewInvalidStateError creates a new InvalidStateError.
func NewInvalidStateError(launchID, stage, operation string) *InvalidStateError {
	return &InvalidStateError{
		baseError: baseError{
			message:    fmt.Sprintf("cannot %s: launch '%s' is in stage '%s'", operation, launchID, stage),
			cause:      ErrInvalidStage,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		LaunchID:  launchID,
		Stage:     stage,
		Operation: operation,
	}
}

// Error returns the formatted error message.
func (e *InvalidStateError) Error() string {
	return e.message
}

// Is checks if this error matches the target.
func (e *InvalidStateError) Is(target error) bool {
	if _, ok := target.(*InvalidStateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for chat session", 30*time.Second)
//	fmt.Println(err) // "timeout error: waiting for chat session (timeout: 30s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			cause:      ErrTimeout,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsNotFound returns true if the error is a NotFoundError or wraps any of the
// per-entity lookup sentinels.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var notFound *NotFoundError
	if As(err, &notFound) {
		return true
	}

	return Is(err, ErrCouncilNotFound) || Is(err, ErrProjectNotFound) ||
		Is(err, ErrLaunchNotFound) || Is(err, ErrSessionNotFound) ||
		Is(err, ErrAgentNotFound)
}

// IsInvalidState returns true if the error is an InvalidStateError or wraps
// ErrInvalidStage.
func IsInvalidState(err error) bool {
	if err == nil {
		return false
	}

	var invalid *InvalidStateError
	if As(err, &invalid) {
		return true
	}

	return Is(err, ErrInvalidStage)
}

// IsRetryable returns true if the error represents a transient condition that
// may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var conclaveErr ConclaveError
	if As(err, &conclaveErr) {
		return conclaveErr.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end
// users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var conclaveErr ConclaveError
	if As(err, &conclaveErr) {
		return conclaveErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error. Defaults to
// SeverityError for errors that don't implement ConclaveError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var conclaveErr ConclaveError
	if As(err, &conclaveErr) {
		return conclaveErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with an additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to persist launch")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to load launch %s", launchID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
