// Package store defines persistence for conclave entities and provides a
// file-backed JSON implementation.
//
// Interfaces are segregated per entity so components depend only on what they
// touch; Store composes them all for wiring. Lookups for missing entities
// return wrapped NotFound errors matchable with errors.IsNotFound.
package store

import (
	"context"

	"github.com/conclave-ai/conclave/internal/council"
)

// CouncilStore persists council definitions.
type CouncilStore interface {
	SaveCouncil(ctx context.Context, c *council.Council) error
	LoadCouncil(ctx context.Context, id string) (*council.Council, error)
	ListCouncils(ctx context.Context) ([]*council.Council, error)
	DeleteCouncil(ctx context.Context, id string) error
}

// ProjectStore persists projects.
type ProjectStore interface {
	SaveProject(ctx context.Context, p *council.Project) error
	LoadProject(ctx context.Context, id string) (*council.Project, error)
	ListProjects(ctx context.Context) ([]*council.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// LaunchStore persists launches. The stage machine re-reads launches through
// this interface before every transition.
type LaunchStore interface {
	SaveLaunch(ctx context.Context, l *council.Launch) error
	LoadLaunch(ctx context.Context, id string) (*council.Launch, error)
	ListLaunches(ctx context.Context) ([]*council.Launch, error)
}

// SessionStore persists worker sessions.
type SessionStore interface {
	SaveSession(ctx context.Context, s *council.Session) error
	LoadSession(ctx context.Context, id string) (*council.Session, error)
	ListSessionsByLaunch(ctx context.Context, launchID string) ([]*council.Session, error)
}

// MessageStore persists the append-only discussion transcript.
type MessageStore interface {
	AppendMessage(ctx context.Context, m *council.DiscussionMessage) error
	ListMessagesByLaunch(ctx context.Context, launchID string) ([]*council.DiscussionMessage, error)
}

// LogStore persists the append-only launch log.
type LogStore interface {
	AppendLog(ctx context.Context, e *council.LogEntry) error
	ListLogsByLaunch(ctx context.Context, launchID string) ([]*council.LogEntry, error)
}

// Store composes every entity store for wiring.
type Store interface {
	CouncilStore
	ProjectStore
	LaunchStore
	SessionStore
	MessageStore
	LogStore
}
