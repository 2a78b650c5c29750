// Package council defines the data model for council deliberations: councils,
// launches, worker sessions, discussion messages, and launch logs. Types here
// are plain records; all stage transitions are driven by the orchestrator.
package council

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Council is a fixed named group of agents plus an optional chairman and a
// discussion round count. A council is reusable across launches and is never
// mutated while a launch is in flight.
type Council struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	AgentIDs         []string  `json:"agent_ids"`
	ChairmanAgentID  string    `json:"chairman_agent_id,omitempty"`
	DiscussionRounds int       `json:"discussion_rounds"`
	Created          time.Time `json:"created"`
}

// NewCouncil creates a council with a generated ID.
func NewCouncil(name string, agentIDs []string, chairmanAgentID string, discussionRounds int) *Council {
	return &Council{
		ID:               NewID(),
		Name:             name,
		AgentIDs:         agentIDs,
		ChairmanAgentID:  chairmanAgentID,
		DiscussionRounds: discussionRounds,
		Created:          time.Now(),
	}
}

// Validate checks that the council is well-formed.
func (c *Council) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("council name is required")
	}
	if len(c.AgentIDs) == 0 {
		return fmt.Errorf("council requires at least one agent")
	}
	seen := make(map[string]bool, len(c.AgentIDs))
	for _, id := range c.AgentIDs {
		if id == "" {
			return fmt.Errorf("council agent id must not be empty")
		}
		if seen[id] {
			return fmt.Errorf("duplicate agent id %q in council", id)
		}
		seen[id] = true
	}
	if c.DiscussionRounds < 0 {
		return fmt.Errorf("discussion rounds must be >= 0, got %d", c.DiscussionRounds)
	}
	return nil
}

// Project is the working-directory context a launch runs against. Agent
// processes spawned for a launch execute inside the project's directory.
type Project struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	WorkingDir string    `json:"working_dir"`
	Created    time.Time `json:"created"`
}

// NewProject creates a project with a generated ID.
func NewProject(name, workingDir string) *Project {
	return &Project{
		ID:         NewID(),
		Name:       name,
		WorkingDir: workingDir,
		Created:    time.Now(),
	}
}

// NewID returns a fresh unique identifier.
func NewID() string {
	return uuid.NewString()
}
