// Package roster loads the agent catalog councils draw their members from.
//
// The roster is a YAML file listing every runnable agent: its id, display
// name, the command that starts a worker session, and whether its backend
// serializes requests. Councils reference roster agents by id; the exec
// runtime resolves ids back to commands through a Directory.
package roster

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/conclave-ai/conclave/internal/errors"
)

// Agent is one roster entry.
type Agent struct {
	// ID is the stable identifier councils reference (e.g., "gpt-5").
	ID string `yaml:"id"`
	// Name is the display name used in transcripts and prompts.
	Name string `yaml:"name"`
	// Command is the argv that starts a worker session for this agent.
	// The prompt is delivered on stdin.
	Command []string `yaml:"command"`
	// Model is an optional model hint exported to the process environment.
	Model string `yaml:"model,omitempty"`
	// Serialized marks backends that run requests one at a time. Discussion
	// round budgets scale with cohort size when any member is serialized.
	Serialized bool `yaml:"serialized,omitempty"`
}

// rosterFile is the on-disk YAML shape.
type rosterFile struct {
	Agents []Agent `yaml:"agents"`
}

// Directory is an immutable, ordered view of the loaded roster.
type Directory struct {
	agents []Agent
	byID   map[string]int
}

// Load reads and validates the roster file at path.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster file: %w", err)
	}

	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing roster file: %w", err)
	}

	dir, err := NewDirectory(file.Agents)
	if err != nil {
		return nil, fmt.Errorf("invalid roster: %w", err)
	}

	return dir, nil
}

// NewDirectory builds a Directory from agent entries, validating each one.
func NewDirectory(agents []Agent) (*Directory, error) {
	byID := make(map[string]int, len(agents))
	for i, a := range agents {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("agent %d: %w", i, err)
		}
		if _, dup := byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate agent id '%s'", a.ID)
		}
		byID[a.ID] = i
	}

	copied := make([]Agent, len(agents))
	copy(copied, agents)

	return &Directory{agents: copied, byID: byID}, nil
}

// Validate checks that an agent entry is well-formed.
func (a *Agent) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	if a.Name == "" {
		return fmt.Errorf("agent '%s': name is required", a.ID)
	}
	if len(a.Command) == 0 {
		return fmt.Errorf("agent '%s': command is required", a.ID)
	}
	return nil
}

// Agent returns the roster entry with the given id.
func (d *Directory) Agent(id string) (*Agent, error) {
	i, ok := d.byID[id]
	if !ok {
		return nil, errors.NewNotFoundError("agent", id).WithCause(errors.ErrAgentNotFound)
	}
	a := d.agents[i]
	return &a, nil
}

// Agents returns all roster entries in file order.
func (d *Directory) Agents() []Agent {
	out := make([]Agent, len(d.agents))
	copy(out, d.agents)
	return out
}

// Len returns the number of roster entries.
func (d *Directory) Len() int {
	return len(d.agents)
}

// Match returns the agents whose id or name matches the glob pattern,
// in file order.
func (d *Directory) Match(pattern string) ([]Agent, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid agent pattern '%s': %w", pattern, err)
	}

	var out []Agent
	for _, a := range d.agents {
		if g.Match(a.ID) || g.Match(a.Name) {
			out = append(out, a)
		}
	}
	return out, nil
}

// AnySerialized reports whether any of the given agent ids maps to a
// serialized backend. Unknown ids are ignored.
func (d *Directory) AnySerialized(ids []string) bool {
	for _, id := range ids {
		if i, ok := d.byID[id]; ok && d.agents[i].Serialized {
			return true
		}
	}
	return false
}

// DefaultPath returns the roster file location: $XDG_CONFIG_HOME/conclave/agents.yaml,
// falling back to ~/.config/conclave/agents.yaml.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "conclave", "agents.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".conclave", "agents.yaml")
	}
	return filepath.Join(home, ".config", "conclave", "agents.yaml")
}
