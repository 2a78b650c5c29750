package council

import "time"

// Stage is the phase a launch is currently in. Stages only move forward along
// the legal path, or jump to StageComplete via abort.
type Stage string

const (
	StageResponding   Stage = "responding"
	StageDiscussing   Stage = "discussing"
	StageReviewing    Stage = "reviewing"
	StageSynthesizing Stage = "synthesizing"
	StageComplete     Stage = "complete"
)

// Terminal reports whether the stage permits no further transitions.
func (s Stage) Terminal() bool {
	return s == StageComplete
}

// legalNext maps each stage to the stages reachable from it. Abort is handled
// separately: StageComplete is reachable from every non-terminal stage.
var legalNext = map[Stage][]Stage{
	StageResponding:   {StageDiscussing, StageReviewing},
	StageDiscussing:   {StageReviewing},
	StageReviewing:    {StageSynthesizing},
	StageSynthesizing: {StageComplete},
	StageComplete:     {},
}

// CanAdvanceTo reports whether moving from s to next is a legal forward
// transition. Aborting to StageComplete from any non-terminal stage is always
// legal.
func (s Stage) CanAdvanceTo(next Stage) bool {
	if next == StageComplete && !s.Terminal() {
		return true
	}
	for _, n := range legalNext[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Role tags a worker session with the pipeline phase it serves. A session
// carries exactly one role and is never reused across stages.
type Role string

const (
	RoleMember    Role = "member"
	RoleDiscusser Role = "discusser"
	RoleReviewer  Role = "reviewer"
	RoleChairman  Role = "chairman"
)

// Launch is one deliberation run of a council against a prompt. It owns the
// mutable stage machine; only the stage controller writes to it after
// creation.
type Launch struct {
	ID            string    `json:"id"`
	CouncilID     string    `json:"council_id"`
	ProjectID     string    `json:"project_id"`
	Prompt        string    `json:"prompt"`
	Stage         Stage     `json:"stage"`
	CurrentRound  int       `json:"current_round"`
	TotalRounds   int       `json:"total_rounds"`
	Synthesis     string    `json:"synthesis,omitempty"`
	ChatSessionID string    `json:"chat_session_id,omitempty"`
	Created       time.Time `json:"created"`
	Updated       time.Time `json:"updated"`
}

// NewLaunch creates a launch in the responding stage. TotalRounds is fixed
// here and never changes afterwards.
func NewLaunch(c *Council, projectID, prompt string) *Launch {
	now := time.Now()
	return &Launch{
		ID:           NewID(),
		CouncilID:    c.ID,
		ProjectID:    projectID,
		Prompt:       prompt,
		Stage:        StageResponding,
		CurrentRound: 0,
		TotalRounds:  c.DiscussionRounds,
		Created:      now,
		Updated:      now,
	}
}

// Session is a worker session record. The runtime owns the process behind it;
// the core tracks only identity, role, and completion.
type Session struct {
	ID       string    `json:"id"`
	LaunchID string    `json:"launch_id"`
	AgentID  string    `json:"agent_id"`
	Role     Role      `json:"role"`
	Created  time.Time `json:"created"`
}

// NewSession creates a session record for a launch with a generated ID.
func NewSession(launchID, agentID string, role Role) *Session {
	return &Session{
		ID:       NewID(),
		LaunchID: launchID,
		AgentID:  agentID,
		Role:     role,
		Created:  time.Now(),
	}
}

// DiscussionMessage is one agent's contribution to one discussion round.
// Append-only; a placeholder message is recorded when an agent's session
// failed, so the transcript never silently skips an agent.
type DiscussionMessage struct {
	ID              string    `json:"id"`
	LaunchID        string    `json:"launch_id"`
	AgentID         string    `json:"agent_id"`
	AgentName       string    `json:"agent_name"`
	Round           int       `json:"round"`
	Content         string    `json:"content"`
	SessionID       string    `json:"session_id,omitempty"`
	DeliveryReceipt string    `json:"delivery_receipt,omitempty"`
	Created         time.Time `json:"created"`
}

// NewDiscussionMessage creates a discussion message with a generated ID.
func NewDiscussionMessage(launchID, agentID, agentName string, round int, content, sessionID string) *DiscussionMessage {
	return &DiscussionMessage{
		ID:        NewID(),
		LaunchID:  launchID,
		AgentID:   agentID,
		AgentName: agentName,
		Round:     round,
		Content:   content,
		SessionID: sessionID,
		Created:   time.Now(),
	}
}

// LogLevel classifies launch log entries.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is an append-only observability record for a launch. No invariant
// depends on log entries.
type LogEntry struct {
	LaunchID  string    `json:"launch_id"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLogEntry creates a timestamped log entry.
func NewLogEntry(launchID string, level LogLevel, message, detail string) *LogEntry {
	return &LogEntry{
		LaunchID:  launchID,
		Level:     level,
		Message:   message,
		Detail:    detail,
		Timestamp: time.Now(),
	}
}
