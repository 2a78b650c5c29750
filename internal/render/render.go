// Package render formats council state for terminal output: stage badges,
// launch summaries, discussion transcripts, and log lines, styled with
// lipgloss and sized to the terminal.
package render

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/roster"
)

// defaultWidth is used when stdout is not a terminal.
const defaultWidth = 80

// synthesisMaxWidth caps the synthesis box so long lines stay readable on
// wide terminals.
const synthesisMaxWidth = 100

// Renderer formats council entities at a fixed terminal width.
type Renderer struct {
	width int
}

// New creates a Renderer sized to the current terminal, falling back to 80
// columns when stdout is not a terminal.
func New() *Renderer {
	width := defaultWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	return &Renderer{width: width}
}

// NewWithWidth creates a Renderer with a fixed width.
func NewWithWidth(width int) *Renderer {
	if width <= 0 {
		width = defaultWidth
	}
	return &Renderer{width: width}
}

// Width returns the render width in columns.
func (r *Renderer) Width() int { return r.width }

// Truncate shortens s to maxWidth visual columns, ending in "..." when cut.
// ANSI escape sequences do not count toward the width.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "...")
}

// LaunchSummary renders the header for a launch: prompt, stage badge, round
// progress, and council context.
func (r *Renderer) LaunchSummary(launch *council.Launch, councilName string) string {
	var b strings.Builder
	b.WriteString(Title.Render(Truncate(launch.Prompt, r.width)))
	b.WriteString("\n\n")
	b.WriteString(StageBadge(launch.Stage))
	if launch.TotalRounds > 0 && launch.CurrentRound > 0 {
		b.WriteString(Muted.Render(fmt.Sprintf("  round %d of %d", launch.CurrentRound, launch.TotalRounds)))
	}
	b.WriteString("\n")
	b.WriteString(Muted.Render(fmt.Sprintf("council %s, launched %s",
		councilName, launch.Created.Format(time.RFC822))))
	b.WriteString("\n")
	return b.String()
}

// LaunchLine renders one launch for list output.
func (r *Renderer) LaunchLine(launch *council.Launch) string {
	return fmt.Sprintf("%s %s\n  %s",
		StageBadge(launch.Stage),
		Truncate(launch.Prompt, r.width-14),
		Muted.Render(fmt.Sprintf("%s  %s", launch.ID, launch.Created.Format(time.RFC822))))
}

// SessionTable renders one line per worker session: role, agent, liveness.
// names maps agent ids to display names; running maps session ids to
// liveness.
func (r *Renderer) SessionTable(sessions []*council.Session, names map[string]string, running map[string]bool) string {
	if len(sessions) == 0 {
		return Muted.Render("no sessions yet") + "\n"
	}
	var b strings.Builder
	for _, sess := range sessions {
		name := names[sess.AgentID]
		if name == "" {
			name = sess.AgentID
		}
		state := Muted.Render("finished")
		if running[sess.ID] {
			state = Accent.Render("running")
		}
		b.WriteString(fmt.Sprintf("%-10s %-24s %s\n", sess.Role, Truncate(name, 24), state))
	}
	return b.String()
}

// Transcript renders discussion messages with per-round headers.
func (r *Renderer) Transcript(msgs []*council.DiscussionMessage) string {
	if len(msgs) == 0 {
		return Muted.Render("no discussion messages") + "\n"
	}
	var b strings.Builder
	round := 0
	for _, msg := range msgs {
		if msg.Round != round {
			round = msg.Round
			b.WriteString(Header.Render(fmt.Sprintf("Round %d", round)))
			b.WriteString("\n")
		}
		b.WriteString(Primary.Render(msg.AgentName))
		b.WriteString(Muted.Render("  " + msg.Created.Format("15:04:05")))
		b.WriteString("\n")
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Synthesis renders the final synthesis inside a bordered box.
func (r *Renderer) Synthesis(text string) string {
	if text == "" {
		return Muted.Render("no synthesis yet") + "\n"
	}
	return SynthesisBox.Width(min(r.width, synthesisMaxWidth)).Render(text) + "\n"
}

// LogLines renders launch log entries, one styled line each.
func (r *Renderer) LogLines(entries []*council.LogEntry) string {
	if len(entries) == 0 {
		return Muted.Render("no log entries") + "\n"
	}
	var b strings.Builder
	for _, entry := range entries {
		line := fmt.Sprintf("%s %-5s %s",
			entry.Timestamp.Format("15:04:05"), strings.ToUpper(string(entry.Level)), entry.Message)
		if entry.Detail != "" {
			line += ": " + entry.Detail
		}
		b.WriteString(levelStyle(entry.Level).Render(Truncate(line, r.width)))
		b.WriteString("\n")
	}
	return b.String()
}

// CouncilLine renders one council for list output.
func (r *Renderer) CouncilLine(c *council.Council) string {
	detail := fmt.Sprintf("%d agents", len(c.AgentIDs))
	switch c.DiscussionRounds {
	case 0:
	case 1:
		detail += ", 1 discussion round"
	default:
		detail += fmt.Sprintf(", %d discussion rounds", c.DiscussionRounds)
	}
	if c.ChairmanAgentID != "" {
		detail += ", chairman " + c.ChairmanAgentID
	}
	return fmt.Sprintf("%s  %s\n  %s",
		Header.Render(c.Name), Muted.Render(c.ID), Muted.Render(detail))
}

// ProjectLine renders one project for list output.
func (r *Renderer) ProjectLine(p *council.Project) string {
	return fmt.Sprintf("%s  %s\n  %s",
		Header.Render(p.Name), Muted.Render(p.ID), Muted.Render(p.WorkingDir))
}

// AgentLine renders one roster agent for list output.
func (r *Renderer) AgentLine(a roster.Agent) string {
	detail := strings.Join(a.Command, " ")
	if a.Model != "" {
		detail += "  model=" + a.Model
	}
	if a.Serialized {
		detail += "  serialized"
	}
	return fmt.Sprintf("%s  %s\n  %s",
		Header.Render(a.Name), Muted.Render(a.ID), Muted.Render(Truncate(detail, r.width-2)))
}
