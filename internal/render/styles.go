package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/conclave-ai/conclave/internal/council"
)

var (
	// Colors - all meet WCAG AA contrast (4.5:1) on dark surfaces
	PrimaryColor = lipgloss.Color("#A78BFA") // Purple
	AccentColor  = lipgloss.Color("#10B981") // Green
	WarningColor = lipgloss.Color("#F59E0B") // Amber
	ErrorColor   = lipgloss.Color("#F87171") // Red
	MutedColor   = lipgloss.Color("#9CA3AF") // Gray
	TextColor    = lipgloss.Color("#F9FAFB") // Light text
	BorderColor  = lipgloss.Color("#6B7280") // Gray
	BlueColor    = lipgloss.Color("#60A5FA") // Blue
	PinkColor    = lipgloss.Color("#F472B6") // Pink

	// Convenience styles
	Primary = lipgloss.NewStyle().Foreground(PrimaryColor)
	Accent  = lipgloss.NewStyle().Foreground(AccentColor)
	Warning = lipgloss.NewStyle().Foreground(WarningColor)
	Error   = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted   = lipgloss.NewStyle().Foreground(MutedColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextColor)

	SynthesisBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(1, 2)

	badge = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextColor).
		Padding(0, 1)
)

// stageColors maps each launch stage to its badge background.
var stageColors = map[council.Stage]lipgloss.Color{
	council.StageResponding:   WarningColor,
	council.StageDiscussing:   BlueColor,
	council.StageReviewing:    PrimaryColor,
	council.StageSynthesizing: PinkColor,
	council.StageComplete:     AccentColor,
}

// StageBadge renders the stage name as a colored badge.
func StageBadge(stage council.Stage) string {
	color, ok := stageColors[stage]
	if !ok {
		color = MutedColor
	}
	return badge.Background(color).Render(strings.ToUpper(string(stage)))
}

// levelStyles maps launch log levels to their line styles.
var levelStyles = map[council.LogLevel]lipgloss.Style{
	council.LogInfo:  Muted,
	council.LogWarn:  Warning,
	council.LogError: Error,
}

// levelStyle returns the style for a log level, defaulting to muted.
func levelStyle(level council.LogLevel) lipgloss.Style {
	if s, ok := levelStyles[level]; ok {
		return s
	}
	return Muted
}
