package display

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/veldtlabs/crewdash/internal/roster"
	"github.com/veldtlabs/crewdash/internal/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))

	phaseStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			MarginRight(1)

	budgetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

var phaseColors = map[session.Phase]lipgloss.Color{
	session.PhaseIdle:      lipgloss.Color("241"),
	session.PhaseFetching:  lipgloss.Color("39"),
	session.PhaseAnalyzing: lipgloss.Color("214"),
	session.PhaseComplete:  lipgloss.Color("42"),
}

var statusGlyphs = map[roster.Status]string{
	roster.StatusWorking:  "◌",
	roster.StatusComplete: "✓",
	roster.StatusError:    "✗",
}

var statusColors = map[roster.Status]lipgloss.Color{
	roster.StatusWorking:  lipgloss.Color("214"),
	roster.StatusComplete: lipgloss.Color("42"),
	roster.StatusError:    lipgloss.Color("196"),
}

func renderPhase(p session.Phase) string {
	color, ok := phaseColors[p]
	if !ok {
		color = lipgloss.Color("241")
	}
	return phaseStyle.Background(color).Render(string(p))
}

func renderStatus(s roster.Status) string {
	glyph, ok := statusGlyphs[s]
	if !ok {
		glyph = "·"
	}
	return lipgloss.NewStyle().Foreground(statusColors[s]).Render(glyph)
}
