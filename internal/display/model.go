// Package display projects session snapshots into a terminal dashboard.
// It is read-only: all state arrives as immutable snapshots from the
// session controller's update channel.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/veldtlabs/crewdash/internal/roster"
	"github.com/veldtlabs/crewdash/internal/session"
)

// budgetAnimDuration is how long the spent counter takes to reach a new
// target value.
const budgetAnimDuration = 800 * time.Millisecond

type snapshotMsg session.Session

type tickMsg time.Time

// Model is the bubbletea model for the dashboard.
type Model struct {
	updates  <-chan session.Session
	snapshot session.Session
	spin     spinner.Model

	// spentChangedAt anchors the count-up animation of the spent amount.
	spentChangedAt time.Time
	prevSpent      float64

	width int
	quit  bool
}

// NewModel creates a dashboard fed by the controller's update channel.
func NewModel(updates <-chan session.Session) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	return Model{
		updates:  updates,
		snapshot: session.Session{Phase: session.PhaseIdle},
		spin:     sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForUpdate(), tick())
}

func (m Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.updates
		if !ok {
			return tea.Quit()
		}
		return snapshotMsg(snap)
	}
}

func tick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case snapshotMsg:
		next := session.Session(msg)
		if next.Spent() != m.snapshot.Spent() {
			m.prevSpent = m.snapshot.Spent()
			m.spentChangedAt = time.Now()
		}
		m.snapshot = next
		return m, m.waitForUpdate()

	case tickMsg:
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quit {
		return ""
	}

	var b strings.Builder
	snap := m.snapshot

	header := titleStyle.Render("crewdash") + "  " + renderPhase(snap.Phase)
	if snap.Phase == session.PhaseFetching || snap.Phase == session.PhaseAnalyzing {
		header += " " + m.spin.View()
	}
	b.WriteString(header + "\n\n")

	if snap.SubjectMeta != nil {
		meta := snap.SubjectMeta
		b.WriteString(fmt.Sprintf("%s  %s\n", meta.Name,
			dimStyle.Render(fmt.Sprintf("%d units · %s", meta.UnitCount, strings.Join(meta.Tags, ", ")))))
	} else if snap.SubjectRef != "" {
		b.WriteString(snap.SubjectRef + "\n")
	}

	b.WriteString(m.renderBudget(snap) + "\n\n")
	b.WriteString(renderAgents(snap.Agents) + "\n")

	if snap.Refund != nil {
		b.WriteString(budgetStyle.Render(
			fmt.Sprintf("refund issued: %.2f (receipt %s)", snap.Refund.Amount, snap.Refund.ReceiptID)) + "\n")
	}
	if snap.ShareID != "" {
		b.WriteString(dimStyle.Render("shared as "+snap.ShareID) + "\n")
	}
	if snap.ErrMessage != "" {
		b.WriteString(errorStyle.Render(snap.ErrMessage) + "\n")
	}

	b.WriteString(dimStyle.Render("\nq to quit"))
	return b.String()
}

// renderBudget shows the spent amount counting up toward its target.
func (m Model) renderBudget(snap session.Session) string {
	target := snap.Spent()
	shown := target
	if !m.spentChangedAt.IsZero() {
		delta := target - m.prevSpent
		shown = m.prevSpent + CountUp(delta, time.Since(m.spentChangedAt), budgetAnimDuration)
	}
	return budgetStyle.Render(fmt.Sprintf("spent %.2f / %.2f  (remaining %.2f)",
		shown, snap.InitialBudget, snap.RemainingBudget))
}

func renderAgents(agents []roster.AgentTask) string {
	if len(agents) == 0 {
		return dimStyle.Render("no workers reporting yet")
	}

	cards := make([]string, 0, len(agents))
	for _, a := range agents {
		var lines []string
		lines = append(lines, fmt.Sprintf("%s %s", renderStatus(a.Status), a.Name))
		if a.PaymentEstimate {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("~%.2f (%.0f%%)", a.Payment, a.AllocationPct)))
		} else {
			lines = append(lines, fmt.Sprintf("%.2f", a.Payment))
		}
		if a.ReceiptID != "" {
			lines = append(lines, dimStyle.Render(a.ReceiptID))
		}
		cards = append(cards, cardStyle.Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}
