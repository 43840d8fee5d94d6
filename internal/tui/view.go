package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/nextup/internal/models"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch {
	case !m.loaded && m.err == nil:
		content = mutedStyle.Render("Loading...")
	case m.view.Active == nil:
		content = m.viewIdle()
	default:
		content = m.viewActive(*m.view.Active)
	}

	parts := []string{titleStyle.Render(fmt.Sprintf("Now: %02d:%02d", m.now.Hour(), m.now.Minute())), content}
	if m.status != "" {
		parts = append(parts, "", mutedStyle.Render(m.status))
	}
	if m.err != nil {
		parts = append(parts, "", dangerStyle.Render("Error: "+m.err.Error()))
	}
	parts = append(parts, "", m.help.View(m.keys))

	ui := lipgloss.JoinVertical(lipgloss.Center, parts...)
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, ui)
	}
	return ui
}

func (m Model) viewIdle() string {
	lines := []string{mutedStyle.Render("No active task.")}
	if p := m.view.Pending; p != nil {
		lines = append(lines, mutedStyle.Render("Next shuffle at "+p.At.In(m.now.Location()).Format("15:04")))
	}
	lines = append(lines, mutedStyle.Render(fmt.Sprintf("Shuffles today: %d", m.view.DailyCount)))
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func (m Model) viewActive(a models.ActiveTask) string {
	remaining := a.Remaining(m.now)
	lines := []string{taskNameStyle.Render(a.Title)}

	if a.Mode == models.TimerModePomodoro {
		lines = append(lines, phaseLine(a))
	}
	if a.Phase == models.PhaseCompleted {
		lines = append(lines, remainingStyle.Render("Done"))
	} else {
		lines = append(lines,
			remainingStyle.Render(FormatRemaining(remaining)),
			m.progress.ViewAs(m.fraction()),
		)
	}
	lines = append(lines, mutedStyle.Render(fmt.Sprintf("Shuffles today: %d", m.view.DailyCount)))
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func phaseLine(a models.ActiveTask) string {
	label := fmt.Sprintf("%s %d/%d", a.Phase, a.Cycle, a.TotalCycles)
	switch a.Phase {
	case models.PhaseFocus:
		return focusStyle.Render(label)
	case models.PhaseBreak:
		return breakStyle.Render(label)
	default:
		return mutedStyle.Render(label)
	}
}

// FormatRemaining renders d as MM:SS, or H:MM:SS past an hour.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	mins := int(d%time.Hour) / int(time.Minute)
	secs := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mins, secs)
	}
	return fmt.Sprintf("%02d:%02d", mins, secs)
}
