package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = min(max(msg.Width-8, 10), 60)

	case TickMsg:
		m.now = time.Time(msg)
		m.ticks++
		expired := m.view.Active != nil && !m.now.Before(m.view.Active.ExpiresAt)
		if m.ticks%reloadEvery == 0 || expired {
			return m, tea.Batch(m.load(), m.tick())
		}
		return m, m.tick()

	case viewMsg:
		m.loaded = true
		m.err = msg.err
		if msg.err == nil {
			m.view = msg.view
		}

	case actionMsg:
		m.err = msg.err
		m.status = msg.status
		return m, m.load()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.NextPhase):
			return m, m.advance()
		case key.Matches(msg, m.keys.Shuffle):
			return m, m.shuffle()
		case key.Matches(msg, m.keys.Refresh):
			return m, m.load()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}

	return m, nil
}
