package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/nextup/internal/coordinator"
	"github.com/julianstephens/nextup/internal/models"
)

// reloadEvery is how many ticks pass between reads of the persisted state,
// so changes made by the daemon show up.
const reloadEvery = 15

// Source is what the countdown reads from and acts on.
type Source interface {
	RestoreView(ctx context.Context) (coordinator.View, error)
	AdvancePhase(ctx context.Context) (*models.ActiveTask, error)
	ShuffleNow(ctx context.Context) (*models.ActiveTask, error)
}

// Model is the countdown view for the active task.
type Model struct {
	src      Source
	clock    func() time.Time
	keys     KeyMap
	help     help.Model
	progress progress.Model

	view     coordinator.View
	loaded   bool
	now      time.Time
	ticks    int
	status   string
	err      error
	width    int
	height   int
	quitting bool
}

// Option configures a Model.
type Option func(*Model)

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(m *Model) { m.clock = clock }
}

func New(src Source, opts ...Option) Model {
	m := Model{
		src:      src,
		clock:    time.Now,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.now = m.clock()
	return m
}

// TickMsg advances the countdown.
type TickMsg time.Time

type viewMsg struct {
	view coordinator.View
	err  error
}

type actionMsg struct {
	status string
	err    error
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return TickMsg(m.clock())
	})
}

func (m Model) load() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		v, err := src.RestoreView(context.Background())
		return viewMsg{view: v, err: err}
	}
}

func (m Model) advance() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		next, err := src.AdvancePhase(context.Background())
		switch {
		case err != nil:
			return actionMsg{err: err}
		case next == nil:
			return actionMsg{status: "No pomodoro is running."}
		default:
			return actionMsg{status: "Moved to " + string(next.Phase) + "."}
		}
	}
}

func (m Model) shuffle() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		picked, err := src.ShuffleNow(context.Background())
		switch {
		case err != nil:
			return actionMsg{err: err}
		case picked == nil:
			return actionMsg{status: "No eligible task right now."}
		default:
			return actionMsg{status: "Shuffled: " + picked.Title}
		}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.tick())
}

// fraction reports how much of the active timer has elapsed, 0..1.
func (m Model) fraction() float64 {
	a := m.view.Active
	if a == nil {
		return 0
	}
	total := a.ExpiresAt.Sub(a.StartedAt)
	if total <= 0 {
		return 1
	}
	elapsed := m.now.Sub(a.StartedAt)
	switch {
	case elapsed <= 0:
		return 0
	case elapsed >= total:
		return 1
	}
	return float64(elapsed) / float64(total)
}
