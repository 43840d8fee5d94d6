package models

import "time"

type PomodoroPhase string

const (
	PhaseFocus     PomodoroPhase = "focus"
	PhaseBreak     PomodoroPhase = "break"
	PhaseCompleted PomodoroPhase = "completed"
)

// PendingShuffle is a scheduled future shuffle. An empty TaskID means the
// coordinator re-evaluates when the timer fires instead of showing a task.
type PendingShuffle struct {
	At     time.Time `json:"at"`
	TaskID string    `json:"task_id,omitempty"`
}

// ActiveTask is the task currently being worked on.
type ActiveTask struct {
	TaskID          string        `json:"task_id"`
	Title           string        `json:"title"`
	StartedAt       time.Time     `json:"started_at"`
	ExpiresAt       time.Time     `json:"expires_at"`
	DurationMinutes int           `json:"duration_minutes"`
	Mode            TimerMode     `json:"mode"`
	Phase           PomodoroPhase `json:"phase,omitempty"`
	Cycle           int           `json:"cycle,omitempty"`
	TotalCycles     int           `json:"total_cycles,omitempty"`
	FocusMinutes    int           `json:"focus_minutes,omitempty"`
	BreakMinutes    int           `json:"break_minutes,omitempty"`
}

// Running reports whether the active task still blocks a new shuffle.
func (a ActiveTask) Running(now time.Time) bool {
	if a.Phase == PhaseCompleted {
		return false
	}
	return now.Before(a.ExpiresAt)
}

func (a ActiveTask) Remaining(now time.Time) time.Duration {
	if !now.Before(a.ExpiresAt) {
		return 0
	}
	return a.ExpiresAt.Sub(now)
}

// ShuffleState is the persisted coordinator state. Version is bumped on
// every successful save and used for optimistic concurrency.
type ShuffleState struct {
	Version    int64           `json:"version"`
	Pending    *PendingShuffle `json:"pending,omitempty"`
	DailyCount int             `json:"daily_count"`
	DailyDate  string          `json:"daily_date,omitempty"` // YYYY-MM-DD in the configured timezone
	Active     *ActiveTask     `json:"active,omitempty"`
}
