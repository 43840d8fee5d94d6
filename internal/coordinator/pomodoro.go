package coordinator

import (
	"time"

	"github.com/julianstephens/nextup/internal/models"
)

// TimerConfig is the timer a task runs with once overrides are applied.
type TimerConfig struct {
	Mode         models.TimerMode
	Minutes      int
	FocusMinutes int
	BreakMinutes int
	Cycles       int
}

// EffectiveTimer resolves the per-task override against the global defaults.
func EffectiveTimer(task models.Task, s models.Settings) TimerConfig {
	models.ApplyDefaultSettings(&s)
	cfg := TimerConfig{
		Mode:         s.DefaultTimerMode,
		Minutes:      s.DefaultTimerMinutes,
		FocusMinutes: s.PomodoroFocusMinutes,
		BreakMinutes: s.PomodoroBreakMinutes,
		Cycles:       s.PomodoroCycles,
	}

	if o := task.Timer; o != nil {
		if o.Mode != "" {
			cfg.Mode = o.Mode
		}
		if o.Minutes > 0 {
			if cfg.Mode == models.TimerModePomodoro {
				cfg.FocusMinutes = o.Minutes
			} else {
				cfg.Minutes = o.Minutes
			}
		}
		if o.Cycles > 0 {
			cfg.Cycles = o.Cycles
		}
	}
	if cfg.Mode != models.TimerModePomodoro {
		cfg.Mode = models.TimerModeCountdown
	}
	return cfg
}

// NewActiveTask starts the timer for a freshly selected task.
func NewActiveTask(task models.Task, cfg TimerConfig, now time.Time) models.ActiveTask {
	a := models.ActiveTask{
		TaskID:    task.ID,
		Title:     task.Title,
		StartedAt: now,
		Mode:      cfg.Mode,
	}
	if cfg.Mode == models.TimerModePomodoro {
		a.Phase = models.PhaseFocus
		a.Cycle = 1
		a.TotalCycles = cfg.Cycles
		a.FocusMinutes = cfg.FocusMinutes
		a.BreakMinutes = cfg.BreakMinutes
		a.DurationMinutes = cfg.FocusMinutes
	} else {
		a.DurationMinutes = cfg.Minutes
	}
	a.ExpiresAt = now.Add(time.Duration(a.DurationMinutes) * time.Minute)
	return a
}

// NextPhase advances a pomodoro timer by one phase starting at now.
//
// Focus is followed by a break when break minutes are positive, and the break
// by the next cycle's focus. The final focus ends in Completed without a
// trailing break. Completed is terminal.
func NextPhase(a models.ActiveTask, now time.Time) models.ActiveTask {
	if a.Mode != models.TimerModePomodoro || a.Phase == models.PhaseCompleted {
		return a
	}

	next := a
	next.StartedAt = now
	switch {
	case a.Cycle >= a.TotalCycles:
		next.Phase = models.PhaseCompleted
		next.DurationMinutes = 0
	case a.Phase == models.PhaseFocus && a.BreakMinutes > 0:
		next.Phase = models.PhaseBreak
		next.DurationMinutes = a.BreakMinutes
	default:
		next.Phase = models.PhaseFocus
		next.Cycle = a.Cycle + 1
		next.DurationMinutes = a.FocusMinutes
	}
	next.ExpiresAt = now.Add(time.Duration(next.DurationMinutes) * time.Minute)
	return next
}
