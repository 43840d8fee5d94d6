package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/julianstephens/nextup/internal/constants"
	"github.com/julianstephens/nextup/internal/lifecycle"
	"github.com/julianstephens/nextup/internal/logger"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/period"
	"github.com/julianstephens/nextup/internal/telemetry"
	"github.com/julianstephens/nextup/internal/utils"

	apperrors "github.com/julianstephens/nextup/internal/errors"
)

const maxStateAttempts = 3

// evaluate decides what the shuffle timer should wait for next. Must be
// called with c.mu held.
func (c *Coordinator) evaluate(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanShuffleEvaluate)
	defer span.End()

	s := c.settings
	if !autoShuffleActive(s) {
		c.disarm(shuffleTimer)
		telemetry.SetDecision(span, "disabled")
		return c.clearPending(ctx)
	}
	if c.paused {
		telemetry.SetDecision(span, "paused")
		return nil
	}

	now := c.now()
	state, err := c.store.GetState(ctx)
	if err != nil {
		telemetry.RecordError(span, err, "storage")
		return fmt.Errorf("failed to load shuffle state: %w", err)
	}
	rollover(&state, now)
	span.SetAttributes(attribute.Int(telemetry.KeyDailyCount, state.DailyCount))

	if limitReached(state, s) {
		at := nextDayStart(now, s)
		telemetry.SetDecision(span, "daily_limit")
		logger.Info("Daily shuffle limit reached", "count", state.DailyCount, "max", s.MaxDailyShuffles, "wake_at", at)
		return c.schedule(ctx, at, "")
	}

	// Wakes without a task are always re-decided; only task shuffles resume.
	if p := state.Pending; p != nil && p.TaskID != "" && c.pendingValid(ctx, *p, now) {
		telemetry.SetDecision(span, "resume_pending")
		logger.Debug("Resuming pending shuffle", "task_id", p.TaskID, "at", p.At)
		c.arm(shuffleTimer, p.At, p.TaskID, c.onShuffleFire)
		return nil
	}

	target := pushPastQuietHours(now.Add(c.gap(s)), s)
	tasks, err := c.store.GetTasks(ctx)
	if err != nil {
		telemetry.RecordError(span, err, "storage")
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	candidate := c.picker.PickNext(tasks, s, target, c.deterministic)
	if candidate == nil {
		at := now.Add(constants.NoCandidateRetryDelay)
		telemetry.SetDecision(span, "no_candidate")
		logger.Debug("No candidate for next shuffle, retrying later", "retry_at", at)
		return c.schedule(ctx, at, "")
	}

	telemetry.SetDecision(span, "armed")
	span.SetAttributes(attribute.String(telemetry.KeyTaskID, candidate.ID))
	logger.Info("Next shuffle scheduled", "task_id", candidate.ID, "at", target)
	return c.schedule(ctx, target, candidate.ID)
}

// onShuffleFire handles the shuffle timer. Runs with c.mu held.
func (c *Coordinator) onShuffleFire(taskID string) {
	ctx, span := telemetry.StartTaskSpan(c.runCtx, telemetry.SpanShuffleFire, taskID)
	defer span.End()

	if err := c.handleShuffleFire(ctx, taskID); err != nil {
		telemetry.RecordError(span, err, "shuffle")
		logger.Error("Shuffle timer failed", "task_id", taskID, "error", err)
		c.armRetry()
	}
}

func (c *Coordinator) handleShuffleFire(ctx context.Context, taskID string) error {
	s := c.settings
	if !autoShuffleActive(s) {
		return c.clearPending(ctx)
	}
	if c.paused {
		return nil
	}

	// A wake without a task re-rolls the gap.
	if taskID == "" {
		if err := c.clearPending(ctx); err != nil {
			return err
		}
		return c.evaluate(ctx)
	}

	now := c.now()
	state, err := c.store.GetState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load shuffle state: %w", err)
	}
	rollover(&state, now)

	if limitReached(state, s) {
		return c.evaluate(ctx)
	}
	if inQuietHours(now, s) {
		qe, _ := quietHours(s)
		at := utils.NextOccurrence(now, qe)
		logger.Debug("Shuffle fell into quiet hours, deferring", "task_id", taskID, "until", at)
		return c.schedule(ctx, at, taskID)
	}
	if state.Active != nil && state.Active.Running(now) {
		at := now.Add(c.gap(s))
		logger.Info("Task still active, deferring shuffle", "active_task_id", state.Active.TaskID, "until", at)
		return c.schedule(ctx, at, taskID)
	}

	task, err := c.resolve(ctx, taskID, now)
	if err != nil {
		return err
	}
	if task == nil {
		at := now.Add(constants.NoCandidateRetryDelay)
		logger.Debug("No candidate at shuffle time, retrying later", "retry_at", at)
		return c.schedule(ctx, at, "")
	}

	if _, err := c.activate(ctx, *task, now, true); err != nil {
		return err
	}
	return c.evaluate(ctx)
}

// resolve re-validates the pending task and falls back to a fresh pick.
func (c *Coordinator) resolve(ctx context.Context, taskID string, now time.Time) (*models.Task, error) {
	task, err := c.store.GetTask(ctx, taskID)
	switch {
	case err == nil:
		if c.picker.IsCandidate(task, c.settings, now) {
			return &task, nil
		}
		logger.Debug("Pending task no longer eligible, re-picking", "task_id", taskID)
	case errors.Is(err, apperrors.ErrTaskNotFound):
		logger.Debug("Pending task disappeared, re-picking", "task_id", taskID)
	default:
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	tasks, err := c.store.GetTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	return c.picker.PickNext(tasks, c.settings, now, c.deterministic), nil
}

// activate makes task the active task. Automatic activations clear the
// pending shuffle and count towards the daily limit.
func (c *Coordinator) activate(ctx context.Context, task models.Task, now time.Time, auto bool) (models.ActiveTask, error) {
	active := NewActiveTask(task, EffectiveTimer(task, c.settings), now)

	_, err := c.updateState(ctx, func(st *models.ShuffleState) {
		rollover(st, now)
		st.Active = &active
		if auto {
			st.Pending = nil
			st.DailyCount++
		}
	})
	if err != nil {
		return models.ActiveTask{}, err
	}
	c.active = &active

	if consumed, changed := lifecycle.ConsumeCutInLine(task); changed {
		if err := c.store.UpdateTask(ctx, consumed); err != nil {
			logger.Warn("Failed to clear cut-in-line flag", "task_id", task.ID, "error", err)
		}
	}

	if err := c.notifier.NotifyTask(ctx, task, active.DurationMinutes, c.settings, 0); err != nil {
		logger.Warn("Failed to send task notification", "task_id", task.ID, "error", err)
	}

	c.disarm(phaseTimer)
	if active.Mode == models.TimerModePomodoro && c.started && !c.paused {
		c.arm(phaseTimer, active.ExpiresAt, active.TaskID, c.onPhaseFire)
	}

	logger.Info("Task activated", "task_id", task.ID, "title", task.Title, "minutes", active.DurationMinutes, "mode", active.Mode, "auto", auto)
	c.publish(active)
	return active, nil
}

func (c *Coordinator) shuffleManual(ctx context.Context) (*models.ActiveTask, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanShuffleManual)
	defer span.End()

	if err := c.loadSettings(ctx); err != nil {
		return nil, err
	}
	now := c.now()
	tasks, err := c.store.GetTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	state, err := c.store.GetState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load shuffle state: %w", err)
	}

	picked := c.picker.PickManual(tasks, c.settings, now, c.deterministic)
	if picked != nil && state.Active != nil && picked.ID == state.Active.TaskID {
		others := make([]models.Task, 0, len(tasks))
		for _, t := range tasks {
			if t.ID != picked.ID {
				others = append(others, t)
			}
		}
		if alt := c.picker.PickManual(others, c.settings, now, c.deterministic); alt != nil {
			picked = alt
		}
	}
	if picked == nil {
		telemetry.SetDecision(span, "no_candidate")
		return nil, nil
	}

	span.SetAttributes(attribute.String(telemetry.KeyTaskID, picked.ID))
	active, err := c.activate(ctx, *picked, now, false)
	if err != nil {
		telemetry.RecordError(span, err, "storage")
		return nil, err
	}
	return &active, nil
}

// onPhaseFire advances the pomodoro when the current phase expires.
func (c *Coordinator) onPhaseFire(taskID string) {
	if _, err := c.advancePhase(c.runCtx); err != nil {
		logger.Error("Pomodoro phase transition failed", "task_id", taskID, "error", err)
	}
}

func (c *Coordinator) advancePhase(ctx context.Context) (*models.ActiveTask, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanPomodoroAdvance)
	defer span.End()

	now := c.now()
	var next models.ActiveTask
	advanced := false
	_, err := c.updateState(ctx, func(st *models.ShuffleState) {
		advanced = false
		if st.Active == nil || st.Active.Mode != models.TimerModePomodoro || st.Active.Phase == models.PhaseCompleted {
			return
		}
		next = NextPhase(*st.Active, now)
		st.Active = &next
		advanced = true
	})
	if err != nil {
		telemetry.RecordError(span, err, "storage")
		return nil, err
	}
	if !advanced {
		return nil, nil
	}

	c.active = &next
	span.SetAttributes(attribute.String(telemetry.KeyPhase, string(next.Phase)))
	c.disarm(phaseTimer)
	if next.Phase != models.PhaseCompleted && !c.paused && c.started {
		c.arm(phaseTimer, next.ExpiresAt, next.TaskID, c.onPhaseFire)
	}

	title, msg := phaseMessage(next)
	if err := c.notifier.ShowToast(ctx, title, msg, c.settings); err != nil {
		logger.Warn("Failed to show pomodoro toast", "error", err)
	}
	logger.Info("Pomodoro phase changed", "task_id", next.TaskID, "phase", next.Phase, "cycle", next.Cycle, "total", next.TotalCycles)
	c.publish(next)
	return &next, nil
}

func phaseMessage(a models.ActiveTask) (string, string) {
	switch a.Phase {
	case models.PhaseBreak:
		return "Break time", fmt.Sprintf("Take %d minutes. Cycle %d of %d done.", a.BreakMinutes, a.Cycle, a.TotalCycles)
	case models.PhaseFocus:
		return "Focus", fmt.Sprintf("%s: cycle %d of %d, %d minutes.", a.Title, a.Cycle, a.TotalCycles, a.FocusMinutes)
	default:
		return "Pomodoro complete", fmt.Sprintf("%s: all %d cycles finished.", a.Title, a.TotalCycles)
	}
}

// restorePhaseTimer re-arms a pomodoro that was running before a restart.
func (c *Coordinator) restorePhaseTimer(ctx context.Context) error {
	state, err := c.store.GetState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load shuffle state: %w", err)
	}
	c.active = state.Active
	a := state.Active
	if a == nil || a.Mode != models.TimerModePomodoro || a.Phase == models.PhaseCompleted {
		return nil
	}
	c.arm(phaseTimer, a.ExpiresAt, a.TaskID, c.onPhaseFire)
	return nil
}

// schedule persists a pending shuffle and arms the timer for it.
func (c *Coordinator) schedule(ctx context.Context, at time.Time, taskID string) error {
	now := c.now()
	_, err := c.updateState(ctx, func(st *models.ShuffleState) {
		rollover(st, now)
		st.Pending = &models.PendingShuffle{At: at, TaskID: taskID}
	})
	if err != nil {
		return err
	}
	c.arm(shuffleTimer, at, taskID, c.onShuffleFire)
	return nil
}

func (c *Coordinator) clearPending(ctx context.Context) error {
	state, err := c.store.GetState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load shuffle state: %w", err)
	}
	if state.Pending == nil {
		return nil
	}
	_, err = c.updateState(ctx, func(st *models.ShuffleState) { st.Pending = nil })
	return err
}

// armRetry arms a cooldown wake after a failed evaluation so the
// coordinator never ends up without a timer.
func (c *Coordinator) armRetry() {
	if c.closed || c.paused || !c.started {
		return
	}
	c.arm(shuffleTimer, c.now().Add(constants.NoCandidateRetryDelay), "", c.onShuffleFire)
}

// updateState applies mutate to freshly loaded state and saves it, retrying
// when another writer got there first.
func (c *Coordinator) updateState(ctx context.Context, mutate func(*models.ShuffleState)) (models.ShuffleState, error) {
	for attempt := 1; attempt <= maxStateAttempts; attempt++ {
		st, err := c.store.GetState(ctx)
		if err != nil {
			return models.ShuffleState{}, fmt.Errorf("failed to load shuffle state: %w", err)
		}
		mutate(&st)
		saved, err := c.store.SaveState(ctx, st)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, apperrors.ErrStateConflict) {
			return models.ShuffleState{}, fmt.Errorf("failed to save shuffle state: %w", err)
		}
		logger.Debug("Shuffle state changed underneath us, retrying", "attempt", attempt)
	}
	return models.ShuffleState{}, fmt.Errorf("failed to save shuffle state: %w", apperrors.ErrStateConflict)
}

func (c *Coordinator) pendingValid(ctx context.Context, p models.PendingShuffle, now time.Time) bool {
	task, err := c.store.GetTask(ctx, p.TaskID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrTaskNotFound) {
			logger.Warn("Failed to load pending task", "task_id", p.TaskID, "error", err)
		}
		return false
	}
	at := p.At
	if at.Before(now) {
		at = now
	}
	return c.picker.IsCandidate(task, c.settings, at.In(c.loc))
}

func autoShuffleActive(s models.Settings) bool {
	return s.Enabled && s.AutoShuffleEnabled && s.NotificationsEnabled
}

// rollover resets the daily counter when the local calendar day changed.
func rollover(st *models.ShuffleState, now time.Time) {
	today := utils.DayKey(now)
	if st.DailyDate != today {
		st.DailyDate = today
		st.DailyCount = 0
	}
}

func limitReached(st models.ShuffleState, s models.Settings) bool {
	return s.MaxDailyShuffles > 0 && st.DailyCount >= s.MaxDailyShuffles
}

// quietHours returns the quiet window end and whether quiet hours are
// enabled. Equal or unparseable boundaries disable them.
func quietHours(s models.Settings) (end time.Duration, ok bool) {
	qs, err := utils.ParseTimeOfDay(s.QuietHoursStart)
	if err != nil {
		return 0, false
	}
	qe, err := utils.ParseTimeOfDay(s.QuietHoursEnd)
	if err != nil || qs == qe {
		return 0, false
	}
	return qe, true
}

func inQuietHours(t time.Time, s models.Settings) bool {
	qe, ok := quietHours(s)
	if !ok {
		return false
	}
	qs := utils.MustTimeOfDay(s.QuietHoursStart, 0)
	return period.IsWithinWindow(utils.TimeOfDay(t), qs, qe)
}

// pushPastQuietHours moves t to the end of quiet hours when it falls inside.
func pushPastQuietHours(t time.Time, s models.Settings) time.Time {
	if !inQuietHours(t, s) {
		return t
	}
	qe, _ := quietHours(s)
	return utils.NextOccurrence(t, qe)
}

// nextDayStart is tomorrow at quiet-hours end, or at work start when quiet
// hours are disabled.
func nextDayStart(now time.Time, s models.Settings) time.Time {
	tomorrow := now.AddDate(0, 0, 1)
	if qe, ok := quietHours(s); ok {
		return utils.AtTimeOfDay(tomorrow, qe)
	}
	ws, _ := period.WorkHours(s)
	return utils.AtTimeOfDay(tomorrow, ws)
}
