package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/nextup/internal/lifecycle"
	"github.com/julianstephens/nextup/internal/logger"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/validation"

	apperrors "github.com/julianstephens/nextup/internal/errors"
)

const taskColumns = `id, title, description, importance, size_points, deadline,
       repeat_kind, repeat_interval_days, weekdays, last_done_at, status,
       snoozed_until, completed_at, next_eligible_at, paused, auto_shuffle_allowed,
       period_kind, period_definition_id, period_ad_hoc, period_custom_start, period_custom_end,
       cut_in_line, timer, event_version, updated_at, user_id, device_id, deleted_at`

const upsertTaskSQL = `
INSERT INTO tasks (` + taskColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
       title = excluded.title,
       description = excluded.description,
       importance = excluded.importance,
       size_points = excluded.size_points,
       deadline = excluded.deadline,
       repeat_kind = excluded.repeat_kind,
       repeat_interval_days = excluded.repeat_interval_days,
       weekdays = excluded.weekdays,
       last_done_at = excluded.last_done_at,
       status = excluded.status,
       snoozed_until = excluded.snoozed_until,
       completed_at = excluded.completed_at,
       next_eligible_at = excluded.next_eligible_at,
       paused = excluded.paused,
       auto_shuffle_allowed = excluded.auto_shuffle_allowed,
       period_kind = excluded.period_kind,
       period_definition_id = excluded.period_definition_id,
       period_ad_hoc = excluded.period_ad_hoc,
       period_custom_start = excluded.period_custom_start,
       period_custom_end = excluded.period_custom_end,
       cut_in_line = excluded.cut_in_line,
       timer = excluded.timer,
       event_version = excluded.event_version,
       updated_at = excluded.updated_at,
       user_id = excluded.user_id,
       device_id = excluded.device_id,
       deleted_at = excluded.deleted_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (models.Task, error) {
	var t models.Task
	var deadline, lastDone, snoozed, completed, nextEligible, deletedAt sql.NullString
	var adHoc, timer sql.NullString
	var updatedAt string
	var weekdays int64

	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Importance, &t.SizePoints, &deadline,
		&t.Repeat.Kind, &t.Repeat.IntervalDays, &weekdays, &lastDone, &t.Status,
		&snoozed, &completed, &nextEligible, &t.Paused, &t.AutoShuffleAllowed,
		&t.Period.Kind, &t.Period.DefinitionID, &adHoc, &t.Period.CustomStart, &t.Period.CustomEnd,
		&t.CutInLine, &timer, &t.EventVersion, &updatedAt, &t.UserID, &t.DeviceID, &deletedAt,
	)
	if err != nil {
		return models.Task{}, err
	}
	t.Weekdays = models.WeekdayMask(weekdays)

	times := []struct {
		src sql.NullString
		dst **time.Time
	}{
		{deadline, &t.Deadline},
		{lastDone, &t.LastDoneAt},
		{snoozed, &t.SnoozedUntil},
		{completed, &t.CompletedAt},
		{nextEligible, &t.NextEligibleAt},
		{deletedAt, &t.DeletedAt},
	}
	for _, tm := range times {
		if *tm.dst, err = parseNullTime(tm.src); err != nil {
			return models.Task{}, fmt.Errorf("task %s: invalid timestamp: %w", t.ID, err)
		}
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return models.Task{}, fmt.Errorf("task %s: invalid updated_at: %w", t.ID, err)
	}

	if adHoc.Valid && adHoc.String != "" {
		var p models.AdHocPeriod
		if err := json.Unmarshal([]byte(adHoc.String), &p); err != nil {
			return models.Task{}, fmt.Errorf("task %s: invalid ad-hoc period: %w", t.ID, err)
		}
		t.Period.AdHoc = &p
	}
	if timer.Valid && timer.String != "" {
		var o models.TimerOverride
		if err := json.Unmarshal([]byte(timer.String), &o); err != nil {
			return models.Task{}, fmt.Errorf("task %s: invalid timer override: %w", t.ID, err)
		}
		t.Timer = &o
	}
	return t, nil
}

func jsonColumn(v any, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func (s *Store) writeTask(ctx context.Context, t models.Task) error {
	adHoc, err := jsonColumn(t.Period.AdHoc, t.Period.AdHoc != nil)
	if err != nil {
		return fmt.Errorf("failed to encode ad-hoc period: %w", err)
	}
	timer, err := jsonColumn(t.Timer, t.Timer != nil)
	if err != nil {
		return fmt.Errorf("failed to encode timer override: %w", err)
	}
	if t.Repeat.Kind == "" {
		t.Repeat.Kind = models.RepeatNone
	}
	if t.Status == "" {
		t.Status = models.StatusActive
	}
	if t.Period.Kind == "" {
		t.Period.Kind = models.PeriodAny
	}
	if t.CutInLine == "" {
		t.CutInLine = models.CutInLineNone
	}

	_, err = s.exec(ctx, upsertTaskSQL,
		t.ID, t.Title, t.Description, t.Importance, t.SizePoints, nullTime(t.Deadline),
		string(t.Repeat.Kind), t.Repeat.IntervalDays, int64(t.Weekdays), nullTime(t.LastDoneAt), string(t.Status),
		nullTime(t.SnoozedUntil), nullTime(t.CompletedAt), nullTime(t.NextEligibleAt), t.Paused, t.AutoShuffleAllowed,
		string(t.Period.Kind), t.Period.DefinitionID, adHoc, t.Period.CustomStart, t.Period.CustomEnd,
		string(t.CutInLine), timer, t.EventVersion, formatTime(t.UpdatedAt), t.UserID, t.DeviceID, nullTime(t.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", t.ID, err)
	}
	return nil
}

// writeLocal stamps, validates and stores a task changed on this device.
func (s *Store) writeLocal(ctx context.Context, t models.Task) (models.Task, error) {
	if t.DeletedAt == nil {
		if err := validation.ValidateTask(t); err != nil {
			return models.Task{}, fmt.Errorf("invalid task: %w", err)
		}
	}
	deviceID, userID := s.identity()
	lifecycle.Stamp(&t, s.now(), deviceID, userID)
	if err := s.writeTask(ctx, t); err != nil {
		return models.Task{}, err
	}
	s.notifyWrite(t)
	return t, nil
}

// autoResume persists a due resume without stamping: every device derives
// the same transition from the same record.
func (s *Store) autoResume(ctx context.Context, t models.Task) models.Task {
	resumed, changed := lifecycle.AutoResumeDue(t, s.now())
	if !changed {
		return t
	}
	if err := s.writeTask(ctx, resumed); err != nil {
		logger.Warn("Failed to persist auto-resumed task", "task_id", t.ID, "error", err)
		return resumed
	}
	logger.Debug("Task auto-resumed", "task_id", t.ID)
	return resumed
}

func (s *Store) listTasks(ctx context.Context, includeDeleted bool) ([]models.Task, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := "SELECT " + taskColumns + " FROM tasks"
	if !includeDeleted {
		q += " WHERE deleted_at IS NULL"
	}
	q += " ORDER BY id"

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer logClose(rows)

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) GetTasks(ctx context.Context) ([]models.Task, error) {
	tasks, err := s.listTasks(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i] = s.autoResume(ctx, tasks[i])
	}
	return tasks, nil
}

func (s *Store) GetAllTasksIncludingDeleted(ctx context.Context) ([]models.Task, error) {
	return s.listTasks(ctx, true)
}

func (s *Store) GetTaskRecord(ctx context.Context, id string) (models.Task, error) {
	if err := s.ready(); err != nil {
		return models.Task{}, err
	}
	t, err := scanTask(s.queryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("%w: %s", apperrors.ErrTaskNotFound, id)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to load task %s: %w", id, err)
	}
	return t, nil
}

// PutTaskRecord stores a task exactly as given.
func (s *Store) PutTaskRecord(ctx context.Context, task models.Task) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.writeTask(ctx, task)
}

func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	t, err := s.GetTaskRecord(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if t.DeletedAt != nil {
		return models.Task{}, fmt.Errorf("%w: %s", apperrors.ErrTaskNotFound, id)
	}
	return s.autoResume(ctx, t), nil
}

// AddTask stores a new task, assigning an id when none is set.
func (s *Store) AddTask(ctx context.Context, task models.Task) (models.Task, error) {
	if err := s.ready(); err != nil {
		return models.Task{}, err
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if _, err := s.GetTaskRecord(ctx, task.ID); err == nil {
		return models.Task{}, fmt.Errorf("task %s already exists", task.ID)
	} else if !errors.Is(err, apperrors.ErrTaskNotFound) {
		return models.Task{}, err
	}
	return s.writeLocal(ctx, task)
}

func (s *Store) UpdateTask(ctx context.Context, task models.Task) error {
	current, err := s.GetTaskRecord(ctx, task.ID)
	if err != nil {
		return err
	}
	if current.DeletedAt != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrTaskNotFound, task.ID)
	}
	if task.EventVersion < current.EventVersion {
		task.EventVersion = current.EventVersion
	}
	_, err = s.writeLocal(ctx, task)
	return err
}

// DeleteTask soft-deletes a task so the tombstone can be synced.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	t.DeletedAt = &now
	_, err = s.writeLocal(ctx, t)
	return err
}

func (s *Store) RestoreTask(ctx context.Context, id string) error {
	t, err := s.GetTaskRecord(ctx, id)
	if err != nil {
		return err
	}
	if t.DeletedAt == nil {
		return fmt.Errorf("task %s is not deleted", id)
	}
	t.DeletedAt = nil
	_, err = s.writeLocal(ctx, t)
	return err
}

func (s *Store) MarkTaskDone(ctx context.Context, id string, now time.Time) (models.Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	return s.writeLocal(ctx, lifecycle.MarkDone(t, now))
}

func (s *Store) SnoozeTask(ctx context.Context, id string, until, now time.Time) (models.Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	return s.writeLocal(ctx, lifecycle.Snooze(t, until, now))
}

func (s *Store) ResumeTask(ctx context.Context, id string) (models.Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	return s.writeLocal(ctx, lifecycle.Resume(t))
}
