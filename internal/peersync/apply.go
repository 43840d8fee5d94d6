package peersync

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/nextup/internal/logger"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/telemetry"
	"github.com/julianstephens/nextup/internal/validation"

	apperrors "github.com/julianstephens/nextup/internal/errors"
)

// ErrMalformedEvent is returned for events that cannot be applied at all.
var ErrMalformedEvent = errors.New("malformed task event")

// Store is the storage the reconciler writes inbound events to. Records
// include soft-deleted tasks so tombstones keep their versions.
type Store interface {
	GetTaskRecord(ctx context.Context, id string) (models.Task, error)
	PutTaskRecord(ctx context.Context, task models.Task) error
}

// Apply dispatches an inbound event. It reports whether local state changed.
func (r *Reconciler) Apply(ctx context.Context, store Store, ev TaskEvent) (bool, error) {
	switch ev.Kind {
	case EventUpsert:
		if ev.Task == nil {
			return false, fmt.Errorf("%w: upsert event %s carries no task", ErrMalformedEvent, ev.ID)
		}
		if ev.Task.ID != ev.TaskID {
			return false, fmt.Errorf("%w: upsert event %s names task %q but carries %q", ErrMalformedEvent, ev.ID, ev.TaskID, ev.Task.ID)
		}
		return r.ApplyUpsert(ctx, store, *ev.Task)
	case EventDelete:
		return r.ApplyDelete(ctx, store, ev)
	default:
		return false, fmt.Errorf("%w: unknown event kind %q", ErrMalformedEvent, ev.Kind)
	}
}

// ApplyUpsert stores an inbound task when it is strictly newer than the
// local record. Ties and older versions are dropped. Tasks that fail
// validation are rejected with ErrMalformedEvent.
func (r *Reconciler) ApplyUpsert(ctx context.Context, store Store, incoming models.Task) (bool, error) {
	ctx, span := telemetry.StartTaskSpan(ctx, telemetry.SpanSyncApply, incoming.ID)
	defer span.End()

	if !r.owns(incoming.UserID) {
		logger.Debug("Dropping task event for another user", "task_id", incoming.ID, "user_id", incoming.UserID)
		return false, nil
	}

	if err := validation.ValidateTask(incoming); err != nil {
		telemetry.RecordError(span, err, "validation")
		logger.Debug("Dropping invalid task event", "task_id", incoming.ID, "error", err)
		return false, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	local, found, err := r.lookup(ctx, store, incoming.ID)
	if err != nil {
		telemetry.RecordError(span, err, "storage")
		return false, err
	}
	if found && !models.EntryFromTask(incoming).NewerThan(models.EntryFromTask(local)) {
		logger.Debug("Dropping stale task event",
			"task_id", incoming.ID,
			"incoming_version", incoming.EventVersion,
			"local_version", local.EventVersion,
		)
		return false, nil
	}

	if err := store.PutTaskRecord(ctx, incoming); err != nil {
		telemetry.RecordError(span, err, "storage")
		return false, fmt.Errorf("failed to store task %s: %w", incoming.ID, err)
	}
	r.Invalidate()
	logger.Info("Applied remote task update", "task_id", incoming.ID, "version", incoming.EventVersion, "device_id", incoming.DeviceID)
	return true, nil
}

// ApplyDelete soft-deletes the local task when the delete is strictly newer.
// Unknown tasks get a tombstone so an older upsert cannot resurrect them.
func (r *Reconciler) ApplyDelete(ctx context.Context, store Store, ev TaskEvent) (bool, error) {
	ctx, span := telemetry.StartTaskSpan(ctx, telemetry.SpanSyncApply, ev.TaskID)
	defer span.End()

	if !r.owns(ev.UserID) {
		logger.Debug("Dropping delete event for another user", "task_id", ev.TaskID, "user_id", ev.UserID)
		return false, nil
	}

	local, found, err := r.lookup(ctx, store, ev.TaskID)
	if err != nil {
		telemetry.RecordError(span, err, "storage")
		return false, err
	}
	if found && !ev.Entry().NewerThan(models.EntryFromTask(local)) {
		logger.Debug("Dropping stale delete event", "task_id", ev.TaskID, "incoming_version", ev.EventVersion, "local_version", local.EventVersion)
		return false, nil
	}

	tombstone := local
	if !found {
		tombstone = models.Task{ID: ev.TaskID, Status: models.StatusActive}
	}
	deletedAt := ev.UpdatedAt
	tombstone.DeletedAt = &deletedAt
	tombstone.EventVersion = ev.EventVersion
	tombstone.UpdatedAt = ev.UpdatedAt
	tombstone.DeviceID = ev.DeviceID
	tombstone.UserID = ev.UserID

	if err := store.PutTaskRecord(ctx, tombstone); err != nil {
		telemetry.RecordError(span, err, "storage")
		return false, fmt.Errorf("failed to delete task %s: %w", ev.TaskID, err)
	}
	r.Invalidate()
	logger.Info("Applied remote task delete", "task_id", ev.TaskID, "version", ev.EventVersion)
	return true, nil
}

func (r *Reconciler) lookup(ctx context.Context, store Store, id string) (models.Task, bool, error) {
	local, err := store.GetTaskRecord(ctx, id)
	switch {
	case err == nil:
		return local, true, nil
	case errors.Is(err, apperrors.ErrTaskNotFound):
		return models.Task{}, false, nil
	default:
		return models.Task{}, false, fmt.Errorf("failed to load task %s: %w", id, err)
	}
}
