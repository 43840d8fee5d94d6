package storage

import (
	"context"
	"time"

	"github.com/julianstephens/nextup/internal/models"
)

type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error
	GetConfigPath() string

	// Identity stamped on local writes for sync
	SetIdentity(deviceID, userID string)
	OnLocalWrite(fn func(models.Task))

	// Settings
	GetSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, settings models.Settings) error

	// Tasks. Reads resume snoozed or completed tasks whose time has come.
	AddTask(ctx context.Context, task models.Task) (models.Task, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	GetTasks(ctx context.Context) ([]models.Task, error)
	GetAllTasksIncludingDeleted(ctx context.Context) ([]models.Task, error)
	UpdateTask(ctx context.Context, task models.Task) error
	DeleteTask(ctx context.Context, id string) error
	RestoreTask(ctx context.Context, id string) error

	// Status transitions
	MarkTaskDone(ctx context.Context, id string, now time.Time) (models.Task, error)
	SnoozeTask(ctx context.Context, id string, until, now time.Time) (models.Task, error)
	ResumeTask(ctx context.Context, id string) (models.Task, error)

	// Periods
	GetPeriodDefinitions(ctx context.Context) ([]models.PeriodDefinition, error)
	SavePeriodDefinition(ctx context.Context, def models.PeriodDefinition) error
	DeletePeriodDefinition(ctx context.Context, id string) error

	// Shuffle state, saved with an optimistic version check
	GetState(ctx context.Context) (models.ShuffleState, error)
	SaveState(ctx context.Context, state models.ShuffleState) (models.ShuffleState, error)

	// Raw records for sync: include soft-deleted tasks and skip stamping
	GetTaskRecord(ctx context.Context, id string) (models.Task, error)
	PutTaskRecord(ctx context.Context, task models.Task) error
}
