// Package coordinator runs the shuffle state machine: it decides when the
// next task is selected, enforces daily limits and quiet hours, drives
// pomodoro phases and persists enough state to recover after a restart.
//
// Every public operation and every timer callback is serialized through a
// single gate, so at most one scheduling decision is in flight.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/julianstephens/nextup/internal/constants"
	"github.com/julianstephens/nextup/internal/logger"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/utils"
)

// Store is the persistence the coordinator needs.
type Store interface {
	GetTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	UpdateTask(ctx context.Context, task models.Task) error
	GetSettings(ctx context.Context) (models.Settings, error)
	GetState(ctx context.Context) (models.ShuffleState, error)
	SaveState(ctx context.Context, state models.ShuffleState) (models.ShuffleState, error)
}

// Notifier delivers notifications. Failures are logged, never fatal.
type Notifier interface {
	NotifyTask(ctx context.Context, task models.Task, minutes int, settings models.Settings, delay time.Duration) error
	ShowToast(ctx context.Context, title, message string, settings models.Settings) error
	CancelPending(ctx context.Context) error
}

// Picker selects tasks; satisfied by *selector.Selector.
type Picker interface {
	PickNext(tasks []models.Task, settings models.Settings, now time.Time, deterministic bool) *models.Task
	PickManual(tasks []models.Task, settings models.Settings, now time.Time, deterministic bool) *models.Task
	IsCandidate(task models.Task, settings models.Settings, now time.Time) bool
}

// GapFunc returns the delay before the next automatic shuffle.
type GapFunc func(s models.Settings) time.Duration

// RandomGap draws a gap uniformly between the configured min and max minutes.
func RandomGap(s models.Settings) time.Duration {
	models.ApplyDefaultSettings(&s)
	span := s.MaxGapMinutes - s.MinGapMinutes
	minutes := s.MinGapMinutes
	if span > 0 {
		minutes += rand.IntN(span + 1)
	}
	return time.Duration(minutes) * time.Minute
}

type StateKind string

const (
	StateIdle       StateKind = "idle"
	StatePaused     StateKind = "paused"
	StateWaiting    StateKind = "waiting"
	StateTaskActive StateKind = "task_active"
)

// Status is the in-memory view of the state machine.
type Status struct {
	State       StateKind
	ScheduledAt time.Time // zero unless a shuffle timer is armed
	TaskID      string    // pending task when waiting, active task otherwise
	Phase       models.PomodoroPhase
}

// View is the persisted state a UI needs to restore itself after a restart.
type View struct {
	Pending    *models.PendingShuffle
	Active     *models.ActiveTask
	Remaining  time.Duration
	DailyCount int
}

type Coordinator struct {
	store    Store
	notifier Notifier
	picker   Picker
	clock    Clock
	gap      GapFunc

	deterministic bool

	mu       sync.Mutex
	runCtx   context.Context
	started  bool
	paused   bool
	closed   bool
	settings models.Settings
	loc      *time.Location
	timers   map[timerKind]*armedTimer
	gen      uint64
	active   *models.ActiveTask // last known, for Snapshot

	subMu   sync.Mutex
	subs    map[int]chan models.ActiveTask
	nextSub int
}

type Option func(*Coordinator)

func WithClock(clock Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func WithGap(gap GapFunc) Option {
	return func(c *Coordinator) { c.gap = gap }
}

// WithDeterministic makes selection pick the top score instead of sampling.
func WithDeterministic(deterministic bool) Option {
	return func(c *Coordinator) { c.deterministic = deterministic }
}

func New(store Store, notifier Notifier, picker Picker, opts ...Option) *Coordinator {
	if store == nil || notifier == nil || picker == nil {
		panic("coordinator: store, notifier and picker are required")
	}
	c := &Coordinator{
		store:    store,
		notifier: notifier,
		picker:   picker,
		clock:    realClock{},
		gap:      RandomGap,
		runCtx:   context.Background(),
		settings: models.DefaultSettings(),
		loc:      time.Local,
		timers:   make(map[timerKind]*armedTimer),
		subs:     make(map[int]chan models.ActiveTask),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start loads settings, restores timers from persisted state and enters
// scheduling evaluation. ctx bounds every timer armed afterwards.
// Collaborator errors during start are returned.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("coordinator is closed")
	}
	c.runCtx = ctx
	if err := c.loadSettings(ctx); err != nil {
		return err
	}
	c.started = true
	c.paused = false

	if err := c.restorePhaseTimer(ctx); err != nil {
		return err
	}
	if err := c.evaluate(ctx); err != nil {
		return err
	}
	logger.Info("Shuffle coordinator started", "next", c.scheduledAt())
	return nil
}

// Run starts the coordinator and blocks until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	c.Close()
	return nil
}

// Resume clears the paused flag and re-enters scheduling evaluation.
func (c *Coordinator) Resume(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.paused = false
	c.started = true
	if err := c.restorePhaseTimer(ctx); err != nil {
		logger.Error("Failed to restore pomodoro timer", "error", err)
	}
	if err := c.evaluate(ctx); err != nil {
		logger.Error("Scheduling evaluation failed on resume", "error", err)
		c.armRetry()
	}
}

// Pause cancels armed timers and any delayed notification. Persisted
// pending state is kept so Resume can pick it up again.
func (c *Coordinator) Pause(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.paused = true
	c.disarm(shuffleTimer)
	c.disarm(phaseTimer)
	if err := c.notifier.CancelPending(ctx); err != nil {
		logger.Warn("Failed to cancel pending notifications", "error", err)
	}
	logger.Info("Shuffle coordinator paused")
}

// Refresh re-reads settings and re-runs scheduling evaluation.
func (c *Coordinator) Refresh(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if err := c.loadSettings(ctx); err != nil {
		logger.Error("Failed to reload settings", "error", err)
		return
	}
	if !c.started {
		return
	}
	c.disarm(shuffleTimer)
	if err := c.evaluate(ctx); err != nil {
		logger.Error("Scheduling evaluation failed on refresh", "error", err)
		c.armRetry()
	}
}

// ShuffleNow performs a manual shuffle. It is not blocked by a running task
// and does not count towards the daily limit. A nil result means nothing
// could be selected.
func (c *Coordinator) ShuffleNow(ctx context.Context) (*models.ActiveTask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shuffleManual(ctx)
}

// AdvancePhase moves a running pomodoro to its next phase immediately.
func (c *Coordinator) AdvancePhase(ctx context.Context) (*models.ActiveTask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advancePhase(ctx)
}

// Snapshot reports the in-memory state.
func (c *Coordinator) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	switch {
	case c.paused:
		return Status{State: StatePaused}
	case c.active != nil && c.active.Running(now):
		return Status{State: StateTaskActive, TaskID: c.active.TaskID, Phase: c.active.Phase, ScheduledAt: c.scheduledAt()}
	}
	if t := c.timers[shuffleTimer]; t != nil {
		return Status{State: StateWaiting, ScheduledAt: t.at, TaskID: t.taskID}
	}
	return Status{State: StateIdle}
}

// RestoreView reads the persisted pending and active state.
func (c *Coordinator) RestoreView(ctx context.Context) (View, error) {
	state, err := c.store.GetState(ctx)
	if err != nil {
		return View{}, fmt.Errorf("failed to load shuffle state: %w", err)
	}

	c.mu.Lock()
	now := c.now()
	c.mu.Unlock()

	v := View{Pending: state.Pending, Active: state.Active}
	if state.DailyDate == utils.DayKey(now) {
		v.DailyCount = state.DailyCount
	}
	if state.Active != nil {
		v.Remaining = state.Active.Remaining(now)
	}
	return v, nil
}

// Subscribe registers for "task became active" events. The returned function
// unsubscribes and closes the channel. Slow subscribers miss events rather
// than block the coordinator.
func (c *Coordinator) Subscribe() (<-chan models.ActiveTask, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan models.ActiveTask, constants.SubscriberBufferSize)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close retires every timer and closes subscriber channels.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.disarm(shuffleTimer)
	c.disarm(phaseTimer)
	c.mu.Unlock()

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Coordinator) publish(a models.ActiveTask) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, ch := range c.subs {
		select {
		case ch <- a:
		default:
			logger.Warn("Subscriber is not keeping up, dropping event", "subscriber", id, "task_id", a.TaskID)
		}
	}
}

func (c *Coordinator) loadSettings(ctx context.Context) error {
	s, err := c.store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	models.ApplyDefaultSettings(&s)
	loc, err := utils.LoadLocation(s.Timezone)
	if err != nil {
		logger.Warn("Invalid timezone, using system timezone", "timezone", s.Timezone, "error", err)
		loc = time.Local
	}
	c.settings = s
	c.loc = loc
	return nil
}

func (c *Coordinator) now() time.Time {
	return c.clock.Now().In(c.loc)
}

func (c *Coordinator) scheduledAt() time.Time {
	if t := c.timers[shuffleTimer]; t != nil {
		return t.at
	}
	return time.Time{}
}
