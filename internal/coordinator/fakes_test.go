package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/selector"

	apperrors "github.com/julianstephens/nextup/internal/errors"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due timers in order, including ones
// armed by earlier callbacks.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(c.now) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.mu.Unlock()
		next.f()
	}
}

type fakeStore struct {
	mu          sync.Mutex
	tasks       []models.Task
	settings    models.Settings
	state       models.ShuffleState
	updates     []models.Task
	settingsErr error
	stateErr    error
	conflicts   int // SaveState calls to reject after a concurrent write
}

func newFakeStore(settings models.Settings, tasks ...models.Task) *fakeStore {
	return &fakeStore{settings: settings, tasks: tasks}
}

func (f *fakeStore) GetTasks(context.Context) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Task, len(f.tasks))
	for i, t := range f.tasks {
		out[i] = t.Clone()
	}
	return out, nil
}

func (f *fakeStore) GetTask(_ context.Context, id string) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return models.Task{}, apperrors.ErrTaskNotFound
}

func (f *fakeStore) UpdateTask(_ context.Context, task models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, task)
	for i := range f.tasks {
		if f.tasks[i].ID == task.ID {
			f.tasks[i] = task
			return nil
		}
	}
	return apperrors.ErrTaskNotFound
}

func (f *fakeStore) GetSettings(context.Context) (models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings, f.settingsErr
}

func (f *fakeStore) GetState(context.Context) (models.ShuffleState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return models.ShuffleState{}, f.stateErr
	}
	return copyState(f.state), nil
}

func (f *fakeStore) SaveState(_ context.Context, st models.ShuffleState) (models.ShuffleState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts > 0 {
		f.conflicts--
		f.state.Version++
		return models.ShuffleState{}, apperrors.ErrStateConflict
	}
	if st.Version != f.state.Version {
		return models.ShuffleState{}, apperrors.ErrStateConflict
	}
	st.Version++
	f.state = copyState(st)
	return copyState(st), nil
}

func (f *fakeStore) snapshot() models.ShuffleState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyState(f.state)
}

func (f *fakeStore) setTasks(tasks ...models.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = tasks
}

func copyState(st models.ShuffleState) models.ShuffleState {
	out := st
	if st.Pending != nil {
		p := *st.Pending
		out.Pending = &p
	}
	if st.Active != nil {
		a := *st.Active
		out.Active = &a
	}
	return out
}

type notification struct {
	taskID  string
	minutes int
}

type fakeNotifier struct {
	mu        sync.Mutex
	notified  []notification
	toasts    []string
	cancels   int
	notifyErr error
}

func (n *fakeNotifier) NotifyTask(_ context.Context, task models.Task, minutes int, _ models.Settings, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, notification{taskID: task.ID, minutes: minutes})
	return n.notifyErr
}

func (n *fakeNotifier) ShowToast(_ context.Context, title, _ string, _ models.Settings) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, title)
	return nil
}

func (n *fakeNotifier) CancelPending(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancels++
	return errors.New("no tray app running")
}

func (n *fakeNotifier) notifiedIDs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var ids []string
	for _, x := range n.notified {
		ids = append(ids, x.taskID)
	}
	return ids
}

// countingPicker wraps the real selector and counts selection calls.
type countingPicker struct {
	*selector.Selector
	mu          sync.Mutex
	pickCalls   int
	manualCalls int
	panicOnPick bool
}

func newCountingPicker() *countingPicker {
	return &countingPicker{Selector: selector.New(nil)}
}

func (p *countingPicker) PickNext(tasks []models.Task, s models.Settings, now time.Time, deterministic bool) *models.Task {
	p.mu.Lock()
	p.pickCalls++
	shouldPanic := p.panicOnPick
	p.mu.Unlock()
	if shouldPanic {
		panic("picker exploded")
	}
	return p.Selector.PickNext(tasks, s, now, deterministic)
}

func (p *countingPicker) PickManual(tasks []models.Task, s models.Settings, now time.Time, deterministic bool) *models.Task {
	p.mu.Lock()
	p.manualCalls++
	p.mu.Unlock()
	return p.Selector.PickManual(tasks, s, now, deterministic)
}

func (p *countingPicker) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pickCalls
}
