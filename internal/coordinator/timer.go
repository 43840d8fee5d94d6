package coordinator

import (
	"context"
	"time"

	"github.com/julianstephens/nextup/internal/logger"
)

// Clock abstracts wall time and timer scheduling.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type timerKind int

const (
	shuffleTimer timerKind = iota
	phaseTimer
)

func (k timerKind) String() string {
	if k == phaseTimer {
		return "phase"
	}
	return "shuffle"
}

// armedTimer is one scheduled wake. Its context is cancelled when the timer
// is superseded, paused or closed.
type armedTimer struct {
	timer  Timer
	cancel context.CancelFunc
	at     time.Time
	taskID string
	gen    uint64
}

// arm replaces the timer of the given kind. Must be called with c.mu held.
func (c *Coordinator) arm(kind timerKind, at time.Time, taskID string, onFire func(taskID string)) {
	c.disarm(kind)

	ctx, cancel := context.WithCancel(c.runCtx)
	c.gen++
	gen := c.gen
	delay := at.Sub(c.clock.Now())
	if delay < 0 {
		delay = 0
	}

	t := &armedTimer{cancel: cancel, at: at, taskID: taskID, gen: gen}
	t.timer = c.clock.AfterFunc(delay, func() {
		c.fire(ctx, cancel, kind, gen, taskID, onFire)
	})
	c.timers[kind] = t
	logger.Debug("Timer armed", "kind", kind, "at", at, "task_id", taskID, "delay", delay)
}

// disarm stops and retires a timer. Must be called with c.mu held.
func (c *Coordinator) disarm(kind timerKind) {
	t := c.timers[kind]
	if t == nil {
		return
	}
	t.timer.Stop()
	t.cancel()
	delete(c.timers, kind)
}

// fire runs a timer callback under the gate. Cancellation is checked on wake
// and again once the gate is held. A panicking callback is logged and, when
// no shuffle is armed afterwards, the no-candidate retry takes over.
func (c *Coordinator) fire(ctx context.Context, cancel context.CancelFunc, kind timerKind, gen uint64, taskID string, onFire func(string)) {
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Timer callback panicked", "kind", kind, "task_id", taskID, "panic", r)
		}
	}()

	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil || c.closed {
		return
	}
	if t := c.timers[kind]; t == nil || t.gen != gen {
		return
	}
	delete(c.timers, kind)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Timer callback panicked", "kind", kind, "task_id", taskID, "panic", r)
			if c.timers[shuffleTimer] == nil {
				c.armRetry()
			}
		}
	}()

	onFire(taskID)
}
