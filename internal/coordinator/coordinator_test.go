package coordinator

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/julianstephens/nextup/internal/constants"
	"github.com/julianstephens/nextup/internal/models"
)

// Monday afternoon, outside the default 22:00-08:00 quiet hours.
var monday = time.Date(2024, 3, 11, 14, 0, 0, 0, time.UTC)

type harness struct {
	c        *Coordinator
	clock    *fakeClock
	store    *fakeStore
	notifier *fakeNotifier
	picker   *countingPicker
}

func testSettings() models.Settings {
	s := models.DefaultSettings()
	s.Timezone = "UTC"
	return s
}

func fixedGap(d time.Duration) GapFunc {
	return func(models.Settings) time.Duration { return d }
}

func newHarness(t *testing.T, now time.Time, s models.Settings, gap time.Duration, tasks ...models.Task) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(now),
		store:    newFakeStore(s, tasks...),
		notifier: &fakeNotifier{},
		picker:   newCountingPicker(),
	}
	h.c = New(h.store, h.notifier, h.picker,
		WithClock(h.clock),
		WithGap(fixedGap(gap)),
		WithDeterministic(true),
	)
	t.Cleanup(h.c.Close)
	return h
}

// advance walks the clock forward a minute at a time so timers fire at
// their scheduled instants.
func (h *harness) advance(d time.Duration) {
	for step := time.Duration(0); step < d; step += time.Minute {
		h.clock.Advance(time.Minute)
	}
}

func task(id string, importance int) models.Task {
	t := models.NewTask(id, "task "+id)
	t.Importance = importance
	return t
}

func TestDailyLimitArmsNextDayWithoutPicking(t *testing.T) {
	s := testSettings()
	s.MaxDailyShuffles = 1
	h := newHarness(t, monday, s, 30*time.Minute, task("a", 3))
	h.store.state = models.ShuffleState{DailyCount: 1, DailyDate: "2024-03-11"}

	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if calls := h.picker.calls(); calls != 0 {
		t.Errorf("PickNext called %d times, want 0", calls)
	}
	wantWake := time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)
	st := h.c.Snapshot()
	if st.State != StateWaiting || !st.ScheduledAt.Equal(wantWake) || st.TaskID != "" {
		t.Errorf("Snapshot() = %+v, want waiting until %v without task", st, wantWake)
	}
	if p := h.store.snapshot().Pending; p == nil || !p.At.Equal(wantWake) {
		t.Errorf("persisted pending = %+v, want wake at %v", p, wantWake)
	}
}

func TestDailyLimitWithoutQuietHoursUsesWorkStart(t *testing.T) {
	s := testSettings()
	s.MaxDailyShuffles = 2
	s.QuietHoursStart, s.QuietHoursEnd = "00:00", "00:00"
	h := newHarness(t, monday, s, 30*time.Minute, task("a", 3))
	h.store.state = models.ShuffleState{DailyCount: 2, DailyDate: "2024-03-11"}

	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	want := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	if got := h.c.Snapshot().ScheduledAt; !got.Equal(want) {
		t.Errorf("ScheduledAt = %v, want %v", got, want)
	}
}

func TestDailyCounterRollsOver(t *testing.T) {
	s := testSettings()
	s.MaxDailyShuffles = 1
	h := newHarness(t, monday, s, 30*time.Minute, task("a", 3))
	h.store.state = models.ShuffleState{DailyCount: 1, DailyDate: "2024-03-10"}

	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if calls := h.picker.calls(); calls != 1 {
		t.Errorf("PickNext called %d times, want 1", calls)
	}
	st := h.store.snapshot()
	if st.DailyDate != "2024-03-11" || st.DailyCount != 0 {
		t.Errorf("daily counter = %d on %s, want 0 on 2024-03-11", st.DailyCount, st.DailyDate)
	}
}

func TestShuffleFiresAndRearms(t *testing.T) {
	h := newHarness(t, monday, testSettings(), 30*time.Minute, task("a", 3))
	events, unsubscribe := h.c.Subscribe()
	defer unsubscribe()

	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if st := h.c.Snapshot(); st.State != StateWaiting || st.TaskID != "a" || !st.ScheduledAt.Equal(monday.Add(30*time.Minute)) {
		t.Fatalf("Snapshot() after start = %+v", st)
	}

	h.advance(30 * time.Minute)

	if got := h.notifier.notifiedIDs(); !slices.Equal(got, []string{"a"}) {
		t.Fatalf("notified = %v, want [a]", got)
	}
	state := h.store.snapshot()
	if state.DailyCount != 1 {
		t.Errorf("DailyCount = %d, want 1", state.DailyCount)
	}
	if state.Active == nil || state.Active.TaskID != "a" || !state.Active.ExpiresAt.Equal(monday.Add(55*time.Minute)) {
		t.Errorf("Active = %+v, want task a expiring at 14:55", state.Active)
	}
	if state.Pending == nil || !state.Pending.At.Equal(monday.Add(time.Hour)) {
		t.Errorf("Pending = %+v, want next cycle at 15:00", state.Pending)
	}

	select {
	case ev := <-events:
		if ev.TaskID != "a" || ev.DurationMinutes != 25 {
			t.Errorf("event = %+v, want task a for 25 minutes", ev)
		}
	default:
		t.Error("no activation event published")
	}
}

func TestActiveTaskGuardDefersAutoShuffle(t *testing.T) {
	h := newHarness(t, monday, testSettings(), 10*time.Minute, task("a", 3))
	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	h.advance(10 * time.Minute) // activates a until 14:35
	h.advance(10 * time.Minute) // 14:20 fire is blocked by the running task

	if n := len(h.notifier.notifiedIDs()); n != 1 {
		t.Fatalf("notifications = %d, want 1", n)
	}
	if st := h.c.Snapshot(); st.State != StateTaskActive || st.TaskID != "a" {
		t.Errorf("Snapshot() = %+v, want task active", st)
	}
	if p := h.store.snapshot().Pending; p == nil || p.TaskID != "a" || !p.At.Equal(monday.Add(30*time.Minute)) {
		t.Errorf("Pending = %+v, want a deferred to 14:30", p)
	}

	h.advance(20 * time.Minute)
	if n := len(h.notifier.notifiedIDs()); n != 2 {
		t.Errorf("notifications after expiry = %d, want 2", n)
	}
}

func TestFreshTargetPushedPastQuietHours(t *testing.T) {
	evening := time.Date(2024, 3, 11, 21, 50, 0, 0, time.UTC)
	h := newHarness(t, evening, testSettings(), 30*time.Minute, task("a", 3))

	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	want := time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)
	if got := h.c.Snapshot().ScheduledAt; !got.Equal(want) {
		t.Errorf("ScheduledAt = %v, want %v", got, want)
	}
}

func TestFireDuringQuietHoursDefers(t *testing.T) {
	evening := time.Date(2024, 3, 11, 22, 50, 0, 0, time.UTC)
	h := newHarness(t, evening, testSettings(), 30*time.Minute, task("a", 3))
	h.store.state = models.ShuffleState{Pending: &models.PendingShuffle{At: evening.Add(10 * time.Minute), TaskID: "a"}}

	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.advance(10 * time.Minute)

	if n := len(h.notifier.notifiedIDs()); n != 0 {
		t.Errorf("notifications during quiet hours = %d, want 0", n)
	}
	want := time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)
	if st := h.c.Snapshot(); !st.ScheduledAt.Equal(want) || st.TaskID != "a" {
		t.Errorf("Snapshot() = %+v, want a at %v", st, want)
	}
}

func TestPendingShuffleResumedAfterRestart(t *testing.T) {
	h := newHarness(t, monday, testSettings(), 30*time.Minute, task("a", 5), task("b", 1))
	at := monday.Add(20 * time.Minute)
	h.store.state = models.ShuffleState{Pending: &models.PendingShuffle{At: at, TaskID: "b"}}

	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if calls := h.picker.calls(); calls != 0 {
		t.Errorf("PickNext called %d times, want 0", calls)
	}
	if st := h.c.Snapshot(); st.TaskID != "b" || !st.ScheduledAt.Equal(at) {
		t.Errorf("Snapshot() = %+v, want b at %v", st, at)
	}

	h.advance(20 * time.Minute)
	if got := h.notifier.notifiedIDs(); !slices.Equal(got, []string{"b"}) {
		t.Errorf("notified = %v, want [b]", got)
	}
}

func TestInvalidPendingIsReplaced(t *testing.T) {
	h := newHarness(t, monday, testSettings(), 30*time.Minute, task("a", 3))
	h.store.state = models.ShuffleState{Pending: &models.PendingShuffle{At: monday.Add(5 * time.Minute), TaskID: "gone"}}

	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if st := h.c.Snapshot(); st.TaskID != "a" || !st.ScheduledAt.Equal(monday.Add(30*time.Minute)) {
		t.Errorf("Snapshot() = %+v, want fresh pick of a", st)
	}
}

func TestNoCandidateRetriesAfterCooldown(t *testing.T) {
	h := newHarness(t, monday, testSettings(), 30*time.Minute)

	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if st := h.c.Snapshot(); st.State != StateWaiting || st.TaskID != "" || !st.ScheduledAt.Equal(monday.Add(5*time.Minute)) {
		t.Fatalf("Snapshot() = %+v, want cooldown wake at 14:05", st)
	}

	h.store.setTasks(task("late", 3))
	h.advance(5 * time.Minute)

	if st := h.c.Snapshot(); st.TaskID != "late" || !st.ScheduledAt.Equal(monday.Add(35*time.Minute)) {
		t.Errorf("Snapshot() = %+v, want late at 14:35", st)
	}
}

func TestDisabledSettingsClearPending(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Settings)
	}{
		{name: "app disabled", mutate: func(s *models.Settings) { s.Enabled = false }},
		{name: "auto shuffle off", mutate: func(s *models.Settings) { s.AutoShuffleEnabled = false }},
		{name: "notifications off", mutate: func(s *models.Settings) { s.NotificationsEnabled = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings()
			tt.mutate(&s)
			h := newHarness(t, monday, s, 30*time.Minute, task("a", 3))
			h.store.state = models.ShuffleState{Pending: &models.PendingShuffle{At: monday.Add(time.Minute), TaskID: "a"}}

			if err := h.c.Start(context.Background()); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			if p := h.store.snapshot().Pending; p != nil {
				t.Errorf("Pending = %+v, want cleared", p)
			}
			if st := h.c.Snapshot(); st.State != StateIdle {
				t.Errorf("State = %s, want idle", st.State)
			}
		})
	}
}

func TestPauseKeepsPendingAndResumeRearms(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, monday, testSettings(), 30*time.Minute, task("a", 3))
	if err := h.c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	h.c.Pause(ctx)
	if st := h.c.Snapshot(); st.State != StatePaused {
		t.Fatalf("State = %s, want paused", st.State)
	}
	if h.notifier.cancels != 1 {
		t.Errorf("CancelPending calls = %d, want 1", h.notifier.cancels)
	}
	if p := h.store.snapshot().Pending; p == nil || p.TaskID != "a" {
		t.Errorf("Pending after pause = %+v, want kept", p)
	}

	h.advance(time.Hour)
	if n := len(h.notifier.notifiedIDs()); n != 0 {
		t.Fatalf("notifications while paused = %d, want 0", n)
	}

	h.c.Resume(ctx)
	h.clock.Advance(0) // overdue pending fires immediately
	if got := h.notifier.notifiedIDs(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("notified after resume = %v, want [a]", got)
	}
}

func TestRefreshAppliesNewSettings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, monday, testSettings(), 30*time.Minute, task("a", 3))
	if err := h.c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	h.store.mu.Lock()
	h.store.settings.AutoShuffleEnabled = false
	h.store.mu.Unlock()
	h.c.Refresh(ctx)

	if st := h.c.Snapshot(); st.State != StateIdle {
		t.Errorf("State after refresh = %s, want idle", st.State)
	}
	if p := h.store.snapshot().Pending; p != nil {
		t.Errorf("Pending after refresh = %+v, want cleared", p)
	}
}

func TestStartPropagatesCollaboratorErrors(t *testing.T) {
	h := newHarness(t, monday, testSettings(), 30*time.Minute)
	h.store.settingsErr = context.DeadlineExceeded
	if err := h.c.Start(context.Background()); err == nil {
		t.Error("Start() with failing settings error = nil")
	}

	h = newHarness(t, monday, testSettings(), 30*time.Minute)
	h.store.stateErr = context.Canceled
	if err := h.c.Start(context.Background()); err == nil {
		t.Error("Start() with failing state error = nil")
	}
}

func TestStateConflictIsRetried(t *testing.T) {
	h := newHarness(t, monday, testSettings(), 30*time.Minute, task("a", 3))
	h.store.conflicts = 1

	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if p := h.store.snapshot().Pending; p == nil || p.TaskID != "a" {
		t.Errorf("Pending = %+v, want saved after retry", p)
	}
}

func TestTimerPanicIsRecovered(t *testing.T) {
	h := newHarness(t, monday, testSettings(), 30*time.Minute, task("a", 3))
	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	h.picker.mu.Lock()
	h.picker.panicOnPick = true
	h.picker.mu.Unlock()

	h.advance(30 * time.Minute)

	// The gate must have been released.
	done := make(chan Status, 1)
	go func() { done <- h.c.Snapshot() }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Snapshot() blocked after a panicking timer callback")
	}

	h.picker.mu.Lock()
	h.picker.panicOnPick = false
	h.picker.mu.Unlock()

	at, ok := h.shuffleTimerAt()
	if !ok {
		t.Fatal("no shuffle timer armed after a panicking callback")
	}
	if want := monday.Add(30*time.Minute + constants.NoCandidateRetryDelay); !at.Equal(want) {
		t.Errorf("retry armed at %v, want %v", at, want)
	}

	before := len(h.notifier.notifiedIDs())
	h.advance(constants.NoCandidateRetryDelay + 2*time.Hour)
	if got := len(h.notifier.notifiedIDs()); got <= before {
		t.Errorf("notifications = %d after recovery, want more than %d", got, before)
	}
}

func (h *harness) shuffleTimerAt() (time.Time, bool) {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	t := h.c.timers[shuffleTimer]
	if t == nil {
		return time.Time{}, false
	}
	return t.at, true
}

func TestShuffleNowExcludesPreviousTask(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, monday, testSettings(), 30*time.Minute, task("a", 5), task("b", 1))
	pending := &models.PendingShuffle{At: monday.Add(time.Hour), TaskID: "a"}
	h.store.state = models.ShuffleState{
		Pending:    pending,
		DailyCount: 3,
		DailyDate:  "2024-03-11",
		Active:     &models.ActiveTask{TaskID: "a", ExpiresAt: monday.Add(10 * time.Minute)},
	}

	active, err := h.c.ShuffleNow(ctx)
	if err != nil {
		t.Fatalf("ShuffleNow() error = %v", err)
	}
	if active == nil || active.TaskID != "b" {
		t.Fatalf("ShuffleNow() = %+v, want b", active)
	}

	state := h.store.snapshot()
	if state.DailyCount != 3 {
		t.Errorf("DailyCount = %d, want manual shuffle not counted", state.DailyCount)
	}
	if state.Pending == nil || state.Pending.TaskID != "a" {
		t.Errorf("Pending = %+v, want untouched", state.Pending)
	}
}

func TestShuffleNowFallsBackToSameTask(t *testing.T) {
	h := newHarness(t, monday, testSettings(), 30*time.Minute, task("a", 5))
	h.store.state = models.ShuffleState{Active: &models.ActiveTask{TaskID: "a", ExpiresAt: monday.Add(time.Minute)}}

	active, err := h.c.ShuffleNow(context.Background())
	if err != nil || active == nil || active.TaskID != "a" {
		t.Errorf("ShuffleNow() = %+v, %v; want a again", active, err)
	}
}

func TestShuffleNowConsumesCutInLine(t *testing.T) {
	urgent := task("urgent", 1)
	urgent.CutInLine = models.CutInLineOnce
	h := newHarness(t, monday, testSettings(), 30*time.Minute, task("a", 5), urgent)

	active, err := h.c.ShuffleNow(context.Background())
	if err != nil || active == nil || active.TaskID != "urgent" {
		t.Fatalf("ShuffleNow() = %+v, %v; want urgent", active, err)
	}
	if len(h.store.updates) != 1 || h.store.updates[0].CutInLine != models.CutInLineNone {
		t.Errorf("updates = %+v, want cut-in-line cleared", h.store.updates)
	}
}

func TestShuffleNowEmptyPool(t *testing.T) {
	h := newHarness(t, monday, testSettings(), 30*time.Minute)
	active, err := h.c.ShuffleNow(context.Background())
	if err != nil || active != nil {
		t.Errorf("ShuffleNow() = %+v, %v; want nil, nil", active, err)
	}
}

func TestPomodoroPhaseTimer(t *testing.T) {
	s := testSettings()
	s.DefaultTimerMode = models.TimerModePomodoro
	s.PomodoroFocusMinutes = 25
	s.PomodoroBreakMinutes = 5
	s.PomodoroCycles = 2
	h := newHarness(t, monday, s, 30*time.Minute, task("a", 3))
	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	h.advance(30 * time.Minute)
	if a := h.store.snapshot().Active; a == nil || a.Phase != models.PhaseFocus || a.Cycle != 1 {
		t.Fatalf("Active = %+v, want focus cycle 1", a)
	}

	h.advance(25 * time.Minute)
	a := h.store.snapshot().Active
	if a == nil || a.Phase != models.PhaseBreak || !a.ExpiresAt.Equal(monday.Add(time.Hour)) {
		t.Errorf("Active = %+v, want break until 15:00", a)
	}
	if !slices.Equal(h.notifier.toasts, []string{"Break time"}) {
		t.Errorf("toasts = %v, want [Break time]", h.notifier.toasts)
	}
}

func TestAdvancePhaseManually(t *testing.T) {
	h := newHarness(t, monday, testSettings(), 30*time.Minute)
	h.store.state = models.ShuffleState{Active: &models.ActiveTask{
		TaskID: "a", Mode: models.TimerModePomodoro, Phase: models.PhaseFocus,
		Cycle: 1, TotalCycles: 1, FocusMinutes: 25, BreakMinutes: 5,
		ExpiresAt: monday.Add(10 * time.Minute),
	}}

	next, err := h.c.AdvancePhase(context.Background())
	if err != nil || next == nil || next.Phase != models.PhaseCompleted {
		t.Fatalf("AdvancePhase() = %+v, %v; want completed", next, err)
	}

	again, err := h.c.AdvancePhase(context.Background())
	if err != nil || again != nil {
		t.Errorf("AdvancePhase() on completed = %+v, %v; want nil, nil", again, err)
	}
}

func TestRestoreView(t *testing.T) {
	h := newHarness(t, monday, testSettings(), 30*time.Minute, task("a", 3))
	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.advance(30 * time.Minute)

	v, err := h.c.RestoreView(context.Background())
	if err != nil {
		t.Fatalf("RestoreView() error = %v", err)
	}
	if v.Active == nil || v.Active.TaskID != "a" || v.Remaining != 25*time.Minute || v.DailyCount != 1 {
		t.Errorf("RestoreView() = %+v", v)
	}
	if v.Pending == nil || v.Pending.TaskID != "a" {
		t.Errorf("RestoreView().Pending = %+v", v.Pending)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := newHarness(t, monday, testSettings(), 30*time.Minute)
	ch, unsubscribe := h.c.Subscribe()
	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
}
