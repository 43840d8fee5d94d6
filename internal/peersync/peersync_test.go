package peersync

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/julianstephens/nextup/internal/models"

	apperrors "github.com/julianstephens/nextup/internal/errors"
)

var base = time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

func entry(id string, version int64, offset time.Duration) models.ManifestEntry {
	return models.ManifestEntry{TaskID: id, EventVersion: version, UpdatedAt: base.Add(offset)}
}

func TestCompareClassification(t *testing.T) {
	local := []models.ManifestEntry{
		entry("local-ahead", 5, 0),
		entry("remote-ahead", 2, 0),
		entry("same", 4, 0),
		entry("tie-later-local", 3, time.Minute),
		entry("only-local", 1, 0),
	}
	remote := []models.ManifestEntry{
		entry("local-ahead", 3, time.Hour),
		entry("remote-ahead", 7, 0),
		entry("same", 4, 0),
		entry("tie-later-local", 3, 0),
		entry("only-remote", 1, 0),
	}

	got := Compare(remote, local)

	check := func(name string, got, want []string) {
		t.Helper()
		if !slices.Equal(got, want) {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	check("LocalNewer", got.LocalNewer, []string{"local-ahead", "tie-later-local", "only-local"})
	check("RemoteNewer", got.RemoteNewer, []string{"remote-ahead"})
	check("Equal", got.Equal, []string{"same"})
	check("Missing", got.Missing, []string{"only-remote"})
	check("TasksToRequest", got.TasksToRequest(), []string{"only-remote", "remote-ahead"})
	check("TasksToAdvertise", got.TasksToAdvertise(), []string{"local-ahead", "tie-later-local", "only-local"})
}

func TestCompareRemoteDuplicatesFirstWins(t *testing.T) {
	local := []models.ManifestEntry{entry("a", 3, 0)}
	remote := []models.ManifestEntry{entry("a", 3, 0), entry("a", 9, 0)}

	got := Compare(remote, local)
	if !slices.Equal(got.Equal, []string{"a"}) || len(got.RemoteNewer) != 0 || len(got.Missing) != 0 {
		t.Errorf("Compare() = %+v, want a classified Equal from first occurrence", got)
	}
}

func TestCompareEmptyInputs(t *testing.T) {
	got := Compare(nil, nil)
	if len(got.TasksToRequest()) != 0 || len(got.TasksToAdvertise()) != 0 {
		t.Errorf("Compare(nil, nil) = %+v, want empty", got)
	}
}

func TestReconcilerDropsOtherUsers(t *testing.T) {
	r := NewReconciler("alice", "laptop")
	foreign := entry("foreign", 1, 0)
	foreign.UserID = "bob"
	mine := entry("mine", 1, 0)
	mine.UserID = "alice"

	got := r.Compare(context.Background(), []models.ManifestEntry{foreign, mine}, nil)
	if !slices.Equal(got.Missing, []string{"mine"}) {
		t.Errorf("Missing = %v, want [mine]", got.Missing)
	}
}

func TestReconcilerCache(t *testing.T) {
	r := NewReconciler("alice", "laptop")
	ctx := context.Background()
	remote := []models.ManifestEntry{entry("b", 1, 0), entry("a", 1, 0)}
	local := []models.ManifestEntry{entry("a", 1, 0)}

	first := r.Compare(ctx, remote, local)
	key := r.cacheKey

	reordered := []models.ManifestEntry{entry("a", 1, 0), entry("b", 1, 0)}
	_ = r.Compare(ctx, reordered, local)
	if r.cacheKey != key {
		t.Error("reordered remote manifest produced a different cache key")
	}

	local = append(local, entry("c", 1, 0))
	second := r.Compare(ctx, remote, local)
	if r.cacheKey == key {
		t.Error("cache key did not change with the local manifest")
	}
	if slices.Equal(first.LocalNewer, second.LocalNewer) {
		t.Errorf("stale cached result returned: %+v", second)
	}

	r.Invalidate()
	if r.cacheKey != "" {
		t.Error("Invalidate() kept the cache key")
	}
}

func TestReconcilerCacheReturnsCopies(t *testing.T) {
	r := NewReconciler("alice", "laptop")
	ctx := context.Background()
	remote := []models.ManifestEntry{entry("a", 2, 0), entry("b", 1, 0), entry("c", 1, 0)}
	local := []models.ManifestEntry{entry("a", 1, 0), entry("c", 1, 0), entry("d", 1, 0)}

	first := r.Compare(ctx, remote, local)
	first.Missing[0] = "tampered"
	first.RemoteNewer[0] = "tampered"
	first.LocalNewer[0] = "tampered"
	first.Equal[0] = "tampered"

	second := r.Compare(ctx, remote, local)
	second.Missing = append(second.Missing[:0], "appended")

	third := r.Compare(ctx, remote, local)
	want := Result{Missing: []string{"b"}, RemoteNewer: []string{"a"}, LocalNewer: []string{"d"}, Equal: []string{"c"}}
	if !slices.Equal(third.Missing, want.Missing) ||
		!slices.Equal(third.RemoteNewer, want.RemoteNewer) ||
		!slices.Equal(third.LocalNewer, want.LocalNewer) ||
		!slices.Equal(third.Equal, want.Equal) {
		t.Errorf("cached result changed by callers: %+v, want %+v", third, want)
	}
}

type memStore struct {
	tasks map[string]models.Task
	puts  int
	err   error
}

func newMemStore(tasks ...models.Task) *memStore {
	m := &memStore{tasks: map[string]models.Task{}}
	for _, t := range tasks {
		m.tasks[t.ID] = t
	}
	return m
}

func (m *memStore) GetTaskRecord(_ context.Context, id string) (models.Task, error) {
	if m.err != nil {
		return models.Task{}, m.err
	}
	t, ok := m.tasks[id]
	if !ok {
		return models.Task{}, apperrors.ErrTaskNotFound
	}
	return t, nil
}

func (m *memStore) PutTaskRecord(_ context.Context, t models.Task) error {
	m.puts++
	m.tasks[t.ID] = t
	return nil
}

func versioned(id string, version int64, offset time.Duration) models.Task {
	t := models.NewTask(id, "task "+id)
	t.EventVersion = version
	t.UpdatedAt = base.Add(offset)
	return t
}

func TestApplyUpsertLastWriterWins(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		local    *models.Task
		incoming models.Task
		applied  bool
	}{
		{name: "unknown task", local: nil, incoming: versioned("a", 1, 0), applied: true},
		{name: "higher version", local: ptr(versioned("a", 2, time.Hour)), incoming: versioned("a", 3, 0), applied: true},
		{name: "lower version", local: ptr(versioned("a", 4, 0)), incoming: versioned("a", 3, time.Hour), applied: false},
		{name: "same version later timestamp", local: ptr(versioned("a", 4, 0)), incoming: versioned("a", 4, time.Second), applied: true},
		{name: "full tie is stale", local: ptr(versioned("a", 4, 0)), incoming: versioned("a", 4, 0), applied: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			if tt.local != nil {
				store = newMemStore(*tt.local)
			}
			r := NewReconciler("", "laptop")

			applied, err := r.ApplyUpsert(ctx, store, tt.incoming)
			if err != nil {
				t.Fatalf("ApplyUpsert() error = %v", err)
			}
			if applied != tt.applied {
				t.Errorf("ApplyUpsert() applied = %v, want %v", applied, tt.applied)
			}
			if applied && store.tasks["a"].EventVersion != tt.incoming.EventVersion {
				t.Errorf("stored version = %d, want %d", store.tasks["a"].EventVersion, tt.incoming.EventVersion)
			}
		})
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	r := NewReconciler("", "laptop")
	ev := NewEvent(versioned("a", 2, 0))

	for i := 0; i < 3; i++ {
		if _, err := r.Apply(ctx, store, ev); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}
	if store.puts != 1 {
		t.Errorf("duplicate deliveries wrote %d times, want 1", store.puts)
	}
}

func TestApplyDelete(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(versioned("a", 2, 0))
	r := NewReconciler("", "laptop")

	deleted := versioned("a", 3, time.Minute)
	deletedAt := deleted.UpdatedAt
	deleted.DeletedAt = &deletedAt
	ev := NewEvent(deleted)
	if ev.Kind != EventDelete || ev.Task != nil {
		t.Fatalf("NewEvent(deleted) = %+v, want delete event without payload", ev)
	}

	applied, err := r.Apply(ctx, store, ev)
	if err != nil || !applied {
		t.Fatalf("Apply(delete) = %v, %v", applied, err)
	}
	if store.tasks["a"].DeletedAt == nil || store.tasks["a"].Title != "task a" {
		t.Errorf("stored task = %+v, want tombstone keeping local fields", store.tasks["a"])
	}

	// An older upsert arriving late must not resurrect the task.
	applied, err = r.ApplyUpsert(ctx, store, versioned("a", 2, time.Hour))
	if err != nil || applied {
		t.Errorf("late upsert applied = %v, err = %v; want dropped", applied, err)
	}
}

func TestApplyDeleteUnknownCreatesTombstone(t *testing.T) {
	store := newMemStore()
	r := NewReconciler("", "laptop")
	ev := TaskEvent{ID: "e1", Kind: EventDelete, TaskID: "ghost", EventVersion: 5, UpdatedAt: base}

	if applied, err := r.Apply(context.Background(), store, ev); err != nil || !applied {
		t.Fatalf("Apply() = %v, %v", applied, err)
	}
	if got := store.tasks["ghost"]; got.DeletedAt == nil || got.EventVersion != 5 {
		t.Errorf("tombstone = %+v", got)
	}
}

func TestApplyForeignUserDropped(t *testing.T) {
	store := newMemStore()
	r := NewReconciler("alice", "laptop")
	incoming := versioned("a", 1, 0)
	incoming.UserID = "bob"

	applied, err := r.ApplyUpsert(context.Background(), store, incoming)
	if err != nil || applied || store.puts != 0 {
		t.Errorf("ApplyUpsert(foreign) = %v, %v, puts %d; want dropped", applied, err, store.puts)
	}
}

func TestApplyStorageError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("disk full")
	r := NewReconciler("", "laptop")

	if _, err := r.ApplyUpsert(context.Background(), store, versioned("a", 1, 0)); err == nil {
		t.Error("ApplyUpsert() error = nil, want storage error")
	}
}

func TestApplyRejectsMalformedEvents(t *testing.T) {
	upsert := func(task models.Task) TaskEvent {
		return TaskEvent{ID: "e1", Kind: EventUpsert, TaskID: task.ID, Task: &task}
	}

	mismatched := upsert(versioned("a", 1, 0))
	mismatched.TaskID = "b"

	snoozedNoWake := versioned("a", 1, 0)
	snoozedNoWake.Status = models.StatusSnoozed

	untitled := versioned("a", 1, 0)
	untitled.Title = " "

	tests := []struct {
		name string
		ev   TaskEvent
	}{
		{"upsert without task", TaskEvent{Kind: EventUpsert}},
		{"unknown kind", TaskEvent{Kind: "rename"}},
		{"empty task id", upsert(models.Task{})},
		{"task id differs from event", mismatched},
		{"snoozed without next eligible time", upsert(snoozedNoWake)},
		{"blank title", upsert(untitled)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			r := NewReconciler("", "laptop")
			applied, err := r.Apply(context.Background(), store, tt.ev)
			if !errors.Is(err, ErrMalformedEvent) {
				t.Errorf("Apply() error = %v, want ErrMalformedEvent", err)
			}
			if applied || store.puts != 0 || len(store.tasks) != 0 {
				t.Errorf("Apply() applied = %v, puts %d, tasks %d; want nothing stored", applied, store.puts, len(store.tasks))
			}
		})
	}
}

func TestRespond(t *testing.T) {
	r := NewReconciler("alice", "laptop")
	local := []models.Task{versioned("a", 5, 0), versioned("b", 1, 0)}
	msg := ManifestMessage{
		UserID:   "alice",
		DeviceID: "phone",
		Entries:  []models.ManifestEntry{entry("a", 3, 0), entry("b", 2, 0), entry("c", 1, 0)},
	}

	reply := r.Respond(context.Background(), msg, local)
	if want := []string{"c", "b"}; !slices.Equal(reply.Request, want) {
		t.Errorf("Request = %v, want %v", reply.Request, want)
	}
	if len(reply.Events) != 1 || reply.Events[0].TaskID != "a" || reply.Events[0].Task == nil {
		t.Errorf("Events = %+v, want one upsert for a", reply.Events)
	}
}

func TestManifestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync", "manifest.yaml")
	r := NewReconciler("alice", "laptop")
	msg := r.Manifest([]models.Task{versioned("b", 2, 0), versioned("a", 1, 0)}, base)

	if err := SaveManifestFile(path, &msg); err != nil {
		t.Fatalf("SaveManifestFile() error = %v", err)
	}
	got, err := LoadManifestFile(path)
	if err != nil {
		t.Fatalf("LoadManifestFile() error = %v", err)
	}
	if got.DeviceID != "laptop" || len(got.Entries) != 2 || got.Entries[0].TaskID != "a" {
		t.Errorf("LoadManifestFile() = %+v", got)
	}
	if !got.Entries[1].UpdatedAt.Equal(base) {
		t.Errorf("UpdatedAt = %v, want %v", got.Entries[1].UpdatedAt, base)
	}
}

func ptr(t models.Task) *models.Task { return &t }
