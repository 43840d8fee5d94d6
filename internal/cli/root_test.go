package cli

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/nextup/internal/config"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/storage/sqlite"

	apperrors "github.com/julianstephens/nextup/internal/errors"
)

func setupTestContext(t *testing.T) *Context {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return &Context{Store: store}
}

func TestParseWeekdays(t *testing.T) {
	weekdays := models.WeekdayMaskOf(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
	tests := []struct {
		input   string
		want    models.WeekdayMask
		wantErr bool
	}{
		{"", 0, false},
		{"mon", models.WeekdayMaskOf(time.Monday), false},
		{"Mon, wed ,FRIDAY", models.WeekdayMaskOf(time.Monday, time.Wednesday, time.Friday), false},
		{"0,6", models.WeekdayMaskOf(time.Sunday, time.Saturday), false},
		{"weekdays", weekdays, false},
		{"weekends", models.WeekdayMaskOf(time.Saturday, time.Sunday), false},
		{"all", models.AllWeekdays, false},
		{"mon,mon", models.WeekdayMaskOf(time.Monday), false},
		{"7", 0, true},
		{"mon,someday", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseWeekdays(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWeekdays(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseWeekdays(%q) = %07b, want %07b", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseWhen(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	now := time.Date(2025, 3, 10, 14, 30, 0, 0, loc)

	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"90m", now.Add(90 * time.Minute), false},
		{"16:00", time.Date(2025, 3, 10, 16, 0, 0, 0, loc), false},
		{"09:00", time.Date(2025, 3, 11, 9, 0, 0, 0, loc), false},
		{"tomorrow", time.Date(2025, 3, 11, 0, 0, 0, 0, loc), false},
		{"2025-03-20", time.Date(2025, 3, 20, 0, 0, 0, 0, loc), false},
		{"2025-03-20 18:45", time.Date(2025, 3, 20, 18, 45, 0, 0, loc), false},
		{"2025-03-20T10:00:00Z", time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC), false},
		{"-1h", time.Time{}, true},
		{"", time.Time{}, true},
		{"next week", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseWhen(tt.input, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWhen(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseWhen(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatRepeat(t *testing.T) {
	tests := []struct {
		repeat models.Repeat
		want   string
	}{
		{models.Repeat{Kind: models.RepeatNone}, "once"},
		{models.Repeat{}, "once"},
		{models.Repeat{Kind: models.RepeatDaily}, "daily"},
		{models.Repeat{Kind: models.RepeatWeekly}, "weekly"},
		{models.Repeat{Kind: models.RepeatInterval, IntervalDays: 1}, "every day"},
		{models.Repeat{Kind: models.RepeatInterval, IntervalDays: 3}, "every 3 days"},
		{models.Repeat{Kind: "yearly"}, "unknown"},
	}
	for _, tt := range tests {
		if got := FormatRepeat(tt.repeat); got != tt.want {
			t.Errorf("FormatRepeat(%+v) = %q, want %q", tt.repeat, got, tt.want)
		}
	}
}

func TestFindTask(t *testing.T) {
	ctx := setupTestContext(t)
	bg := context.Background()

	for _, id := range []string{"abc-111", "abc-222", "xyz-333"} {
		if _, err := ctx.Store.AddTask(bg, models.NewTask(id, "task "+id)); err != nil {
			t.Fatalf("AddTask failed: %v", err)
		}
	}
	if err := ctx.Store.DeleteTask(bg, "xyz-333"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}

	if got, err := ctx.FindTask(bg, "abc-111"); err != nil || got.ID != "abc-111" {
		t.Errorf("exact match = %v, %v", got.ID, err)
	}
	if got, err := ctx.FindTask(bg, "abc-2"); err != nil || got.ID != "abc-222" {
		t.Errorf("prefix match = %v, %v", got.ID, err)
	}
	if _, err := ctx.FindTask(bg, "abc"); err == nil {
		t.Error("expected ambiguous prefix to fail")
	}
	if _, err := ctx.FindTask(bg, "xyz"); !errors.Is(err, apperrors.ErrTaskNotFound) {
		t.Errorf("deleted task lookup error = %v, want ErrTaskNotFound", err)
	}
	if got, err := ctx.FindDeletedTask(bg, "xyz"); err != nil || got.ID != "xyz-333" {
		t.Errorf("deleted lookup = %v, %v", got.ID, err)
	}
	if _, err := ctx.FindDeletedTask(bg, "abc-111"); err == nil {
		t.Error("live task should not be found among deleted tasks")
	}
}

func TestSettingsTimezoneOverride(t *testing.T) {
	ctx := setupTestContext(t)
	bg := context.Background()

	s, err := ctx.Settings(bg)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	s.Timezone = "America/New_York"
	if err := ctx.Store.SaveSettings(bg, s); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	got, _ := ctx.Settings(bg)
	if got.Timezone != "America/New_York" {
		t.Errorf("timezone = %q, want stored value", got.Timezone)
	}

	ctx.Config = config.Config{Timezone: "Europe/Berlin"}
	got, _ = ctx.Settings(bg)
	if got.Timezone != "Europe/Berlin" {
		t.Errorf("timezone = %q, want device override", got.Timezone)
	}

	ds := deviceStore{Provider: ctx.Store, timezone: "Europe/Berlin"}
	fromStore, err := ds.GetSettings(bg)
	if err != nil || fromStore.Timezone != "Europe/Berlin" {
		t.Errorf("deviceStore timezone = %q, %v", fromStore.Timezone, err)
	}

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx.Clock = func() time.Time { return fixed }
	if now := ctx.Now(got); now.Location().String() != "Europe/Berlin" || !now.Equal(fixed) {
		t.Errorf("Now = %v", now)
	}
}

func TestIsSQLite(t *testing.T) {
	ctx := setupTestContext(t)
	if !ctx.IsSQLite() {
		t.Error("sqlite store should report IsSQLite")
	}
	ctx.PerformAutomaticBackup(context.Background())
}
