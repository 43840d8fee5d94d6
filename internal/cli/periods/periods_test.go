package periods

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/storage/sqlite"

	apperrors "github.com/julianstephens/nextup/internal/errors"
)

func setupTestDB(t *testing.T) *cli.Context {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return &cli.Context{Store: store}
}

func TestPeriodAddCmd(t *testing.T) {
	tests := []struct {
		name    string
		cmd     PeriodAddCmd
		want    models.PeriodDefinition
		wantErr string
	}{
		{
			name: "window",
			cmd:  PeriodAddCmd{ID: "evening", Start: "18:00", End: "22:00", Weekdays: "mon,tue"},
			want: models.PeriodDefinition{ID: "evening", Name: "evening", Start: "18:00", End: "22:00",
				Weekdays: models.WeekdayMaskOf(time.Monday, time.Tuesday)},
		},
		{
			name: "overnight window",
			cmd:  PeriodAddCmd{ID: "night", Name: "Night owl", Start: "22:00", End: "02:00"},
			want: models.PeriodDefinition{ID: "night", Name: "Night owl", Start: "22:00", End: "02:00"},
		},
		{
			name: "all day",
			cmd:  PeriodAddCmd{ID: "weekend", AllDay: true, Weekdays: "weekends"},
			want: models.PeriodDefinition{ID: "weekend", Name: "weekend", AllDay: true,
				Weekdays: models.WeekdayMaskOf(time.Saturday, time.Sunday)},
		},
		{
			name: "off work",
			cmd:  PeriodAddCmd{ID: "home", OffWork: true},
			want: models.PeriodDefinition{ID: "home", Name: "home",
				Alignment: models.AlignWithWorkHours | models.AlignOffWorkRelative},
		},
		{name: "built in", cmd: PeriodAddCmd{ID: "work", AllDay: true}, wantErr: "built-in"},
		{name: "missing times", cmd: PeriodAddCmd{ID: "x", Start: "09:00"}, wantErr: "HH:MM"},
		{name: "bad weekday", cmd: PeriodAddCmd{ID: "x", AllDay: true, Weekdays: "mon,xyz"}, wantErr: "invalid weekday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := setupTestDB(t)
			err := tt.cmd.Run(ctx)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("add failed: %v", err)
			}
			defs, err := ctx.Store.GetPeriodDefinitions(context.Background())
			if err != nil {
				t.Fatalf("GetPeriodDefinitions failed: %v", err)
			}
			if len(defs) != 1 {
				t.Fatalf("expected 1 definition, got %d", len(defs))
			}
			if defs[0] != tt.want {
				t.Errorf("definition = %+v, want %+v", defs[0], tt.want)
			}
		})
	}
}

func TestPeriodListAndDelete(t *testing.T) {
	ctx := setupTestDB(t)
	bg := context.Background()

	if err := (&PeriodAddCmd{ID: "gym", Start: "06:00", End: "08:00"}).Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	task := models.NewTask("t1", "Lift")
	task.Period.DefinitionID = "gym"
	if _, err := ctx.Store.AddTask(bg, task); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	if err := (&PeriodListCmd{}).Run(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if err := (&PeriodDeleteCmd{ID: "gym"}).Run(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	defs, _ := ctx.Store.GetPeriodDefinitions(bg)
	if len(defs) != 0 {
		t.Errorf("expected no definitions, got %d", len(defs))
	}

	err := (&PeriodDeleteCmd{ID: "gym"}).Run(ctx)
	if !errors.Is(err, apperrors.ErrPeriodNotFound) {
		t.Errorf("second delete error = %v, want ErrPeriodNotFound", err)
	}
}

func TestDescribe(t *testing.T) {
	s := models.DefaultSettings()
	s.WorkStart, s.WorkEnd = "09:00", "17:00"

	tests := []struct {
		def  models.PeriodDefinition
		want string
	}{
		{models.PeriodDefinitionAny, "all day, every day"},
		{models.PeriodDefinitionWork, "09:00-17:00, Mon,Tue,Wed,Thu,Fri"},
		{models.PeriodDefinitionOffWork, "outside 09:00-17:00"},
		{models.PeriodDefinition{Start: "18:00", End: "20:00", Weekdays: models.WeekdayMaskOf(time.Sunday)}, "18:00-20:00, Sun"},
	}
	for _, tt := range tests {
		if got := describe(tt.def, s); got != tt.want {
			t.Errorf("describe(%s) = %q, want %q", tt.def.ID, got, tt.want)
		}
	}
}
