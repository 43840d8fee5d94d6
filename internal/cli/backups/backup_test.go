package backups

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/julianstephens/nextup/internal/backup"
	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/storage/sqlite"
)

func setupTestDB(t *testing.T) (*cli.Context, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store := sqlite.NewStore(dbPath)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return &cli.Context{Store: store}, dbPath
}

func TestBackupCreateAndList(t *testing.T) {
	ctx, dbPath := setupTestDB(t)

	if err := (&BackupListCmd{}).Run(ctx); err != nil {
		t.Fatalf("list with no backups failed: %v", err)
	}
	if err := (&BackupCreateCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup create failed: %v", err)
	}

	backups, err := backup.NewManager(dbPath).List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected 1 backup, got %d", len(backups))
	}
	if err := (&BackupListCmd{}).Run(ctx); err != nil {
		t.Errorf("backup list failed: %v", err)
	}
}

func TestBackupRestore(t *testing.T) {
	ctx, dbPath := setupTestDB(t)
	bg := context.Background()

	if _, err := ctx.Store.AddTask(bg, models.NewTask("keep", "Kept")); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	backupPath, err := backup.NewManager(dbPath).Create(bg)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := ctx.Store.AddTask(bg, models.NewTask("later", "Added later")); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	cmd := &BackupRestoreCmd{BackupFile: filepath.Base(backupPath), Yes: true}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	restored := sqlite.NewStore(dbPath)
	if err := restored.Load(bg); err != nil {
		t.Fatalf("Load after restore failed: %v", err)
	}
	defer restored.Close()

	tasks, err := restored.GetTasks(bg)
	if err != nil {
		t.Fatalf("GetTasks failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "keep" {
		t.Errorf("restored tasks = %+v, want only keep", tasks)
	}
}

func TestBackupRestore_Declined(t *testing.T) {
	ctx, dbPath := setupTestDB(t)
	backupPath, err := backup.NewManager(dbPath).Create(context.Background())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	cmd := &BackupRestoreCmd{BackupFile: backupPath, in: strings.NewReader("n\n")}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("declined restore should not fail: %v", err)
	}
	// The store stays open when the prompt is declined.
	if _, err := ctx.Store.GetTasks(context.Background()); err != nil {
		t.Errorf("store unusable after declined restore: %v", err)
	}
}

func TestBackupRestore_Missing(t *testing.T) {
	ctx, _ := setupTestDB(t)

	err := (&BackupRestoreCmd{BackupFile: "nextup-19990101-0000.db", Yes: true}).Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want backup not found", err)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"yes", true},
	}
	for _, tt := range tests {
		got, err := confirm(strings.NewReader(tt.input), "")
		if err != nil {
			t.Errorf("confirm(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
