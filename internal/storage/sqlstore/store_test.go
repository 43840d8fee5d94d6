package sqlstore

import (
	"testing"

	"github.com/julianstephens/nextup/internal/migration"
)

func TestRebind(t *testing.T) {
	query := "UPDATE t SET a = ?, b = ? WHERE id = ?"

	if got := New(migration.DialectSQLite).rebind(query); got != query {
		t.Errorf("sqlite rebind = %q", got)
	}
	want := "UPDATE t SET a = $1, b = $2 WHERE id = $3"
	if got := New(migration.DialectPostgres).rebind(query); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestNotInitialized(t *testing.T) {
	s := New(migration.DialectSQLite)
	if _, err := s.GetTasks(t.Context()); err == nil {
		t.Error("GetTasks() without a database succeeded")
	}
	if _, err := s.GetState(t.Context()); err == nil {
		t.Error("GetState() without a database succeeded")
	}
}
