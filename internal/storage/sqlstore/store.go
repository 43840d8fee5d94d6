// Package sqlstore implements the storage provider on database/sql. The
// sqlite and postgres packages wrap it with their driver and migrations.
package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/julianstephens/nextup/internal/logger"
	"github.com/julianstephens/nextup/internal/migration"
	"github.com/julianstephens/nextup/internal/models"

	apperrors "github.com/julianstephens/nextup/internal/errors"
)

type Store struct {
	db      *sql.DB
	dialect migration.Dialect
	now     func() time.Time

	mu       sync.RWMutex
	deviceID string
	userID   string
	onWrite  []func(models.Task)
}

func New(dialect migration.Dialect) *Store {
	return &Store{dialect: dialect, now: time.Now}
}

// Attach sets the connection used by every query.
func (s *Store) Attach(db *sql.DB) {
	s.db = db
}

// DB returns the underlying connection, or nil before Init/Load.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetClock replaces the clock used for stamping and auto-resume.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) SetIdentity(deviceID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceID = deviceID
	s.userID = userID
}

// OnLocalWrite registers a hook run after every successful local task write.
func (s *Store) OnLocalWrite(fn func(models.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWrite = append(s.onWrite, fn)
}

func (s *Store) identity() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceID, s.userID
}

func (s *Store) notifyWrite(t models.Task) {
	s.mu.RLock()
	hooks := append([]func(models.Task){}, s.onWrite...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(t)
	}
}

func (s *Store) ready() error {
	if s.db == nil {
		return apperrors.ErrNotInitialized
	}
	return nil
}

// rebind rewrites ? placeholders for the dialect.
func (s *Store) rebind(query string) string {
	if s.dialect != migration.DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func logClose(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logger.Warn("Failed to close rows", "error", err)
	}
}
