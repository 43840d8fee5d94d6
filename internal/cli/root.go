package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/nextup/internal/backup"
	"github.com/julianstephens/nextup/internal/config"
	"github.com/julianstephens/nextup/internal/constants"
	"github.com/julianstephens/nextup/internal/coordinator"
	"github.com/julianstephens/nextup/internal/logger"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/notifier"
	"github.com/julianstephens/nextup/internal/period"
	"github.com/julianstephens/nextup/internal/selector"
	"github.com/julianstephens/nextup/internal/storage"
	"github.com/julianstephens/nextup/internal/utils"

	apperrors "github.com/julianstephens/nextup/internal/errors"
)

type Context struct {
	Store      storage.Provider
	Config     config.Config
	ConfigFile string

	// Clock is nil outside tests.
	Clock func() time.Time
}

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	TitleStyle   = lipgloss.NewStyle().Bold(true)
)

// Success renders a confirmation line.
func Success(format string, args ...any) string {
	return SuccessStyle.Render("✓ " + fmt.Sprintf(format, args...))
}

// Warning renders a warning line.
func Warning(format string, args ...any) string {
	return WarnStyle.Render("⚠ " + fmt.Sprintf(format, args...))
}

// Settings loads the stored settings with defaults applied. A timezone set
// in the device config takes precedence over the stored one.
func (c *Context) Settings(ctx context.Context) (models.Settings, error) {
	s, err := c.Store.GetSettings(ctx)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	models.ApplyDefaultSettings(&s)
	if c.Config.Timezone != "" {
		s.Timezone = c.Config.Timezone
	}
	return s, nil
}

// Now returns the current time in the effective timezone.
func (c *Context) Now(s models.Settings) time.Time {
	now := time.Now()
	if c.Clock != nil {
		now = c.Clock()
	}
	return utils.InTimezone(now, s.Timezone)
}

// Selector builds a selector over the stored period definitions.
func (c *Context) Selector(ctx context.Context) (*selector.Selector, error) {
	defs, err := c.Store.GetPeriodDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load period definitions: %w", err)
	}
	return selector.New(period.NewEvaluator(defs)), nil
}

// Coordinator wires a shuffle coordinator to the store, the tray notifier
// and a fresh selector.
func (c *Context) Coordinator(ctx context.Context, opts ...coordinator.Option) (*coordinator.Coordinator, error) {
	sel, err := c.Selector(ctx)
	if err != nil {
		return nil, err
	}
	if c.Clock != nil {
		opts = append([]coordinator.Option{coordinator.WithClock(fixedClock{c.Clock})}, opts...)
	}
	coord := coordinator.New(deviceStore{Provider: c.Store, timezone: c.Config.Timezone}, notifier.New(), sel, opts...)
	// Loads settings so the coordinator's clock uses the right timezone
	// before Start.
	coord.Refresh(ctx)
	return coord, nil
}

// deviceStore applies the device timezone override to settings reads so
// the coordinator and the CLI agree on the local day.
type deviceStore struct {
	storage.Provider
	timezone string
}

func (d deviceStore) GetSettings(ctx context.Context) (models.Settings, error) {
	s, err := d.Provider.GetSettings(ctx)
	if err != nil {
		return s, err
	}
	if d.timezone != "" {
		s.Timezone = d.timezone
	}
	return s, nil
}

type fixedClock struct {
	now func() time.Time
}

func (f fixedClock) Now() time.Time { return f.now() }

func (f fixedClock) AfterFunc(d time.Duration, fn func()) coordinator.Timer {
	return time.AfterFunc(d, fn)
}

// PerformAutomaticBackup creates an automatic backup and silently handles errors
func (c *Context) PerformAutomaticBackup(ctx context.Context) {
	if !c.IsSQLite() {
		return
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if _, err := mgr.Create(ctx); err != nil {
		// Log warning but don't interrupt user workflow
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// IsSQLite reports whether the store is a local file.
func (c *Context) IsSQLite() bool {
	return c.Store.GetConfigPath() != "postgresql"
}

// FindTask resolves a task by full id or by a unique id prefix.
func (c *Context) FindTask(ctx context.Context, ref string) (models.Task, error) {
	return findTask(ctx, c.Store, ref, false)
}

// FindDeletedTask is FindTask over soft-deleted tasks.
func (c *Context) FindDeletedTask(ctx context.Context, ref string) (models.Task, error) {
	return findTask(ctx, c.Store, ref, true)
}

func findTask(ctx context.Context, store storage.Provider, ref string, deleted bool) (models.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Task{}, errors.New("task id is required")
	}

	var tasks []models.Task
	var err error
	if deleted {
		tasks, err = store.GetAllTasksIncludingDeleted(ctx)
	} else {
		tasks, err = store.GetTasks(ctx)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to get tasks: %w", err)
	}

	var matches []models.Task
	for _, t := range tasks {
		if deleted != (t.DeletedAt != nil) {
			continue
		}
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return models.Task{}, fmt.Errorf("%w: %s", apperrors.ErrTaskNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return models.Task{}, fmt.Errorf("task id %q is ambiguous (%d matches)", ref, len(matches))
	}
}

// ParseWeekdays parses a comma-separated list of weekdays
func ParseWeekdays(s string) (models.WeekdayMask, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "":
		return 0, nil
	case "all", "daily", "everyday":
		return models.AllWeekdays, nil
	case "weekdays":
		return models.WeekdayMaskOf(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday), nil
	case "weekends":
		return models.WeekdayMaskOf(time.Saturday, time.Sunday), nil
	}

	dayMap := map[string]time.Weekday{
		"sun":       time.Sunday,
		"sunday":    time.Sunday,
		"mon":       time.Monday,
		"monday":    time.Monday,
		"tue":       time.Tuesday,
		"tuesday":   time.Tuesday,
		"wed":       time.Wednesday,
		"wednesday": time.Wednesday,
		"thu":       time.Thursday,
		"thursday":  time.Thursday,
		"fri":       time.Friday,
		"friday":    time.Friday,
		"sat":       time.Saturday,
		"saturday":  time.Saturday,
	}

	var mask models.WeekdayMask
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if wd, ok := dayMap[part]; ok {
			mask |= models.WeekdayMaskOf(wd)
			continue
		}
		// Try parsing as number (0=Sunday, 6=Saturday)
		num, err := strconv.Atoi(part)
		if err != nil || num < 0 || num > 6 {
			return 0, fmt.Errorf("invalid weekday: %s", part)
		}
		mask |= models.WeekdayMaskOf(time.Weekday(num))
	}
	return mask, nil
}

// FormatRepeat formats a repeat rule into a human-readable string
func FormatRepeat(r models.Repeat) string {
	switch r.Kind {
	case models.RepeatDaily:
		return "daily"
	case models.RepeatWeekly:
		return "weekly"
	case models.RepeatInterval:
		if r.IntervalDays == 1 {
			return "every day"
		}
		return fmt.Sprintf("every %d days", r.IntervalDays)
	case models.RepeatNone, "":
		return "once"
	default:
		return "unknown"
	}
}

// ParseWhen reads a point in time relative to now: a Go duration ("90m",
// "2h"), a date (YYYY-MM-DD, start of day), a date and time
// ("YYYY-MM-DD HH:MM"), a time of day (HH:MM, next occurrence) or RFC 3339.
func ParseWhen(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("time value is required")
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return time.Time{}, fmt.Errorf("duration %q must be positive", s)
		}
		return now.Add(d), nil
	}
	if s == "tomorrow" {
		return utils.NextMidnight(now), nil
	}
	if tod, err := utils.ParseTimeOfDay(s); err == nil {
		return utils.NextOccurrence(now, tod), nil
	}
	if t, err := time.ParseInLocation(constants.DateFormat, s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(constants.DateFormat+" "+constants.TimeFormat, s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(now.Location()), nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (use a duration, HH:MM, YYYY-MM-DD, \"YYYY-MM-DD HH:MM\" or RFC 3339)", s)
}

// ShortID trims a uuid for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
