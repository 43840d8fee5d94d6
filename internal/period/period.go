// Package period decides whether a task may be auto-selected at a given time.
//
// Every function here is pure: the evaluator holds an immutable set of period
// definitions and reads a settings snapshot per call.
package period

import (
	"time"

	"github.com/julianstephens/nextup/internal/constants"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/utils"
)

const (
	fallbackWorkStart = 9 * time.Hour
	fallbackWorkEnd   = 17 * time.Hour
)

// Evaluator resolves task period references against user-defined and
// built-in period definitions.
type Evaluator struct {
	defs map[string]models.PeriodDefinition
}

// NewEvaluator builds an evaluator. User definitions are indexed by id; the
// built-in ids cannot be shadowed.
func NewEvaluator(defs []models.PeriodDefinition) *Evaluator {
	e := &Evaluator{defs: make(map[string]models.PeriodDefinition, len(defs)+3)}
	for _, d := range defs {
		if d.ID == "" {
			continue
		}
		e.defs[d.ID] = d
	}
	for _, d := range models.BuiltinPeriods() {
		e.defs[d.ID] = d
	}
	return e
}

// Definition looks up a definition by id.
func (e *Evaluator) Definition(id string) (models.PeriodDefinition, bool) {
	d, ok := e.defs[id]
	return d, ok
}

// Resolve returns the definition governing a task: explicit id, then inline
// ad-hoc window, then the legacy custom window, then the coarse period kind.
func (e *Evaluator) Resolve(task models.Task) models.PeriodDefinition {
	ref := task.Period
	if ref.DefinitionID != "" {
		if d, ok := e.defs[ref.DefinitionID]; ok {
			return d
		}
	}
	if ref.AdHoc != nil && ref.AdHoc.IsSet() {
		return ref.AdHoc.ToDefinition()
	}
	if ref.CustomStart != "" || ref.CustomEnd != "" {
		return models.PeriodDefinition{
			ID:    "custom",
			Name:  "Custom",
			Start: ref.CustomStart,
			End:   ref.CustomEnd,
		}
	}
	return models.BuiltinPeriod(ref.Kind)
}

// TaskAllowed reports whether now falls inside the task's allowed period.
func (e *Evaluator) TaskAllowed(task models.Task, now time.Time, s models.Settings) bool {
	return IsAllowed(e.Resolve(task), now, s)
}

// KindAllowed evaluates one of the coarse built-in periods.
func KindAllowed(kind models.PeriodKind, now time.Time, s models.Settings) bool {
	return IsAllowed(models.BuiltinPeriod(kind), now, s)
}

// IsAllowed evaluates a single definition at now. The caller is expected to
// pass now in the user's timezone.
func IsAllowed(def models.PeriodDefinition, now time.Time, s models.Settings) bool {
	tod := utils.TimeOfDay(now)
	start, end, windowed := effectiveWindow(def, s)

	if !inWeekdayScope(def.Weekdays.OrAll(), now, tod, start, end, windowed) {
		return false
	}

	if def.Alignment.Has(models.AlignOffWorkRelative) {
		ws, we := WorkHours(s)
		return isWeekend(now.Weekday()) || !IsWithinWindow(tod, ws, we)
	}

	if def.AllDay || !windowed {
		return true
	}
	return IsWithinWindow(tod, start, end)
}

// effectiveWindow returns the start/end offsets for def. A definition
// without both boundaries has no window and is treated as all day.
func effectiveWindow(def models.PeriodDefinition, s models.Settings) (start, end time.Duration, ok bool) {
	if def.Alignment.Has(models.AlignWithWorkHours) {
		start, end = WorkHours(s)
		return start, end, true
	}
	if def.Start == "" || def.End == "" {
		return 0, 0, false
	}
	var err error
	if start, err = utils.ParseTimeOfDay(def.Start); err != nil {
		return 0, 0, false
	}
	if end, err = utils.ParseTimeOfDay(def.End); err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// inWeekdayScope checks the weekday mask. For overnight windows the early
// morning tail belongs to the previous day's window.
func inWeekdayScope(mask models.WeekdayMask, now time.Time, tod, start, end time.Duration, windowed bool) bool {
	day := now.Weekday()
	if windowed && start > end && tod < end {
		day = (day + 6) % 7
	}
	return mask.Has(day)
}

func isWeekend(day time.Weekday) bool {
	for _, w := range constants.WeekendDays {
		if day == w {
			return true
		}
	}
	return false
}

// WorkHours returns the configured work window, falling back to 09:00-17:00
// when the settings hold unparseable values.
func WorkHours(s models.Settings) (start, end time.Duration) {
	return utils.MustTimeOfDay(s.WorkStart, fallbackWorkStart), utils.MustTimeOfDay(s.WorkEnd, fallbackWorkEnd)
}

// IsWithinWindow reports whether tod falls in [start, end). Windows with
// start > end wrap past midnight; start == end covers the whole day.
func IsWithinWindow(tod, start, end time.Duration) bool {
	switch {
	case start == end:
		return true
	case start < end:
		return tod >= start && tod < end
	default:
		return tod >= start || tod < end
	}
}

// IsWithinWorkHours reports whether now falls in the configured work window.
func IsWithinWorkHours(now time.Time, s models.Settings) bool {
	start, end := WorkHours(s)
	return IsWithinWindow(utils.TimeOfDay(now), start, end)
}

// UntilNextBoundary returns the time until the work window next opens or
// closes. It is zero when the window covers the full day.
func UntilNextBoundary(now time.Time, s models.Settings) time.Duration {
	start, end := WorkHours(s)
	if start == end {
		return 0
	}
	tod := utils.TimeOfDay(now)
	target := start
	if IsWithinWindow(tod, start, end) {
		target = end
	}
	day := time.Duration(constants.HoursPerDay) * time.Hour
	return ((target-tod)%day + day) % day
}
