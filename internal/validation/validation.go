package validation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/julianstephens/nextup/internal/constants"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/utils"
)

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictInvalidTask        ConflictType = "invalid_task"
	ConflictDuplicateTaskTitle ConflictType = "duplicate_task_title"
	ConflictUnknownPeriod      ConflictType = "unknown_period"
	ConflictOutOfRange         ConflictType = "out_of_range"
	ConflictInvalidTime        ConflictType = "invalid_time"
	ConflictInvalidTimezone    ConflictType = "invalid_timezone"
	ConflictGapOrder           ConflictType = "gap_order"
)

// Conflict represents a detected problem in tasks or settings
type Conflict struct {
	Type        ConflictType
	Description string
	Field       string   // settings key (if applicable)
	TaskIDs     []string // IDs of tasks involved
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, conflict := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s\n", conflict.Description)
	}
	return b.String()
}

// Validator validates tasks against each other and the known periods
type Validator struct {
	periods map[string]bool
}

// New creates a new Validator. Built-in period ids are always known.
func New(defs []models.PeriodDefinition) *Validator {
	v := &Validator{periods: make(map[string]bool)}
	for _, d := range models.BuiltinPeriods() {
		v.periods[d.ID] = true
	}
	for _, d := range defs {
		v.periods[d.ID] = true
	}
	return v
}

// ValidateTasks checks every live task and reports duplicates and dangling
// period references.
func (v *Validator) ValidateTasks(tasks []models.Task) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}

	titles := make(map[string][]string)
	for _, task := range tasks {
		if task.DeletedAt != nil {
			continue // Skip deleted tasks
		}

		if err := ValidateTask(task); err != nil {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictInvalidTask,
				Description: fmt.Sprintf("Task %q is invalid: %v", task.Title, err),
				TaskIDs:     []string{task.ID},
			})
		}

		if id := task.Period.DefinitionID; id != "" && !v.periods[id] {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictUnknownPeriod,
				Description: fmt.Sprintf("Task %q references unknown period %q", task.Title, id),
				TaskIDs:     []string{task.ID},
			})
		}

		if title := strings.TrimSpace(task.Title); title != "" {
			key := strings.ToLower(title)
			titles[key] = append(titles[key], task.ID)
		}
	}

	keys := make([]string, 0, len(titles))
	for k := range titles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if ids := titles[k]; len(ids) > 1 {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictDuplicateTaskTitle,
				Description: fmt.Sprintf("Duplicate task title: %q (IDs: %v)", k, ids),
				TaskIDs:     ids,
			})
		}
	}

	return result
}

// ValidateTask enforces the field ranges and status invariants of a single
// task. All problems are joined into one error.
func ValidateTask(task models.Task) error {
	var errs []error

	if task.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(task.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if task.Importance < 1 || task.Importance > 5 {
		errs = append(errs, fmt.Errorf("importance %d is outside 1..5", task.Importance))
	}
	if math.IsNaN(task.SizePoints) || task.SizePoints < models.MinSizePoints || task.SizePoints > models.MaxSizePoints {
		errs = append(errs, fmt.Errorf("size %g is outside %g..%g", task.SizePoints, models.MinSizePoints, models.MaxSizePoints))
	}

	switch task.Repeat.Kind {
	case models.RepeatNone, models.RepeatDaily, models.RepeatWeekly, "":
	case models.RepeatInterval:
		if task.Repeat.IntervalDays < 1 {
			errs = append(errs, errors.New("interval repeat needs at least 1 day"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown repeat kind %q", task.Repeat.Kind))
	}

	switch task.CutInLine {
	case models.CutInLineNone, models.CutInLineOnce, models.CutInLineUntilCompletion, "":
	default:
		errs = append(errs, fmt.Errorf("unknown cut-in-line mode %q", task.CutInLine))
	}

	errs = append(errs, statusErrors(task)...)
	errs = append(errs, periodErrors(task.Period)...)

	if o := task.Timer; o != nil {
		if o.Mode != "" && o.Mode != models.TimerModeCountdown && o.Mode != models.TimerModePomodoro {
			errs = append(errs, fmt.Errorf("unknown timer mode %q", o.Mode))
		}
		if o.Minutes < 0 || o.Cycles < 0 {
			errs = append(errs, errors.New("timer override values must not be negative"))
		}
	}

	return errors.Join(errs...)
}

func statusErrors(task models.Task) []error {
	var errs []error
	switch task.Status {
	case models.StatusActive, "":
		if task.SnoozedUntil != nil || task.CompletedAt != nil || task.NextEligibleAt != nil {
			errs = append(errs, errors.New("active task must not carry snooze or completion times"))
		}
	case models.StatusSnoozed:
		if task.SnoozedUntil == nil || task.NextEligibleAt == nil {
			errs = append(errs, errors.New("snoozed task needs snoozed_until and next_eligible_at"))
		}
		if task.CompletedAt != nil {
			errs = append(errs, errors.New("snoozed task must not have completed_at"))
		}
	case models.StatusCompleted:
		if task.CompletedAt == nil {
			errs = append(errs, errors.New("completed task needs completed_at"))
		}
		if task.SnoozedUntil != nil {
			errs = append(errs, errors.New("completed task must not have snoozed_until"))
		}
		if task.CompletedAt != nil && task.NextEligibleAt != nil && task.NextEligibleAt.Before(*task.CompletedAt) {
			errs = append(errs, errors.New("next_eligible_at precedes completed_at"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown status %q", task.Status))
	}
	return errs
}

func periodErrors(ref models.PeriodRef) []error {
	var errs []error
	switch ref.Kind {
	case models.PeriodAny, models.PeriodWork, models.PeriodOffWork, "":
	default:
		errs = append(errs, fmt.Errorf("unknown period kind %q", ref.Kind))
	}

	check := func(name, value string) {
		if value != "" && !utils.ValidateTimeFormat(value) {
			errs = append(errs, fmt.Errorf("invalid %s time: %s", name, value))
		}
	}
	check("custom_start", ref.CustomStart)
	check("custom_end", ref.CustomEnd)
	if (ref.CustomStart == "") != (ref.CustomEnd == "") {
		errs = append(errs, errors.New("custom window needs both start and end"))
	}
	if ref.AdHoc != nil {
		check("ad-hoc start", ref.AdHoc.Start)
		check("ad-hoc end", ref.AdHoc.End)
	}
	return errs
}

// ValidatePeriodDefinition checks a user-defined period before it is saved.
func ValidatePeriodDefinition(def models.PeriodDefinition) error {
	var errs []error
	if def.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if def.Builtin {
		errs = append(errs, fmt.Errorf("period %q is built in", def.ID))
	}
	if !def.AllDay && !def.Alignment.Has(models.AlignWithWorkHours) {
		if !utils.ValidateTimeFormat(def.Start) || !utils.ValidateTimeFormat(def.End) {
			errs = append(errs, fmt.Errorf("period needs HH:MM start and end, got %q-%q", def.Start, def.End))
		}
	}
	return errors.Join(errs...)
}

// ValidateSettings reports knobs outside their documented ranges. The
// engines sanitize these values, so conflicts are informational.
func ValidateSettings(s models.Settings) []Conflict {
	var conflicts []Conflict

	ranged := func(key string, value, lo, hi float64) {
		if math.IsNaN(value) || math.IsInf(value, 0) || value < lo || value > hi {
			conflicts = append(conflicts, Conflict{
				Type:        ConflictOutOfRange,
				Field:       key,
				Description: fmt.Sprintf("%s = %g is outside %g..%g and will fall back to its default", key, value, lo, hi),
			})
		}
	}
	ranged(constants.SettingImportanceWeight, s.ImportanceWeight, 0, constants.MaxPointPool)
	ranged(constants.SettingUrgencyWeight, s.UrgencyWeight, 0, constants.MaxPointPool)
	ranged(constants.SettingUrgencyDeadlineShare, s.UrgencyDeadlineShare, 0, constants.MaxDeadlineShare)
	ranged(constants.SettingRepeatPenalty, s.RepeatPenalty, 0, constants.MaxRepeatPenalty)
	ranged(constants.SettingSizeBiasStrength, s.SizeBiasStrength, 0, constants.MaxSizeBiasStrength)
	ranged(constants.SettingStreakBias, s.StreakBias, 0, constants.MaxStreakBias)

	positive := func(key string, value int) {
		if value <= 0 {
			conflicts = append(conflicts, Conflict{
				Type:        ConflictOutOfRange,
				Field:       key,
				Description: fmt.Sprintf("%s = %d must be positive", key, value),
			})
		}
	}
	positive(constants.SettingMinGapMinutes, s.MinGapMinutes)
	positive(constants.SettingMaxGapMinutes, s.MaxGapMinutes)
	positive(constants.SettingDefaultTimerMinutes, s.DefaultTimerMinutes)
	positive(constants.SettingPomodoroFocusMinutes, s.PomodoroFocusMinutes)
	positive(constants.SettingPomodoroCycles, s.PomodoroCycles)

	if s.PomodoroBreakMinutes < 0 {
		conflicts = append(conflicts, Conflict{
			Type:        ConflictOutOfRange,
			Field:       constants.SettingPomodoroBreakMinutes,
			Description: fmt.Sprintf("%s = %d must not be negative", constants.SettingPomodoroBreakMinutes, s.PomodoroBreakMinutes),
		})
	}
	if s.MaxDailyShuffles < 0 {
		conflicts = append(conflicts, Conflict{
			Type:        ConflictOutOfRange,
			Field:       constants.SettingMaxDailyShuffles,
			Description: fmt.Sprintf("%s = %d must not be negative (0 means unlimited)", constants.SettingMaxDailyShuffles, s.MaxDailyShuffles),
		})
	}
	if s.MinGapMinutes > 0 && s.MaxGapMinutes > 0 && s.MaxGapMinutes < s.MinGapMinutes {
		conflicts = append(conflicts, Conflict{
			Type:        ConflictGapOrder,
			Field:       constants.SettingMaxGapMinutes,
			Description: fmt.Sprintf("max gap %d is below min gap %d", s.MaxGapMinutes, s.MinGapMinutes),
		})
	}

	for key, value := range map[string]string{
		constants.SettingQuietHoursStart: s.QuietHoursStart,
		constants.SettingQuietHoursEnd:   s.QuietHoursEnd,
		constants.SettingWorkStart:       s.WorkStart,
		constants.SettingWorkEnd:         s.WorkEnd,
	} {
		if !utils.ValidateTimeFormat(value) {
			conflicts = append(conflicts, Conflict{
				Type:        ConflictInvalidTime,
				Field:       key,
				Description: fmt.Sprintf("%s = %q is not a valid HH:MM time", key, value),
			})
		}
	}

	if !utils.ValidateTimezone(s.Timezone) {
		conflicts = append(conflicts, Conflict{
			Type:        ConflictInvalidTimezone,
			Field:       constants.SettingTimezone,
			Description: fmt.Sprintf("timezone %q is not a known IANA zone", s.Timezone),
		})
	}

	sort.SliceStable(conflicts, func(i, j int) bool { return conflicts[i].Field < conflicts[j].Field })
	return conflicts
}
