// Package lifecycle implements task status transitions.
//
// A task is always in exactly one of three states:
//
//	Active     snoozedUntil, completedAt and nextEligibleAt are nil
//	Snoozed    snoozedUntil and nextEligibleAt set, completedAt nil
//	Completed  completedAt set, snoozedUntil nil
//
// Transitions return modified copies and never touch the input task.
package lifecycle

import (
	"time"

	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/utils"
)

// IsEligible reports whether the task may be picked at now, ignoring periods.
func IsEligible(t models.Task, now time.Time) bool {
	if t.DeletedAt != nil {
		return false
	}
	switch t.Status {
	case models.StatusActive, "":
		return true
	case models.StatusSnoozed, models.StatusCompleted:
		return t.NextEligibleAt != nil && !now.Before(*t.NextEligibleAt)
	default:
		return false
	}
}

// MarkDone completes a task. Repeating tasks become eligible again at their
// next occurrence; one-off tasks stay completed.
func MarkDone(t models.Task, now time.Time) models.Task {
	out := t.Clone()
	done := now
	out.LastDoneAt = &done
	out.CompletedAt = &done
	out.SnoozedUntil = nil
	out.Status = models.StatusCompleted
	out.NextEligibleAt = NextOccurrence(t, now)
	out.CutInLine = models.CutInLineNone
	return out
}

// NextOccurrence returns when a repeating task should next become eligible,
// or nil for one-off tasks.
func NextOccurrence(t models.Task, now time.Time) *time.Time {
	var next time.Time
	switch t.Repeat.Kind {
	case models.RepeatDaily:
		next = utils.NextMidnight(now)
	case models.RepeatWeekly:
		mask := t.Weekdays.OrAll()
		next = utils.NextMidnight(now)
		for i := 0; i < 7 && !mask.Has(next.Weekday()); i++ {
			next = next.AddDate(0, 0, 1)
		}
	case models.RepeatInterval:
		n := t.Repeat.IntervalDays
		if n < 1 {
			n = 1
		}
		next = now.AddDate(0, 0, n)
	default:
		return nil
	}
	return &next
}

// Snooze hides the task until the given instant. Instants in the past are
// moved up to now so nextEligibleAt never precedes the transition.
func Snooze(t models.Task, until, now time.Time) models.Task {
	if until.Before(now) {
		until = now
	}
	out := t.Clone()
	snoozed, eligible := until, until
	out.Status = models.StatusSnoozed
	out.SnoozedUntil = &snoozed
	out.NextEligibleAt = &eligible
	out.CompletedAt = nil
	return out
}

// Resume returns a task to Active and clears the snooze and completion fields.
func Resume(t models.Task) models.Task {
	out := t.Clone()
	out.Status = models.StatusActive
	out.SnoozedUntil = nil
	out.CompletedAt = nil
	out.NextEligibleAt = nil
	return out
}

// AutoResumeDue resumes a snoozed or completed task whose eligibility time
// has passed. The second return value reports whether anything changed.
func AutoResumeDue(t models.Task, now time.Time) (models.Task, bool) {
	if t.Status != models.StatusSnoozed && t.Status != models.StatusCompleted {
		return t, false
	}
	if t.NextEligibleAt == nil || now.Before(*t.NextEligibleAt) {
		return t, false
	}
	return Resume(t), true
}

// ConsumeCutInLine clears a one-shot cut-in-line flag after the task has been
// shown. UntilCompletion stays set until MarkDone.
func ConsumeCutInLine(t models.Task) (models.Task, bool) {
	if t.CutInLine != models.CutInLineOnce {
		return t, false
	}
	out := t.Clone()
	out.CutInLine = models.CutInLineNone
	return out, true
}

// Stamp records a local write for sync: the event version is bumped and the
// owning device and user are updated.
func Stamp(t *models.Task, now time.Time, deviceID, userID string) {
	t.EventVersion++
	t.UpdatedAt = now.UTC()
	if deviceID != "" {
		t.DeviceID = deviceID
	}
	if userID != "" {
		t.UserID = userID
	}
}
