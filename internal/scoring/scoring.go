// Package scoring computes the priority score used to rank tasks.
package scoring

import (
	"math"
	"time"

	"github.com/julianstephens/nextup/internal/constants"
	"github.com/julianstephens/nextup/internal/models"
)

const (
	noDeadlineUrgency   = 0.05
	baseWindowHours     = 72.0
	minWindowHours      = 24.0
	maxWindowHours      = 168.0
	maxOverdueBoost     = 0.5
	overdueBoostPerDay  = 0.25
	minSizeMultiplier   = 0.8
	maxSizeMultiplier   = 1.2
	streakCapDays       = 7.0
	weeklyOffDayUrgency = 0.2
)

// Breakdown holds every component of a task's score.
type Breakdown struct {
	ImportancePoints    float64 `json:"importance_points"`
	DeadlinePoints      float64 `json:"deadline_points"`
	RepeatPoints        float64 `json:"repeat_points"`
	SizeMultiplier      float64 `json:"size_multiplier"`
	Combined            float64 `json:"combined"`
	DeadlineUrgency     float64 `json:"deadline_urgency"`
	RepeatUrgency       float64 `json:"repeat_urgency"`
	DeadlineWindowHours float64 `json:"deadline_window_hours"`
}

// Score is pure and never fails: out-of-range settings and task fields are
// sanitized before use.
func Score(task models.Task, now time.Time, s models.Settings) Breakdown {
	k := sanitize(s)
	size := NormalizeSize(task.SizePoints)

	var b Breakdown
	importanceNorm := (clamp(float64(task.Importance), 1, 5) - 1) / 4
	b.ImportancePoints = importanceNorm * k.importanceWeight

	b.DeadlineWindowHours = DeadlineWindowHours(size)
	b.DeadlineUrgency = deadlineUrgency(task.Deadline, now, b.DeadlineWindowHours)
	b.RepeatUrgency = repeatUrgency(task, now, k.streakBias)

	b.DeadlinePoints = b.DeadlineUrgency * k.urgencyWeight * k.deadlineShare
	b.RepeatPoints = b.RepeatUrgency * k.urgencyWeight * (1 - k.deadlineShare) * k.repeatPenalty

	b.SizeMultiplier = clamp(1+k.sizeBias*(size/3-1), minSizeMultiplier, maxSizeMultiplier)
	b.Combined = (b.ImportancePoints + b.DeadlinePoints + b.RepeatPoints) * b.SizeMultiplier
	return b
}

// NormalizeSize clamps size points into [0.5, 13], substituting the default
// for non-positive or non-finite values.
func NormalizeSize(size float64) float64 {
	if !finite(size) || size <= 0 {
		size = models.DefaultSizePoints
	}
	return clamp(size, models.MinSizePoints, models.MaxSizePoints)
}

// DeadlineWindowHours is the lead time over which deadline urgency ramps up.
// Larger tasks start feeling urgent earlier.
func DeadlineWindowHours(size float64) float64 {
	return clamp(baseWindowHours*size/3, minWindowHours, maxWindowHours)
}

func deadlineUrgency(deadline *time.Time, now time.Time, windowHours float64) float64 {
	if deadline == nil {
		return noDeadlineUrgency
	}
	hours := deadline.Sub(now).Hours()
	if hours >= 0 {
		return 1 - clamp(hours/windowHours, 0, 1)
	}
	overdue := -hours
	return 1 + math.Min(maxOverdueBoost, overdue/24*overdueBoostPerDay)
}

func repeatUrgency(task models.Task, now time.Time, streakBias float64) float64 {
	var (
		urgency   float64
		daysSince = streakCapDays
	)
	if task.LastDoneAt != nil {
		daysSince = math.Max(0, now.Sub(*task.LastDoneAt).Hours()/24)
	}

	switch task.Repeat.Kind {
	case models.RepeatDaily:
		if task.LastDoneAt == nil {
			urgency = 0.6
		} else {
			urgency = math.Min(1, daysSince)
		}
	case models.RepeatWeekly:
		switch {
		case !task.Weekdays.OrAll().Has(now.Weekday()):
			urgency = weeklyOffDayUrgency
		case task.LastDoneAt == nil:
			urgency = 0.7
		default:
			urgency = math.Min(1, daysSince/7)
		}
	case models.RepeatInterval:
		n := float64(task.Repeat.IntervalDays)
		if n < 1 {
			n = 1
		}
		switch {
		case task.LastDoneAt == nil:
			urgency = 0.5
		case daysSince <= n:
			urgency = math.Min(0.6, daysSince/n*0.6)
		default:
			urgency = 0.6 + math.Min(0.4, (daysSince-n)/n*0.4)
		}
	default:
		return 0
	}

	urgency *= 1 + streakBias*math.Min(streakCapDays, daysSince)/streakCapDays
	return math.Min(1, urgency)
}

type knobs struct {
	importanceWeight float64
	urgencyWeight    float64
	deadlineShare    float64 // fraction in [0,1]
	repeatPenalty    float64
	sizeBias         float64
	streakBias       float64
}

func sanitize(s models.Settings) knobs {
	return knobs{
		importanceWeight: bounded(s.ImportanceWeight, 0, constants.MaxPointPool, constants.DefaultImportanceWeight),
		urgencyWeight:    bounded(s.UrgencyWeight, 0, constants.MaxPointPool, constants.DefaultUrgencyWeight),
		deadlineShare:    bounded(s.UrgencyDeadlineShare, 0, constants.MaxDeadlineShare, constants.DefaultUrgencyDeadlineShare) / 100,
		repeatPenalty:    bounded(s.RepeatPenalty, 0, constants.MaxRepeatPenalty, constants.DefaultRepeatPenalty),
		sizeBias:         bounded(s.SizeBiasStrength, 0, constants.MaxSizeBiasStrength, constants.DefaultSizeBiasStrength),
		streakBias:       bounded(s.StreakBias, 0, constants.MaxStreakBias, constants.DefaultStreakBias),
	}
}

// bounded falls back to def for NaN, infinities and negatives, and clamps the
// rest into [lo, hi].
func bounded(v, lo, hi, def float64) float64 {
	if !finite(v) || v < 0 {
		return def
	}
	return clamp(v, lo, hi)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
