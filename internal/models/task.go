package models

import (
	"strings"
	"time"
)

type RepeatKind string

const (
	RepeatNone     RepeatKind = "none"
	RepeatDaily    RepeatKind = "daily"
	RepeatWeekly   RepeatKind = "weekly"
	RepeatInterval RepeatKind = "interval"
)

type TaskStatus string

const (
	StatusActive    TaskStatus = "active"
	StatusSnoozed   TaskStatus = "snoozed"
	StatusCompleted TaskStatus = "completed"
)

type CutInLineMode string

const (
	CutInLineNone            CutInLineMode = "none"
	CutInLineOnce            CutInLineMode = "once"
	CutInLineUntilCompletion CutInLineMode = "until_completion"
)

type TimerMode string

const (
	TimerModeCountdown TimerMode = "countdown"
	TimerModePomodoro  TimerMode = "pomodoro"
)

// WeekdayMask is a bit-set of weekdays where bit n is time.Weekday(n).
// The zero mask means "unset" and is treated as every day by the evaluators.
type WeekdayMask uint8

const AllWeekdays WeekdayMask = 0x7f

// WeekdayMaskOf builds a mask from the given weekdays.
func WeekdayMaskOf(days ...time.Weekday) WeekdayMask {
	var m WeekdayMask
	for _, d := range days {
		m |= 1 << uint(d)
	}
	return m
}

func (m WeekdayMask) Has(day time.Weekday) bool {
	return m&(1<<uint(day)) != 0
}

// OrAll returns the mask, or every day when the mask is unset.
func (m WeekdayMask) OrAll() WeekdayMask {
	if m&AllWeekdays == 0 {
		return AllWeekdays
	}
	return m & AllWeekdays
}

func (m WeekdayMask) Days() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if m.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (m WeekdayMask) String() string {
	if m&AllWeekdays == 0 || m&AllWeekdays == AllWeekdays {
		return "every day"
	}
	var names []string
	for _, d := range m.Days() {
		names = append(names, d.String()[:3])
	}
	return strings.Join(names, ",")
}

type Repeat struct {
	Kind         RepeatKind `json:"kind"`
	IntervalDays int        `json:"interval_days,omitempty"`
}

// TimerOverride replaces the global timer defaults for a single task.
// For pomodoro mode Minutes is the focus length and Cycles the cycle count.
type TimerOverride struct {
	Mode    TimerMode `json:"mode"`
	Minutes int       `json:"minutes,omitempty"`
	Cycles  int       `json:"cycles,omitempty"`
}

// AdHocPeriod is a time window embedded directly on a task.
type AdHocPeriod struct {
	Start     string        `json:"start,omitempty"` // HH:MM format
	End       string        `json:"end,omitempty"`   // HH:MM format
	Weekdays  WeekdayMask   `json:"weekdays,omitempty"`
	AllDay    bool          `json:"all_day,omitempty"`
	Alignment AlignmentMode `json:"alignment,omitempty"`
}

// IsSet reports whether any ad-hoc field is populated.
func (p AdHocPeriod) IsSet() bool {
	return p.Start != "" || p.End != "" || p.Weekdays != 0 || p.AllDay || p.Alignment != AlignNone
}

type PeriodRef struct {
	Kind         PeriodKind   `json:"kind"`
	DefinitionID string       `json:"definition_id,omitempty"`
	AdHoc        *AdHocPeriod `json:"ad_hoc,omitempty"`
	CustomStart  string       `json:"custom_start,omitempty"` // legacy HH:MM window
	CustomEnd    string       `json:"custom_end,omitempty"`
}

type Task struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Description        string         `json:"description,omitempty"`
	Importance         int            `json:"importance"`
	SizePoints         float64        `json:"size_points"`
	Deadline           *time.Time     `json:"deadline,omitempty"`
	Repeat             Repeat         `json:"repeat"`
	Weekdays           WeekdayMask    `json:"weekdays,omitempty"`
	LastDoneAt         *time.Time     `json:"last_done_at,omitempty"`
	Status             TaskStatus     `json:"status"`
	SnoozedUntil       *time.Time     `json:"snoozed_until,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	NextEligibleAt     *time.Time     `json:"next_eligible_at,omitempty"`
	Paused             bool           `json:"paused"`
	AutoShuffleAllowed bool           `json:"auto_shuffle_allowed"`
	Period             PeriodRef      `json:"period"`
	CutInLine          CutInLineMode  `json:"cut_in_line,omitempty"`
	Timer              *TimerOverride `json:"timer,omitempty"`
	EventVersion       int64          `json:"event_version"`
	UpdatedAt          time.Time      `json:"updated_at"`
	UserID             string         `json:"user_id,omitempty"`
	DeviceID           string         `json:"device_id,omitempty"`
	DeletedAt          *time.Time     `json:"deleted_at,omitempty"`
}

// CutsInLine reports whether the task carries an active cut-in-line override.
func (t Task) CutsInLine() bool {
	return t.CutInLine != "" && t.CutInLine != CutInLineNone
}

// Clone returns a deep copy so callers can modify pointer fields freely.
func (t Task) Clone() Task {
	c := t
	c.Deadline = cloneTime(t.Deadline)
	c.LastDoneAt = cloneTime(t.LastDoneAt)
	c.SnoozedUntil = cloneTime(t.SnoozedUntil)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.NextEligibleAt = cloneTime(t.NextEligibleAt)
	c.DeletedAt = cloneTime(t.DeletedAt)
	if t.Period.AdHoc != nil {
		adHoc := *t.Period.AdHoc
		c.Period.AdHoc = &adHoc
	}
	if t.Timer != nil {
		timer := *t.Timer
		c.Timer = &timer
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// NewTask returns a task with the documented defaults applied.
func NewTask(id, title string) Task {
	return Task{
		ID:                 id,
		Title:              title,
		Importance:         3,
		SizePoints:         DefaultSizePoints,
		Repeat:             Repeat{Kind: RepeatNone},
		Status:             StatusActive,
		AutoShuffleAllowed: true,
		Period:             PeriodRef{Kind: PeriodAny},
		CutInLine:          CutInLineNone,
	}
}

const (
	MinSizePoints     = 0.5
	MaxSizePoints     = 13.0
	DefaultSizePoints = 3.0
)
