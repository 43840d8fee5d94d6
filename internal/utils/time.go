package utils

import (
	"fmt"
	"time"

	"github.com/julianstephens/nextup/internal/constants"
)

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// InTimezone converts t to the named timezone, falling back to the system
// timezone when the name cannot be loaded.
func InTimezone(t time.Time, timezone string) time.Time {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return t.In(time.Local)
	}
	return t.In(loc)
}

// NowInTimezone returns the current time in the specified timezone.
func NowInTimezone(timezone string) (time.Time, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return time.Now().In(loc), nil
}

// DayKey formats the calendar date of t (YYYY-MM-DD) in t's own location.
func DayKey(t time.Time) string {
	return t.Format(constants.DateFormat)
}

// ParseTimeOfDay parses an HH:MM string into an offset from midnight.
func ParseTimeOfDay(timeStr string) (time.Duration, error) {
	t, err := time.Parse(constants.TimeFormat, timeStr)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", timeStr, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// MustTimeOfDay is ParseTimeOfDay for values already validated; it returns
// fallback when the string does not parse.
func MustTimeOfDay(timeStr string, fallback time.Duration) time.Duration {
	d, err := ParseTimeOfDay(timeStr)
	if err != nil {
		return fallback
	}
	return d
}

// TimeOfDay returns the wall-clock offset of t from its local midnight.
func TimeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// StartOfDay returns midnight of t's calendar date in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextMidnight returns the start of the calendar day after t.
func NextMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}

// AtTimeOfDay returns t's calendar date at the given wall-clock offset.
func AtTimeOfDay(t time.Time, tod time.Duration) time.Time {
	h := int(tod / time.Hour)
	m := int((tod % time.Hour) / time.Minute)
	return time.Date(t.Year(), t.Month(), t.Day(), h, m, 0, 0, t.Location())
}

// NextOccurrence returns the first instant at or after now whose wall clock
// reads tod.
func NextOccurrence(now time.Time, tod time.Duration) time.Time {
	at := AtTimeOfDay(now, tod)
	if at.Before(now) {
		at = AtTimeOfDay(now.AddDate(0, 0, 1), tod)
	}
	return at
}

// ValidateTimeFormat checks if the string matches the standard time format.
func ValidateTimeFormat(timeStr string) bool {
	_, err := ParseTimeOfDay(timeStr)
	return err == nil
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	if timezone == "" || timezone == "Local" {
		return true
	}
	_, err := time.LoadLocation(timezone)
	return err == nil
}
