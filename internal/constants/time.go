package constants

import "time"

// Weekend days used by the off-work period rule.
var WeekendDays = []time.Weekday{time.Saturday, time.Sunday}

const (
	HoursPerDay  = 24
	DaysPerWeek  = 7
	MinutesInDay = 24 * 60
)
