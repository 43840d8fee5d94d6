package models

import "time"

type PeriodKind string

const (
	PeriodAny     PeriodKind = "any"
	PeriodWork    PeriodKind = "work"
	PeriodOffWork PeriodKind = "off_work"
)

// AlignmentMode flags can be combined.
type AlignmentMode uint8

const (
	AlignNone            AlignmentMode = 0
	AlignWithWorkHours   AlignmentMode = 1 << 0
	AlignOffWorkRelative AlignmentMode = 1 << 1
)

func (a AlignmentMode) Has(flag AlignmentMode) bool {
	return a&flag != 0
}

type PeriodDefinition struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Weekdays  WeekdayMask   `json:"weekdays,omitempty"`
	Start     string        `json:"start,omitempty"` // HH:MM format
	End       string        `json:"end,omitempty"`   // HH:MM format
	AllDay    bool          `json:"all_day,omitempty"`
	Alignment AlignmentMode `json:"alignment,omitempty"`
	Builtin   bool          `json:"builtin,omitempty"`
}

var (
	PeriodDefinitionAny = PeriodDefinition{
		ID:       string(PeriodAny),
		Name:     "Any time",
		Weekdays: AllWeekdays,
		AllDay:   true,
		Builtin:  true,
	}
	PeriodDefinitionWork = PeriodDefinition{
		ID:        string(PeriodWork),
		Name:      "Work hours",
		Weekdays:  WeekdayMaskOf(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday),
		Alignment: AlignWithWorkHours,
		Builtin:   true,
	}
	PeriodDefinitionOffWork = PeriodDefinition{
		ID:        string(PeriodOffWork),
		Name:      "Off work",
		Weekdays:  AllWeekdays,
		Alignment: AlignWithWorkHours | AlignOffWorkRelative,
		Builtin:   true,
	}
)

// BuiltinPeriod returns the constant definition for a coarse period kind.
// Unknown kinds resolve to Any.
func BuiltinPeriod(kind PeriodKind) PeriodDefinition {
	switch kind {
	case PeriodWork:
		return PeriodDefinitionWork
	case PeriodOffWork:
		return PeriodDefinitionOffWork
	default:
		return PeriodDefinitionAny
	}
}

func BuiltinPeriods() []PeriodDefinition {
	return []PeriodDefinition{PeriodDefinitionAny, PeriodDefinitionWork, PeriodDefinitionOffWork}
}

// ToDefinition converts an inline window to a definition.
func (p AdHocPeriod) ToDefinition() PeriodDefinition {
	return PeriodDefinition{
		ID:        "ad-hoc",
		Name:      "Ad-hoc",
		Weekdays:  p.Weekdays,
		Start:     p.Start,
		End:       p.End,
		AllDay:    p.AllDay,
		Alignment: p.Alignment,
	}
}
