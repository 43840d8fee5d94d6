package models

// Settings represents application-wide settings
type Settings struct {
	Enabled              bool   `json:"enabled"`               // master switch for automatic shuffling
	AutoShuffleEnabled   bool   `json:"auto_shuffle_enabled"`  // whether the coordinator schedules shuffles
	NotificationsEnabled bool   `json:"notifications_enabled"` // whether notifications are enabled
	Timezone             string `json:"timezone"`              // IANA timezone name or "Local"

	ImportanceWeight       float64 `json:"importance_weight"`         // point pool for importance, 0..100
	UrgencyWeight          float64 `json:"urgency_weight"`            // point pool for urgency, 0..100
	UrgencyDeadlineShare   float64 `json:"urgency_deadline_share"`    // percent of urgency given to deadlines
	RepeatPenalty          float64 `json:"repeat_penalty"`            // strength of the recently-done penalty, 0..2
	SizeBiasStrength       float64 `json:"size_bias_strength"`        // how strongly small tasks are favored, 0..1
	StreakBias             float64 `json:"streak_bias"`               // boosts overdue repeating tasks, 0..1
	StableRandomnessPerDay bool    `json:"stable_randomness_per_day"` // seed randomness from the calendar date

	MinGapMinutes               int       `json:"min_gap_minutes"`
	MaxGapMinutes               int       `json:"max_gap_minutes"`
	MaxDailyShuffles            int       `json:"max_daily_shuffles"` // 0 means unlimited
	QuietHoursStart             string    `json:"quiet_hours_start"`  // HH:MM, equal start and end disables quiet hours
	QuietHoursEnd               string    `json:"quiet_hours_end"`
	WorkStart                   string    `json:"work_start"`
	WorkEnd                     string    `json:"work_end"`
	ManualShuffleRespectsPeriod bool      `json:"manual_shuffle_respects_period"`
	DefaultTimerMinutes         int       `json:"default_timer_minutes"`
	DefaultTimerMode            TimerMode `json:"default_timer_mode"`
	PomodoroFocusMinutes        int       `json:"pomodoro_focus_minutes"`
	PomodoroBreakMinutes        int       `json:"pomodoro_break_minutes"`
	PomodoroCycles              int       `json:"pomodoro_cycles"`
}
