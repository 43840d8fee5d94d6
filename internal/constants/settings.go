package constants

const (
	// General Settings
	SettingEnabled              = "enabled"
	SettingAutoShuffleEnabled   = "auto_shuffle_enabled"
	SettingNotificationsEnabled = "notifications_enabled"
	SettingTimezone             = "timezone"

	// Scoring Settings
	SettingImportanceWeight     = "importance_weight"
	SettingUrgencyWeight        = "urgency_weight"
	SettingUrgencyDeadlineShare = "urgency_deadline_share"
	SettingRepeatPenalty        = "repeat_penalty"
	SettingSizeBiasStrength     = "size_bias_strength"
	SettingStreakBias           = "streak_bias"
	SettingStableRandomness     = "stable_randomness_per_day"

	// Shuffle Settings
	SettingMinGapMinutes        = "min_gap_minutes"
	SettingMaxGapMinutes        = "max_gap_minutes"
	SettingMaxDailyShuffles     = "max_daily_shuffles"
	SettingQuietHoursStart      = "quiet_hours_start"
	SettingQuietHoursEnd        = "quiet_hours_end"
	SettingWorkStart            = "work_start"
	SettingWorkEnd              = "work_end"
	SettingManualRespectsPeriod = "manual_shuffle_respects_period"
	SettingDefaultTimerMinutes  = "default_timer_minutes"
	SettingDefaultTimerMode     = "default_timer_mode"
	SettingPomodoroFocusMinutes = "pomodoro_focus_minutes"
	SettingPomodoroBreakMinutes = "pomodoro_break_minutes"
	SettingPomodoroCycles       = "pomodoro_cycles"

	// Default Settings Values
	DefaultEnabled              = true
	DefaultAutoShuffleEnabled   = true
	DefaultNotificationsEnabled = true
	DefaultTimezone             = "Local" // Use system local timezone by default

	DefaultImportanceWeight     = 60.0
	DefaultUrgencyWeight        = 40.0
	DefaultUrgencyDeadlineShare = 75.0 // percent of the urgency pool given to deadlines
	DefaultRepeatPenalty        = 0.6
	DefaultSizeBiasStrength     = 0.2
	DefaultStreakBias           = 0.0

	DefaultMinGapMinutes        = 30
	DefaultMaxGapMinutes        = 90
	DefaultMaxDailyShuffles     = 10
	DefaultQuietHoursStart      = "22:00"
	DefaultQuietHoursEnd        = "08:00"
	DefaultWorkStart            = "09:00"
	DefaultWorkEnd              = "17:00"
	DefaultTimerMinutes         = 25
	DefaultPomodoroFocusMinutes = 25
	DefaultPomodoroBreakMinutes = 5
	DefaultPomodoroCycles       = 4

	// Clamp ranges for the tuning knobs
	MaxPointPool        = 100.0
	MaxDeadlineShare    = 100.0
	MaxRepeatPenalty    = 2.0
	MaxSizeBiasStrength = 1.0
	MaxStreakBias       = 1.0
)
