package models

import (
	"fmt"

	"github.com/julianstephens/nextup/internal/constants"
)

// DefaultSettings returns the settings used when nothing has been stored.
func DefaultSettings() Settings {
	return Settings{
		Enabled:                     constants.DefaultEnabled,
		AutoShuffleEnabled:          constants.DefaultAutoShuffleEnabled,
		NotificationsEnabled:        constants.DefaultNotificationsEnabled,
		Timezone:                    constants.DefaultTimezone,
		ImportanceWeight:            constants.DefaultImportanceWeight,
		UrgencyWeight:               constants.DefaultUrgencyWeight,
		UrgencyDeadlineShare:        constants.DefaultUrgencyDeadlineShare,
		RepeatPenalty:               constants.DefaultRepeatPenalty,
		SizeBiasStrength:            constants.DefaultSizeBiasStrength,
		StreakBias:                  constants.DefaultStreakBias,
		MinGapMinutes:               constants.DefaultMinGapMinutes,
		MaxGapMinutes:               constants.DefaultMaxGapMinutes,
		MaxDailyShuffles:            constants.DefaultMaxDailyShuffles,
		QuietHoursStart:             constants.DefaultQuietHoursStart,
		QuietHoursEnd:               constants.DefaultQuietHoursEnd,
		WorkStart:                   constants.DefaultWorkStart,
		WorkEnd:                     constants.DefaultWorkEnd,
		ManualShuffleRespectsPeriod: true,
		DefaultTimerMinutes:         constants.DefaultTimerMinutes,
		DefaultTimerMode:            TimerModeCountdown,
		PomodoroFocusMinutes:        constants.DefaultPomodoroFocusMinutes,
		PomodoroBreakMinutes:        constants.DefaultPomodoroBreakMinutes,
		PomodoroCycles:              constants.DefaultPomodoroCycles,
	}
}

// MapToSettings converts a map of key-value pairs to a Settings struct.
// Keys missing from the map keep their default values.
func MapToSettings(data map[string]string) (Settings, error) {
	settings := DefaultSettings()

	for key, value := range data {
		var err error
		switch key {
		case constants.SettingEnabled:
			settings.Enabled = value == "true"
		case constants.SettingAutoShuffleEnabled:
			settings.AutoShuffleEnabled = value == "true"
		case constants.SettingNotificationsEnabled:
			settings.NotificationsEnabled = value == "true"
		case constants.SettingTimezone:
			settings.Timezone = value
		case constants.SettingImportanceWeight:
			_, err = fmt.Sscanf(value, "%g", &settings.ImportanceWeight)
		case constants.SettingUrgencyWeight:
			_, err = fmt.Sscanf(value, "%g", &settings.UrgencyWeight)
		case constants.SettingUrgencyDeadlineShare:
			_, err = fmt.Sscanf(value, "%g", &settings.UrgencyDeadlineShare)
		case constants.SettingRepeatPenalty:
			_, err = fmt.Sscanf(value, "%g", &settings.RepeatPenalty)
		case constants.SettingSizeBiasStrength:
			_, err = fmt.Sscanf(value, "%g", &settings.SizeBiasStrength)
		case constants.SettingStreakBias:
			_, err = fmt.Sscanf(value, "%g", &settings.StreakBias)
		case constants.SettingStableRandomness:
			settings.StableRandomnessPerDay = value == "true"
		case constants.SettingMinGapMinutes:
			_, err = fmt.Sscanf(value, "%d", &settings.MinGapMinutes)
		case constants.SettingMaxGapMinutes:
			_, err = fmt.Sscanf(value, "%d", &settings.MaxGapMinutes)
		case constants.SettingMaxDailyShuffles:
			_, err = fmt.Sscanf(value, "%d", &settings.MaxDailyShuffles)
		case constants.SettingQuietHoursStart:
			settings.QuietHoursStart = value
		case constants.SettingQuietHoursEnd:
			settings.QuietHoursEnd = value
		case constants.SettingWorkStart:
			settings.WorkStart = value
		case constants.SettingWorkEnd:
			settings.WorkEnd = value
		case constants.SettingManualRespectsPeriod:
			settings.ManualShuffleRespectsPeriod = value == "true"
		case constants.SettingDefaultTimerMinutes:
			_, err = fmt.Sscanf(value, "%d", &settings.DefaultTimerMinutes)
		case constants.SettingDefaultTimerMode:
			settings.DefaultTimerMode = TimerMode(value)
		case constants.SettingPomodoroFocusMinutes:
			_, err = fmt.Sscanf(value, "%d", &settings.PomodoroFocusMinutes)
		case constants.SettingPomodoroBreakMinutes:
			_, err = fmt.Sscanf(value, "%d", &settings.PomodoroBreakMinutes)
		case constants.SettingPomodoroCycles:
			_, err = fmt.Sscanf(value, "%d", &settings.PomodoroCycles)
		}
		if err != nil {
			return Settings{}, fmt.Errorf("parsing %s: %w", key, err)
		}
	}
	return settings, nil
}

// SettingsToMap converts a Settings struct to a map of key-value pairs.
func SettingsToMap(settings Settings) map[string]string {
	return map[string]string{
		constants.SettingEnabled:              fmt.Sprintf("%v", settings.Enabled),
		constants.SettingAutoShuffleEnabled:   fmt.Sprintf("%v", settings.AutoShuffleEnabled),
		constants.SettingNotificationsEnabled: fmt.Sprintf("%v", settings.NotificationsEnabled),
		constants.SettingTimezone:             settings.Timezone,
		constants.SettingImportanceWeight:     fmt.Sprintf("%g", settings.ImportanceWeight),
		constants.SettingUrgencyWeight:        fmt.Sprintf("%g", settings.UrgencyWeight),
		constants.SettingUrgencyDeadlineShare: fmt.Sprintf("%g", settings.UrgencyDeadlineShare),
		constants.SettingRepeatPenalty:        fmt.Sprintf("%g", settings.RepeatPenalty),
		constants.SettingSizeBiasStrength:     fmt.Sprintf("%g", settings.SizeBiasStrength),
		constants.SettingStreakBias:           fmt.Sprintf("%g", settings.StreakBias),
		constants.SettingStableRandomness:     fmt.Sprintf("%v", settings.StableRandomnessPerDay),
		constants.SettingMinGapMinutes:        fmt.Sprintf("%d", settings.MinGapMinutes),
		constants.SettingMaxGapMinutes:        fmt.Sprintf("%d", settings.MaxGapMinutes),
		constants.SettingMaxDailyShuffles:     fmt.Sprintf("%d", settings.MaxDailyShuffles),
		constants.SettingQuietHoursStart:      settings.QuietHoursStart,
		constants.SettingQuietHoursEnd:        settings.QuietHoursEnd,
		constants.SettingWorkStart:            settings.WorkStart,
		constants.SettingWorkEnd:              settings.WorkEnd,
		constants.SettingManualRespectsPeriod: fmt.Sprintf("%v", settings.ManualShuffleRespectsPeriod),
		constants.SettingDefaultTimerMinutes:  fmt.Sprintf("%d", settings.DefaultTimerMinutes),
		constants.SettingDefaultTimerMode:     string(settings.DefaultTimerMode),
		constants.SettingPomodoroFocusMinutes: fmt.Sprintf("%d", settings.PomodoroFocusMinutes),
		constants.SettingPomodoroBreakMinutes: fmt.Sprintf("%d", settings.PomodoroBreakMinutes),
		constants.SettingPomodoroCycles:       fmt.Sprintf("%d", settings.PomodoroCycles),
	}
}

// ApplyDefaultSettings applies default values to missing settings.
// Numeric knobs where zero is meaningful (weights, MaxDailyShuffles) are left alone.
func ApplyDefaultSettings(settings *Settings) {
	if settings.Timezone == "" {
		settings.Timezone = constants.DefaultTimezone
	}
	if settings.QuietHoursStart == "" {
		settings.QuietHoursStart = constants.DefaultQuietHoursStart
	}
	if settings.QuietHoursEnd == "" {
		settings.QuietHoursEnd = constants.DefaultQuietHoursEnd
	}
	if settings.WorkStart == "" {
		settings.WorkStart = constants.DefaultWorkStart
	}
	if settings.WorkEnd == "" {
		settings.WorkEnd = constants.DefaultWorkEnd
	}
	if settings.MinGapMinutes <= 0 {
		settings.MinGapMinutes = constants.DefaultMinGapMinutes
	}
	if settings.MaxGapMinutes < settings.MinGapMinutes {
		settings.MaxGapMinutes = settings.MinGapMinutes
	}
	if settings.DefaultTimerMinutes <= 0 {
		settings.DefaultTimerMinutes = constants.DefaultTimerMinutes
	}
	if settings.DefaultTimerMode == "" {
		settings.DefaultTimerMode = TimerModeCountdown
	}
	if settings.PomodoroFocusMinutes <= 0 {
		settings.PomodoroFocusMinutes = constants.DefaultPomodoroFocusMinutes
	}
	if settings.PomodoroBreakMinutes < 0 {
		settings.PomodoroBreakMinutes = 0
	}
	if settings.PomodoroCycles <= 0 {
		settings.PomodoroCycles = constants.DefaultPomodoroCycles
	}
}
