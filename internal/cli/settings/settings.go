package settings

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/utils"
	"github.com/julianstephens/nextup/internal/validation"
)

type SettingsCmd struct {
	List bool `help:"List current settings."`

	Enabled              *bool   `help:"Master switch for automatic shuffling."`
	AutoShuffle          *bool   `help:"Schedule shuffles automatically." name:"auto-shuffle"`
	NotificationsEnabled *bool   `help:"Enable or disable notifications."`
	Timezone             *string `help:"IANA timezone name or Local."`
	MinGap               *int    `help:"Minimum minutes between automatic shuffles." name:"min-gap"`
	MaxGap               *int    `help:"Maximum minutes between automatic shuffles." name:"max-gap"`
	MaxDaily             *int    `help:"Automatic shuffles per day (0 = unlimited)." name:"max-daily"`
	QuietStart           *string `help:"Quiet hours start (HH:MM)." name:"quiet-start"`
	QuietEnd             *string `help:"Quiet hours end (HH:MM)." name:"quiet-end"`
	WorkStart            *string `help:"Work hours start (HH:MM)."`
	WorkEnd              *string `help:"Work hours end (HH:MM)."`
	TimerMode            *string `help:"Default timer mode (countdown|pomodoro)."`

	Set map[string]string `help:"Set any setting by key, e.g. --set repeat_penalty=0.8." placeholder:"KEY=VALUE"`
}

func (c *SettingsCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	// The raw stored settings: a device timezone override must not be saved.
	settings, err := ctx.Store.GetSettings(bg)
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	models.ApplyDefaultSettings(&settings)

	if c.List {
		printSettings(settings, ctx.Config.Timezone)
		return nil
	}

	updated, changed, err := c.apply(settings)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Println("No changes specified. Use --list to view settings or flags to update them.")
		return nil
	}

	for _, conflict := range validation.ValidateSettings(updated) {
		fmt.Println(cli.Warning("%s", conflict.Description))
	}
	if err := ctx.Store.SaveSettings(bg, updated); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	fmt.Println(cli.Success("Settings updated successfully."))
	return nil
}

// apply merges the flags into s. Generic --set values go through the same
// parser as stored rows.
func (c *SettingsCmd) apply(s models.Settings) (models.Settings, bool, error) {
	changed := false
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
			changed = true
		}
	}
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
			changed = true
		}
	}
	setTime := func(name string, dst *string, v *string) error {
		if v == nil {
			return nil
		}
		if !utils.ValidateTimeFormat(*v) {
			return fmt.Errorf("%s must be HH:MM, got %q", name, *v)
		}
		*dst = *v
		changed = true
		return nil
	}

	setBool(&s.Enabled, c.Enabled)
	setBool(&s.AutoShuffleEnabled, c.AutoShuffle)
	setBool(&s.NotificationsEnabled, c.NotificationsEnabled)
	setInt(&s.MinGapMinutes, c.MinGap)
	setInt(&s.MaxGapMinutes, c.MaxGap)
	setInt(&s.MaxDailyShuffles, c.MaxDaily)

	for _, f := range []struct {
		name string
		dst  *string
		v    *string
	}{
		{"quiet-start", &s.QuietHoursStart, c.QuietStart},
		{"quiet-end", &s.QuietHoursEnd, c.QuietEnd},
		{"work-start", &s.WorkStart, c.WorkStart},
		{"work-end", &s.WorkEnd, c.WorkEnd},
	} {
		if err := setTime(f.name, f.dst, f.v); err != nil {
			return s, false, err
		}
	}

	if c.Timezone != nil {
		if !utils.ValidateTimezone(*c.Timezone) {
			return s, false, fmt.Errorf("unknown timezone %q", *c.Timezone)
		}
		s.Timezone = *c.Timezone
		changed = true
	}
	if c.TimerMode != nil {
		mode := models.TimerMode(*c.TimerMode)
		if mode != models.TimerModeCountdown && mode != models.TimerModePomodoro {
			return s, false, fmt.Errorf("timer mode must be countdown or pomodoro, got %q", *c.TimerMode)
		}
		s.DefaultTimerMode = mode
		changed = true
	}

	if len(c.Set) > 0 {
		merged := models.SettingsToMap(s)
		for key, value := range c.Set {
			key = strings.TrimSpace(key)
			if _, ok := merged[key]; !ok {
				return s, false, fmt.Errorf("unknown setting %q", key)
			}
			merged[key] = strings.TrimSpace(value)
		}
		parsed, err := models.MapToSettings(merged)
		if err != nil {
			return s, false, fmt.Errorf("invalid setting: %w", err)
		}
		s = parsed
		changed = true
	}
	return s, changed, nil
}

func printSettings(s models.Settings, deviceTimezone string) {
	values := models.SettingsToMap(s)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println(cli.HeaderStyle.Render("Current Settings:"))
	for _, k := range keys {
		fmt.Printf("  %-32s %s\n", k, values[k])
	}
	if deviceTimezone != "" {
		fmt.Println(cli.MutedStyle.Render(fmt.Sprintf("\nThis device overrides the timezone with %s (config file).", deviceTimezone)))
	}
}
