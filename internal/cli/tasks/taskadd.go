package tasks

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"

	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/utils"
)

type TaskAddCmd struct {
	Title       string  `arg:"" optional:"" help:"Task title."`
	Description string  `short:"D" help:"Free-form description."`
	Importance  int     `short:"i" help:"Importance (1-5, higher matters more)." default:"3"`
	Size        float64 `short:"s" help:"Size in points (0.5-13, smaller is quicker)." default:"3"`
	Deadline    string  `short:"d" help:"Deadline (duration, HH:MM, YYYY-MM-DD or 'YYYY-MM-DD HH:MM')."`
	Repeat      string  `short:"r" help:"Repeat rule (none|daily|weekly|interval)." default:"none" enum:"none,daily,weekly,interval"`
	Interval    int     `help:"Days between occurrences for interval repeat." default:"1"`
	Weekdays    string  `short:"w" help:"Comma-separated weekdays for weekly repeat."`
	Period      string  `short:"p" help:"Period kind (any|work|off_work) or a period definition id." default:"any"`
	Start       string  `help:"Ad-hoc window start (HH:MM)."`
	End         string  `help:"Ad-hoc window end (HH:MM)."`
	NoAuto      bool    `help:"Exclude from automatic shuffles; manual shuffles can still pick it." name:"no-auto"`
	CutIn       string  `help:"Cut in line (none|once|until_completion)." default:"none" enum:"none,once,until_completion"`
	TimerMode   string  `help:"Timer override (countdown|pomodoro)."`
	TimerMin    int     `help:"Timer override minutes." name:"timer-minutes"`
	Cycles      int     `help:"Pomodoro cycles override."`

	Interactive bool `short:"I" help:"Fill in the task with an interactive form."`
}

func (c *TaskAddCmd) Run(ctx *cli.Context) error {
	bg := context.Background()

	if c.Interactive {
		if err := c.runForm(); err != nil {
			return err
		}
	}

	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	task, err := c.build(bg, ctx, ctx.Now(settings))
	if err != nil {
		return err
	}

	saved, err := ctx.Store.AddTask(bg, task)
	if err != nil {
		return fmt.Errorf("failed to add task: %w", err)
	}
	ctx.PerformAutomaticBackup(bg)

	fmt.Println(cli.Success("Added task: %s (ID: %s)", saved.Title, cli.ShortID(saved.ID)))
	return nil
}

// build turns the flags into a new task. Field ranges are checked again by
// the store on write.
func (c *TaskAddCmd) build(bg context.Context, ctx *cli.Context, now time.Time) (models.Task, error) {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return models.Task{}, fmt.Errorf("task title is required (pass it as an argument or use --interactive)")
	}
	if c.Importance < 1 || c.Importance > 5 {
		return models.Task{}, fmt.Errorf("importance must be between 1 and 5")
	}
	if c.Size < models.MinSizePoints || c.Size > models.MaxSizePoints {
		return models.Task{}, fmt.Errorf("size must be between %g and %g", models.MinSizePoints, models.MaxSizePoints)
	}

	task := models.NewTask(uuid.NewString(), title)
	task.Description = c.Description
	task.Importance = c.Importance
	task.SizePoints = c.Size
	task.AutoShuffleAllowed = !c.NoAuto
	task.CutInLine = models.CutInLineMode(c.CutIn)

	if c.Deadline != "" {
		deadline, err := cli.ParseWhen(c.Deadline, now)
		if err != nil {
			return models.Task{}, fmt.Errorf("invalid deadline: %w", err)
		}
		task.Deadline = &deadline
	}

	repeat, weekdays, err := parseRepeat(c.Repeat, c.Interval, c.Weekdays)
	if err != nil {
		return models.Task{}, err
	}
	task.Repeat = repeat
	task.Weekdays = weekdays

	ref, err := resolvePeriod(bg, ctx, c.Period, c.Start, c.End)
	if err != nil {
		return models.Task{}, err
	}
	task.Period = ref

	timer, err := timerOverride(c.TimerMode, c.TimerMin, c.Cycles)
	if err != nil {
		return models.Task{}, err
	}
	task.Timer = timer

	return task, nil
}

func parseRepeat(kind string, interval int, weekdays string) (models.Repeat, models.WeekdayMask, error) {
	repeat := models.Repeat{Kind: models.RepeatKind(kind)}
	if repeat.Kind == "" {
		repeat.Kind = models.RepeatNone
	}

	var mask models.WeekdayMask
	switch repeat.Kind {
	case models.RepeatNone, models.RepeatDaily:
	case models.RepeatWeekly:
		m, err := cli.ParseWeekdays(weekdays)
		if err != nil {
			return models.Repeat{}, 0, err
		}
		mask = m
	case models.RepeatInterval:
		if interval < 1 {
			return models.Repeat{}, 0, fmt.Errorf("interval must be at least 1 day")
		}
		repeat.IntervalDays = interval
	default:
		return models.Repeat{}, 0, fmt.Errorf("unknown repeat rule %q", kind)
	}
	if weekdays != "" && repeat.Kind != models.RepeatWeekly {
		return models.Repeat{}, 0, fmt.Errorf("--weekdays only applies to weekly repeat")
	}
	return repeat, mask, nil
}

// resolvePeriod maps --period and the ad-hoc window flags to a reference.
// Values other than the built-in kinds must name a stored definition.
func resolvePeriod(bg context.Context, ctx *cli.Context, name, start, end string) (models.PeriodRef, error) {
	ref := models.PeriodRef{Kind: models.PeriodAny}

	switch kind := models.PeriodKind(name); kind {
	case "", models.PeriodAny, models.PeriodWork, models.PeriodOffWork:
		if kind != "" {
			ref.Kind = kind
		}
	default:
		defs, err := ctx.Store.GetPeriodDefinitions(bg)
		if err != nil {
			return models.PeriodRef{}, fmt.Errorf("failed to load period definitions: %w", err)
		}
		found := false
		for _, d := range defs {
			if d.ID == name {
				found = true
				break
			}
		}
		if !found {
			return models.PeriodRef{}, fmt.Errorf("unknown period %q (see 'nextup period list')", name)
		}
		ref.DefinitionID = name
	}

	if start == "" && end == "" {
		return ref, nil
	}
	if ref.DefinitionID != "" {
		return models.PeriodRef{}, fmt.Errorf("--start/--end cannot be combined with a period definition")
	}
	if !utils.ValidateTimeFormat(start) || !utils.ValidateTimeFormat(end) {
		return models.PeriodRef{}, fmt.Errorf("ad-hoc window needs both --start and --end as HH:MM")
	}
	ref.AdHoc = &models.AdHocPeriod{Start: start, End: end}
	return ref, nil
}

func timerOverride(mode string, minutes, cycles int) (*models.TimerOverride, error) {
	if mode == "" && minutes == 0 && cycles == 0 {
		return nil, nil
	}
	if minutes < 0 || cycles < 0 {
		return nil, fmt.Errorf("timer values must not be negative")
	}
	m := models.TimerMode(mode)
	switch m {
	case "":
		m = models.TimerModeCountdown
	case models.TimerModeCountdown, models.TimerModePomodoro:
	default:
		return nil, fmt.Errorf("unknown timer mode %q", mode)
	}
	if cycles > 0 && m != models.TimerModePomodoro {
		return nil, fmt.Errorf("--cycles needs --timer-mode pomodoro")
	}
	return &models.TimerOverride{Mode: m, Minutes: minutes, Cycles: cycles}, nil
}

// taskForm holds the string-typed values bound to the huh inputs.
type taskForm struct {
	Title       string
	Description string
	Importance  string
	Size        string
	Deadline    string
	Repeat      string
	Interval    string
	Weekdays    string
	Period      string
	AutoShuffle bool
}

func (c *TaskAddCmd) runForm() error {
	fm := &taskForm{
		Title:       c.Title,
		Description: c.Description,
		Importance:  strconv.Itoa(c.Importance),
		Size:        strconv.FormatFloat(c.Size, 'g', -1, 64),
		Deadline:    c.Deadline,
		Repeat:      c.Repeat,
		Interval:    strconv.Itoa(c.Interval),
		Weekdays:    c.Weekdays,
		Period:      c.Period,
		AutoShuffle: !c.NoAuto,
	}
	if err := newTaskForm(fm).Run(); err != nil {
		return fmt.Errorf("form cancelled: %w", err)
	}
	return c.applyForm(fm)
}

func (c *TaskAddCmd) applyForm(fm *taskForm) error {
	importance, err := strconv.Atoi(strings.TrimSpace(fm.Importance))
	if err != nil {
		return fmt.Errorf("invalid importance: %w", err)
	}
	size, err := strconv.ParseFloat(strings.TrimSpace(fm.Size), 64)
	if err != nil {
		return fmt.Errorf("invalid size: %w", err)
	}
	interval := 1
	if s := strings.TrimSpace(fm.Interval); s != "" {
		if interval, err = strconv.Atoi(s); err != nil {
			return fmt.Errorf("invalid interval: %w", err)
		}
	}

	c.Title = fm.Title
	c.Description = fm.Description
	c.Importance = importance
	c.Size = size
	c.Deadline = strings.TrimSpace(fm.Deadline)
	c.Repeat = fm.Repeat
	c.Interval = interval
	c.Weekdays = ""
	if fm.Repeat == string(models.RepeatWeekly) {
		c.Weekdays = fm.Weekdays
	}
	c.Period = fm.Period
	c.NoAuto = !fm.AutoShuffle
	return nil
}

func newTaskForm(fm *taskForm) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&fm.Title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("title cannot be empty")
					}
					return nil
				}),
			huh.NewText().
				Title("Description").
				Value(&fm.Description),
			huh.NewInput().
				Title("Importance (1-5)").
				Value(&fm.Importance).
				Validate(func(s string) error {
					i, err := strconv.Atoi(s)
					if err != nil {
						return err
					}
					if i < 1 || i > 5 {
						return fmt.Errorf("importance must be 1-5")
					}
					return nil
				}),
			huh.NewInput().
				Title("Size (points)").
				Description("0.5 for a quick win, 13 for a big job").
				Value(&fm.Size).
				Validate(func(s string) error {
					f, err := strconv.ParseFloat(s, 64)
					if err != nil {
						return err
					}
					if f < models.MinSizePoints || f > models.MaxSizePoints {
						return fmt.Errorf("size must be %g-%g", models.MinSizePoints, models.MaxSizePoints)
					}
					return nil
				}),
			huh.NewInput().
				Title("Deadline").
				Description("Leave empty for none; accepts 2h, 17:00, 2026-01-31").
				Value(&fm.Deadline),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Repeat").
				Options(
					huh.NewOption("Once", string(models.RepeatNone)),
					huh.NewOption("Daily", string(models.RepeatDaily)),
					huh.NewOption("Weekly", string(models.RepeatWeekly)),
					huh.NewOption("Every N days", string(models.RepeatInterval)),
				).
				Value(&fm.Repeat),
			huh.NewInput().
				Title("Interval (days)").
				Description("For 'Every N days'").
				Value(&fm.Interval),
			huh.NewInput().
				Title("Weekdays").
				Description("For 'Weekly', e.g. mon,wed,fri").
				Value(&fm.Weekdays).
				Validate(func(s string) error {
					_, err := cli.ParseWeekdays(s)
					return err
				}),
			huh.NewSelect[string]().
				Title("Period").
				Options(
					huh.NewOption("Any time", string(models.PeriodAny)),
					huh.NewOption("Work hours", string(models.PeriodWork)),
					huh.NewOption("Off work", string(models.PeriodOffWork)),
				).
				Value(&fm.Period),
			huh.NewConfirm().
				Title("Include in automatic shuffles").
				Value(&fm.AutoShuffle),
		),
	).WithTheme(huh.ThemeDracula())
}
