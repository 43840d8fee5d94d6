package tasks

import (
	"context"
	"fmt"

	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/models"
)

type TaskEditCmd struct {
	ID          string   `arg:"" help:"Task ID or unique prefix."`
	Title       *string  `help:"New title."`
	Description *string  `short:"D" help:"New description."`
	Importance  *int     `short:"i" help:"New importance (1-5)."`
	Size        *float64 `short:"s" help:"New size in points (0.5-13)."`
	Deadline    *string  `short:"d" help:"New deadline; pass 'none' to clear it."`
	Repeat      *string  `short:"r" help:"New repeat rule (none|daily|weekly|interval)."`
	Interval    *int     `help:"New interval for interval repeat."`
	Weekdays    *string  `short:"w" help:"New weekdays for weekly repeat."`
	Period      *string  `short:"p" help:"New period kind or definition id."`
	Auto        *bool    `help:"Allow automatic shuffles to pick the task."`
}

func (c *TaskEditCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	task, err := ctx.FindTask(bg, c.ID)
	if err != nil {
		return fmt.Errorf("failed to find task: %w", err)
	}
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}

	updated, err := c.apply(bg, ctx, task, settings)
	if err != nil {
		return err
	}
	if err := ctx.Store.UpdateTask(bg, updated); err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	fmt.Println(cli.Success("Updated task: %s", updated.Title))
	return nil
}

func (c *TaskEditCmd) apply(bg context.Context, ctx *cli.Context, task models.Task, settings models.Settings) (models.Task, error) {
	if c.Title != nil {
		task.Title = *c.Title
	}
	if c.Description != nil {
		task.Description = *c.Description
	}
	if c.Importance != nil {
		if *c.Importance < 1 || *c.Importance > 5 {
			return task, fmt.Errorf("importance must be between 1 and 5")
		}
		task.Importance = *c.Importance
	}
	if c.Size != nil {
		if *c.Size < models.MinSizePoints || *c.Size > models.MaxSizePoints {
			return task, fmt.Errorf("size must be between %g and %g", models.MinSizePoints, models.MaxSizePoints)
		}
		task.SizePoints = *c.Size
	}
	if c.Deadline != nil {
		if *c.Deadline == "none" || *c.Deadline == "" {
			task.Deadline = nil
		} else {
			deadline, err := cli.ParseWhen(*c.Deadline, ctx.Now(settings))
			if err != nil {
				return task, fmt.Errorf("invalid deadline: %w", err)
			}
			task.Deadline = &deadline
		}
	}

	if c.Repeat != nil || c.Interval != nil || c.Weekdays != nil {
		kind := string(task.Repeat.Kind)
		if c.Repeat != nil {
			kind = *c.Repeat
		}
		interval := max(task.Repeat.IntervalDays, 1)
		if c.Interval != nil {
			interval = *c.Interval
		}
		weekdays := ""
		if models.RepeatKind(kind) == models.RepeatWeekly {
			weekdays = task.Weekdays.String()
			if task.Weekdays == 0 || task.Weekdays == models.AllWeekdays {
				weekdays = "all"
			}
		}
		if c.Weekdays != nil {
			weekdays = *c.Weekdays
		}
		repeat, mask, err := parseRepeat(kind, interval, weekdays)
		if err != nil {
			return task, err
		}
		task.Repeat = repeat
		task.Weekdays = mask
	}

	if c.Period != nil {
		ref, err := resolvePeriod(bg, ctx, *c.Period, "", "")
		if err != nil {
			return task, err
		}
		task.Period = ref
	}
	if c.Auto != nil {
		task.AutoShuffleAllowed = *c.Auto
	}
	return task, nil
}
