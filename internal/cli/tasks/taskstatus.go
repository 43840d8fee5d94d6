package tasks

import (
	"context"
	"fmt"

	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/constants"
	"github.com/julianstephens/nextup/internal/models"
)

type TaskDoneCmd struct {
	ID string `arg:"" help:"Task ID or unique prefix."`
}

func (c *TaskDoneCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	task, err := ctx.FindTask(bg, c.ID)
	if err != nil {
		return err
	}
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}

	done, err := ctx.Store.MarkTaskDone(bg, task.ID, ctx.Now(settings))
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}

	fmt.Println(cli.Success("Completed: %s", done.Title))
	if done.NextEligibleAt != nil {
		next := done.NextEligibleAt.In(ctx.Now(settings).Location())
		fmt.Println(cli.MutedStyle.Render("  Back on " + next.Format(constants.DateFormat+" "+constants.TimeFormat)))
	}
	return nil
}

type TaskSnoozeCmd struct {
	ID    string `arg:"" help:"Task ID or unique prefix."`
	Until string `arg:"" help:"Snooze until (duration like 2h, HH:MM, YYYY-MM-DD, 'tomorrow')." default:"1h"`
}

func (c *TaskSnoozeCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	task, err := ctx.FindTask(bg, c.ID)
	if err != nil {
		return err
	}
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	now := ctx.Now(settings)
	until, err := cli.ParseWhen(c.Until, now)
	if err != nil {
		return err
	}

	snoozed, err := ctx.Store.SnoozeTask(bg, task.ID, until, now)
	if err != nil {
		return fmt.Errorf("failed to snooze task: %w", err)
	}
	fmt.Println(cli.Success("Snoozed %s until %s", snoozed.Title,
		snoozed.SnoozedUntil.In(now.Location()).Format(constants.DateFormat+" "+constants.TimeFormat)))
	return nil
}

type TaskResumeCmd struct {
	ID string `arg:"" help:"Task ID or unique prefix."`
}

func (c *TaskResumeCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	task, err := ctx.FindTask(bg, c.ID)
	if err != nil {
		return err
	}

	var resumed models.Task
	if task.Status == models.StatusActive && task.Paused {
		task.Paused = false
		if err := ctx.Store.UpdateTask(bg, task); err != nil {
			return fmt.Errorf("failed to unpause task: %w", err)
		}
		resumed = task
	} else {
		resumed, err = ctx.Store.ResumeTask(bg, task.ID)
		if err != nil {
			return fmt.Errorf("failed to resume task: %w", err)
		}
	}
	fmt.Println(cli.Success("Resumed: %s", resumed.Title))
	return nil
}

// TaskPauseCmd toggles whether a task takes part in shuffles at all,
// independent of its status.
type TaskPauseCmd struct {
	ID    string `arg:"" help:"Task ID or unique prefix."`
	Unset bool   `help:"Unpause instead." name:"off"`
}

func (c *TaskPauseCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	task, err := ctx.FindTask(bg, c.ID)
	if err != nil {
		return err
	}
	task.Paused = !c.Unset
	if err := ctx.Store.UpdateTask(bg, task); err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if task.Paused {
		fmt.Println(cli.Success("Paused: %s", task.Title))
	} else {
		fmt.Println(cli.Success("Unpaused: %s", task.Title))
	}
	return nil
}

type TaskCutInCmd struct {
	ID   string `arg:"" help:"Task ID or unique prefix."`
	Mode string `arg:"" optional:"" help:"Cut-in-line mode (once|until_completion|none)." default:"once" enum:"none,once,until_completion"`
}

func (c *TaskCutInCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	task, err := ctx.FindTask(bg, c.ID)
	if err != nil {
		return err
	}
	task.CutInLine = models.CutInLineMode(c.Mode)
	if err := ctx.Store.UpdateTask(bg, task); err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if task.CutsInLine() {
		fmt.Println(cli.Success("%s will cut in line (%s)", task.Title, c.Mode))
	} else {
		fmt.Println(cli.Success("%s no longer cuts in line", task.Title))
	}
	return nil
}
