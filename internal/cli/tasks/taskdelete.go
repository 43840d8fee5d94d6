package tasks

import (
	"context"
	"fmt"

	"github.com/julianstephens/nextup/internal/cli"
)

type TaskDeleteCmd struct {
	ID string `arg:"" help:"Task ID or unique prefix."`
}

func (c *TaskDeleteCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	task, err := ctx.FindTask(bg, c.ID)
	if err != nil {
		return fmt.Errorf("failed to find task with ID %s: %w", c.ID, err)
	}

	if err := ctx.Store.DeleteTask(bg, task.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	fmt.Println(cli.Success("Deleted task: %s (ID: %s)", task.Title, cli.ShortID(task.ID)))
	return nil
}

type TaskRestoreCmd struct {
	ID string `arg:"" help:"ID or unique prefix of a deleted task."`
}

func (c *TaskRestoreCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	task, err := ctx.FindDeletedTask(bg, c.ID)
	if err != nil {
		return fmt.Errorf("failed to find deleted task with ID %s: %w", c.ID, err)
	}

	if err := ctx.Store.RestoreTask(bg, task.ID); err != nil {
		return fmt.Errorf("failed to restore task: %w", err)
	}

	fmt.Println(cli.Success("Restored task: %s (ID: %s)", task.Title, cli.ShortID(task.ID)))
	return nil
}
