package system

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/models"

	apperrors "github.com/julianstephens/nextup/internal/errors"
)

type DebugCmd struct {
	DBPath       DebugDBPathCmd       `cmd:"" help:"Show database path."`
	DumpTask     DebugDumpTaskCmd     `cmd:"" help:"Dump task data as JSON."`
	DumpState    DebugDumpStateCmd    `cmd:"" help:"Dump the shuffle state as JSON."`
	DumpSettings DebugDumpSettingsCmd `cmd:"" help:"Dump effective settings as JSON."`
	DumpPeriods  DebugDumpPeriodsCmd  `cmd:"" help:"Dump period definitions as JSON."`
}

func printJSON(v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(jsonBytes))
	return nil
}

type DebugDBPathCmd struct{}

func (cmd *DebugDBPathCmd) Run(ctx *cli.Context) error {
	return printJSON(map[string]string{
		"path":        ctx.Store.GetConfigPath(),
		"config_file": ctx.ConfigFile,
	})
}

type DebugDumpTaskCmd struct {
	ID string `arg:"" help:"ID (or unique prefix) of the task to dump."`
}

func (cmd *DebugDumpTaskCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	task, err := ctx.FindTask(bg, cmd.ID)
	if errors.Is(err, apperrors.ErrTaskNotFound) {
		// Tombstones are still worth inspecting.
		task, err = ctx.FindDeletedTask(bg, cmd.ID)
	}
	if err != nil {
		return err
	}
	return printJSON(task)
}

type DebugDumpStateCmd struct{}

func (cmd *DebugDumpStateCmd) Run(ctx *cli.Context) error {
	state, err := ctx.Store.GetState(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get state: %w", err)
	}
	return printJSON(state)
}

type DebugDumpSettingsCmd struct{}

func (cmd *DebugDumpSettingsCmd) Run(ctx *cli.Context) error {
	settings, err := ctx.Settings(context.Background())
	if err != nil {
		return err
	}
	return printJSON(models.SettingsToMap(settings))
}

type DebugDumpPeriodsCmd struct{}

func (cmd *DebugDumpPeriodsCmd) Run(ctx *cli.Context) error {
	defs, err := ctx.Store.GetPeriodDefinitions(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get period definitions: %w", err)
	}
	return printJSON(append(models.BuiltinPeriods(), defs...))
}
