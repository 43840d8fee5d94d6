package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/validation"
)

type ValidateCmd struct{}

func (cmd *ValidateCmd) Run(ctx *cli.Context) error {
	bg := context.Background()

	settings, err := ctx.Store.GetSettings(bg)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	defs, err := ctx.Store.GetPeriodDefinitions(bg)
	if err != nil {
		return fmt.Errorf("failed to load period definitions: %w", err)
	}
	tasks, err := ctx.Store.GetTasks(bg)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	fmt.Println("Validating tasks...")
	result := validation.New(defs).ValidateTasks(tasks)

	fmt.Println("Validating period definitions...")
	for _, def := range defs {
		if err := validation.ValidatePeriodDefinition(def); err != nil {
			result.Conflicts = append(result.Conflicts, validation.Conflict{
				Type:        validation.ConflictInvalidTime,
				Description: fmt.Sprintf("Period %q is invalid: %v", def.ID, err),
			})
		}
	}

	fmt.Println("Validating settings...")
	result.Conflicts = append(result.Conflicts, validation.ValidateSettings(settings)...)

	fmt.Println()
	fmt.Println(result.FormatReport())
	return nil
}
