package periods

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/period"
	"github.com/julianstephens/nextup/internal/validation"
)

type PeriodAddCmd struct {
	ID        string `arg:"" help:"Period id, used with 'task add --period'."`
	Name      string `short:"n" help:"Display name (defaults to the id)."`
	Start     string `short:"s" help:"Window start (HH:MM)."`
	End       string `short:"e" help:"Window end (HH:MM); may be earlier than start for overnight windows."`
	Weekdays  string `short:"w" help:"Comma-separated weekdays (default: every day)."`
	AllDay    bool   `help:"Allow the whole day on the selected weekdays."`
	WorkHours bool   `help:"Follow the configured work hours instead of start/end." name:"work-hours"`
	OffWork   bool   `help:"Allowed outside work hours and on weekends." name:"off-work"`
}

func (c *PeriodAddCmd) Run(ctx *cli.Context) error {
	def, err := c.definition()
	if err != nil {
		return err
	}
	if err := validation.ValidatePeriodDefinition(def); err != nil {
		return fmt.Errorf("invalid period: %w", err)
	}
	if err := ctx.Store.SavePeriodDefinition(context.Background(), def); err != nil {
		return fmt.Errorf("failed to save period: %w", err)
	}
	fmt.Println(cli.Success("Saved period: %s", def.ID))
	return nil
}

func (c *PeriodAddCmd) definition() (models.PeriodDefinition, error) {
	id := strings.TrimSpace(c.ID)
	for _, b := range models.BuiltinPeriods() {
		if b.ID == id {
			return models.PeriodDefinition{}, fmt.Errorf("%q is a built-in period and cannot be redefined", id)
		}
	}
	mask, err := cli.ParseWeekdays(c.Weekdays)
	if err != nil {
		return models.PeriodDefinition{}, err
	}

	def := models.PeriodDefinition{
		ID:       id,
		Name:     strings.TrimSpace(c.Name),
		Weekdays: mask,
		Start:    c.Start,
		End:      c.End,
		AllDay:   c.AllDay,
	}
	if def.Name == "" {
		def.Name = id
	}
	if c.WorkHours || c.OffWork {
		def.Alignment |= models.AlignWithWorkHours
	}
	if c.OffWork {
		def.Alignment |= models.AlignOffWorkRelative
	}
	return def, nil
}

type PeriodListCmd struct{}

func (c *PeriodListCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	defs, err := ctx.Store.GetPeriodDefinitions(bg)
	if err != nil {
		return fmt.Errorf("failed to get periods: %w", err)
	}
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	now := ctx.Now(settings)

	fmt.Println(cli.HeaderStyle.Render("Periods:"))
	all := append(models.BuiltinPeriods(), defs...)
	for _, d := range all {
		open := cli.MutedStyle.Render("closed")
		if period.IsAllowed(d, now, settings) {
			open = cli.SuccessStyle.Render("open")
		}
		kind := ""
		if d.Builtin {
			kind = cli.MutedStyle.Render(" (built-in)")
		}
		fmt.Printf("  %-12s %-20s %-24s %s%s\n", d.ID, d.Name, describe(d, settings), open, kind)
	}
	return nil
}

func describe(d models.PeriodDefinition, s models.Settings) string {
	days := d.Weekdays.String()
	switch {
	case d.Alignment.Has(models.AlignOffWorkRelative):
		return "outside " + s.WorkStart + "-" + s.WorkEnd
	case d.Alignment.Has(models.AlignWithWorkHours):
		return s.WorkStart + "-" + s.WorkEnd + ", " + days
	case d.AllDay:
		return "all day, " + days
	default:
		return d.Start + "-" + d.End + ", " + days
	}
}

type PeriodDeleteCmd struct {
	ID string `arg:"" help:"Period id."`
}

func (c *PeriodDeleteCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Store.DeletePeriodDefinition(bg, c.ID); err != nil {
		return fmt.Errorf("failed to delete period: %w", err)
	}

	tasks, err := ctx.Store.GetTasks(bg)
	if err != nil {
		return fmt.Errorf("failed to get tasks: %w", err)
	}
	var orphaned int
	for _, t := range tasks {
		if t.Period.DefinitionID == c.ID {
			orphaned++
		}
	}

	fmt.Println(cli.Success("Deleted period: %s", c.ID))
	if orphaned > 0 {
		fmt.Println(cli.Warning("%d task(s) still reference %s and fall back to their period kind", orphaned, c.ID))
	}
	return nil
}
