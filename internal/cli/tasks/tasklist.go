package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/constants"
	"github.com/julianstephens/nextup/internal/models"
)

type TaskListCmd struct {
	Status  string `help:"Only show tasks with this status (active|snoozed|completed)." enum:"all,active,snoozed,completed" default:"all"`
	Deleted bool   `help:"Show deleted tasks instead."`
	ShowIDs bool   `help:"Show full task IDs." name:"show-ids"`
}

func (c *TaskListCmd) Run(ctx *cli.Context) error {
	bg := context.Background()

	var tasks []models.Task
	var err error
	if c.Deleted {
		tasks, err = ctx.Store.GetAllTasksIncludingDeleted(bg)
	} else {
		tasks, err = ctx.Store.GetTasks(bg)
	}
	if err != nil {
		return fmt.Errorf("failed to get tasks: %w", err)
	}

	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	loc := ctx.Now(settings).Location()

	shown := filterTasks(tasks, c.Status, c.Deleted)
	if len(shown) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	fmt.Println(cli.HeaderStyle.Render("Tasks:"))
	for _, t := range shown {
		fmt.Println(c.formatTask(t, loc))
	}
	return nil
}

func filterTasks(tasks []models.Task, status string, deleted bool) []models.Task {
	var out []models.Task
	for _, t := range tasks {
		if deleted != (t.DeletedAt != nil) {
			continue
		}
		if status != "" && status != "all" && string(t.Status) != status {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return out
}

func (c *TaskListCmd) formatTask(t models.Task, loc *time.Location) string {
	id := cli.ShortID(t.ID)
	if c.ShowIDs {
		id = t.ID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%s] %s %s - imp %d, size %g, %s",
		t.Status, cli.TitleStyle.Render(t.Title), cli.MutedStyle.Render("("+id+")"),
		t.Importance, t.SizePoints, cli.FormatRepeat(t.Repeat))
	if t.Repeat.Kind == models.RepeatWeekly {
		fmt.Fprintf(&b, " on %s", t.Weekdays)
	}

	var notes []string
	if p := formatPeriod(t.Period); p != "" {
		notes = append(notes, p)
	}
	if t.Deadline != nil {
		notes = append(notes, "due "+t.Deadline.In(loc).Format(constants.DateFormat+" "+constants.TimeFormat))
	}
	if t.SnoozedUntil != nil {
		notes = append(notes, "snoozed until "+t.SnoozedUntil.In(loc).Format(constants.DateFormat+" "+constants.TimeFormat))
	}
	if t.Status == models.StatusCompleted && t.NextEligibleAt != nil {
		notes = append(notes, "back "+t.NextEligibleAt.In(loc).Format(constants.DateFormat))
	}
	if t.Paused {
		notes = append(notes, "paused")
	}
	if !t.AutoShuffleAllowed {
		notes = append(notes, "manual only")
	}
	if t.CutsInLine() {
		notes = append(notes, "cuts in line ("+string(t.CutInLine)+")")
	}
	if t.DeletedAt != nil {
		notes = append(notes, "deleted "+t.DeletedAt.In(loc).Format(constants.DateFormat))
	}
	if len(notes) > 0 {
		b.WriteString("\n      " + cli.MutedStyle.Render(strings.Join(notes, " · ")))
	}
	return b.String()
}

func formatPeriod(ref models.PeriodRef) string {
	switch {
	case ref.DefinitionID != "":
		return "period " + ref.DefinitionID
	case ref.AdHoc != nil && ref.AdHoc.IsSet():
		return fmt.Sprintf("window %s-%s", ref.AdHoc.Start, ref.AdHoc.End)
	case ref.Kind != "" && ref.Kind != models.PeriodAny:
		return string(ref.Kind)
	}
	return ""
}
