package shuffle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/constants"
	"github.com/julianstephens/nextup/internal/coordinator"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/selector"
	"github.com/julianstephens/nextup/internal/tui"
)

// ShuffleCmd picks a task right away. Manual shuffles ignore the daily
// limit and quiet hours and may pick tasks excluded from auto shuffles.
type ShuffleCmd struct {
	Deterministic bool `help:"Pick the top-scoring task instead of sampling." short:"D"`
}

func (c *ShuffleCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	coord, err := ctx.Coordinator(bg, coordinator.WithDeterministic(c.Deterministic))
	if err != nil {
		return err
	}
	defer coord.Close()

	active, err := coord.ShuffleNow(bg)
	if err != nil {
		return fmt.Errorf("shuffle failed: %w", err)
	}
	if active == nil {
		fmt.Println("Nothing to do right now: no task is eligible.")
		return nil
	}
	printActive(*active, active.Remaining(active.StartedAt))
	return nil
}

type ScoreCmd struct {
	Manual bool `help:"Score the manual shuffle pool instead of auto-shuffle candidates."`
	JSON   bool `help:"Print the breakdown as JSON." name:"json"`
}

type scoreRow struct {
	TaskID    string  `json:"task_id"`
	Title     string  `json:"title"`
	Score     float64 `json:"score"`
	Breakdown any     `json:"breakdown"`
}

func (c *ScoreCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	sel, err := ctx.Selector(bg)
	if err != nil {
		return err
	}
	tasks, err := ctx.Store.GetTasks(bg)
	if err != nil {
		return fmt.Errorf("failed to get tasks: %w", err)
	}
	if c.Manual {
		tasks = selector.ManualPool(tasks, settings)
	}

	ranked := sel.Rank(tasks, settings, ctx.Now(settings))
	if c.JSON {
		rows := make([]scoreRow, 0, len(ranked))
		for _, st := range ranked {
			rows = append(rows, scoreRow{TaskID: st.Task.ID, Title: st.Task.Title, Score: st.Score, Breakdown: st.Breakdown})
		}
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal scores: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	if len(ranked) == 0 {
		fmt.Printf("No candidates among %d task(s) right now.\n", len(tasks))
		return nil
	}
	fmt.Println(cli.HeaderStyle.Render(fmt.Sprintf("%d candidate(s), best first:", len(ranked))))
	fmt.Printf("  %-28s %7s %7s %7s %7s %6s\n", "TASK", "SCORE", "IMP", "DEAD", "REPEAT", "SIZE×")
	for _, st := range ranked {
		b := st.Breakdown
		title := st.Task.Title
		if len(title) > 26 {
			title = title[:25] + "…"
		}
		marker := " "
		if st.Task.CutsInLine() {
			marker = "»"
		}
		fmt.Printf("%s %-28s %7.2f %7.2f %7.2f %7.2f %6.2f\n",
			marker, title, st.Score, b.ImportancePoints, b.DeadlinePoints, b.RepeatPoints, b.SizeMultiplier)
	}
	fmt.Println(cli.MutedStyle.Render("» cuts in line and is shown before any scored task"))
	return nil
}

type NowCmd struct {
	Watch bool `short:"w" help:"Keep a live countdown open."`
}

func (c *NowCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	coord, err := ctx.Coordinator(bg)
	if err != nil {
		return err
	}
	defer coord.Close()

	if c.Watch {
		var opts []tui.Option
		if ctx.Clock != nil {
			opts = append(opts, tui.WithClock(ctx.Clock))
		}
		p := tea.NewProgram(tui.New(coord, opts...), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("countdown view failed: %w", err)
		}
		return nil
	}

	view, err := coord.RestoreView(bg)
	if err != nil {
		return err
	}
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	printView(view, ctx.Now(settings))
	return nil
}

func printView(v coordinator.View, now time.Time) {
	switch {
	case v.Active != nil && v.Remaining > 0:
		printActive(*v.Active, v.Remaining)
	case v.Active != nil:
		fmt.Printf("Last task: %s (timer finished)\n", v.Active.Title)
	default:
		fmt.Println("No active task.")
	}
	if v.Pending != nil {
		at := v.Pending.At.In(now.Location())
		fmt.Println(cli.MutedStyle.Render(fmt.Sprintf("Next shuffle at %s (in %s)",
			at.Format(constants.TimeFormat), tui.FormatRemaining(at.Sub(now)))))
	}
	fmt.Println(cli.MutedStyle.Render(fmt.Sprintf("Automatic shuffles today: %d", v.DailyCount)))
}

func printActive(a models.ActiveTask, remaining time.Duration) {
	fmt.Println(cli.TitleStyle.Render("Now: " + a.Title))
	switch a.Mode {
	case models.TimerModePomodoro:
		fmt.Printf("  %s %d/%d, %s left\n", a.Phase, a.Cycle, a.TotalCycles, tui.FormatRemaining(remaining))
	default:
		fmt.Printf("  %s left of %d min\n", tui.FormatRemaining(remaining), a.DurationMinutes)
	}
}

// PomodoroNextCmd skips to the next pomodoro phase.
type PomodoroNextCmd struct{}

func (c *PomodoroNextCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	coord, err := ctx.Coordinator(bg)
	if err != nil {
		return err
	}
	defer coord.Close()

	active, err := coord.AdvancePhase(bg)
	if err != nil {
		return fmt.Errorf("failed to advance pomodoro: %w", err)
	}
	if active == nil {
		fmt.Println("No pomodoro is running.")
		return nil
	}
	if active.Phase == models.PhaseCompleted {
		fmt.Println(cli.Success("Pomodoro complete: %s", active.Title))
		return nil
	}
	printActive(*active, active.Remaining(active.StartedAt))
	return nil
}
