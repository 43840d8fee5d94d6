package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/nextup/internal/backup"
	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/keyring"
	"github.com/julianstephens/nextup/internal/utils"
	"github.com/julianstephens/nextup/internal/validation"
)

type DoctorCmd struct{}

type check struct {
	name    string
	run     func(context.Context, *cli.Context) error
	needsDB bool
	// warnOnly checks never fail the run.
	warnOnly bool
}

var doctorChecks = []check{
	{name: "Schema version", run: checkSchemaVersion, needsDB: true},
	{name: "Migrations complete", run: checkMigrationsComplete, needsDB: true},
	{name: "Backups present", run: checkBackupsPresent, warnOnly: true},
	{name: "Data validation", run: checkValidation, needsDB: true},
	{name: "Settings", run: checkSettings, needsDB: true, warnOnly: true},
	{name: "Shuffle state", run: checkState, needsDB: true},
	{name: "Clock/timezone", run: checkClockTimezone, needsDB: true},
	{name: "Device config", run: checkDeviceConfig},
	{name: "Peer sync", run: checkPeerSync, warnOnly: true},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	dbReachable := false

	if err := checkDBReachable(bg, ctx); err != nil {
		fmt.Printf("❌ Database reachable: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		fmt.Printf("✓ Database reachable: OK\n")
		dbReachable = true
	}

	for _, c := range doctorChecks {
		if c.needsDB && !dbReachable {
			fmt.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(bg, ctx)
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case c.warnOnly:
			fmt.Printf("⚠ %s: WARNING\n", c.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", c.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return errors.New("one or more health checks failed")
	}
	fmt.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(bg context.Context, ctx *cli.Context) error {
	if err := ctx.Store.Load(bg); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	if _, err := ctx.Store.GetSettings(bg); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

func schemaVersions(ctx *cli.Context) (current, latest int, ok bool, err error) {
	m, ok := ctx.Store.(migrator)
	if !ok {
		return 0, 0, false, nil
	}
	current, latest, err = m.SchemaVersion()
	if err != nil {
		return 0, 0, true, fmt.Errorf("failed to read schema version: %w", err)
	}
	return current, latest, true, nil
}

func checkSchemaVersion(_ context.Context, ctx *cli.Context) error {
	current, latest, ok, err := schemaVersions(ctx)
	if !ok || err != nil {
		return err
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	return nil
}

func checkMigrationsComplete(_ context.Context, ctx *cli.Context) error {
	current, latest, ok, err := schemaVersions(ctx)
	if !ok || err != nil {
		return err
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d (run 'nextup migrate')", current, latest)
	}
	return nil
}

func checkBackupsPresent(_ context.Context, ctx *cli.Context) error {
	if !ctx.IsSQLite() {
		return nil
	}
	backups, err := backup.NewManager(ctx.Store.GetConfigPath()).List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return errors.New("no backups found - consider creating one with 'nextup backup create'")
	}
	return nil
}

func checkValidation(bg context.Context, ctx *cli.Context) error {
	defs, err := ctx.Store.GetPeriodDefinitions(bg)
	if err != nil {
		return fmt.Errorf("failed to get period definitions: %w", err)
	}
	for _, def := range defs {
		if err := validation.ValidatePeriodDefinition(def); err != nil {
			return fmt.Errorf("period %q: %w", def.ID, err)
		}
	}

	tasks, err := ctx.Store.GetTasks(bg)
	if err != nil {
		return fmt.Errorf("failed to get tasks: %w", err)
	}
	result := validation.New(defs).ValidateTasks(tasks)
	for _, c := range result.Conflicts {
		// Duplicate titles are allowed, just confusing.
		if c.Type != validation.ConflictDuplicateTaskTitle {
			return fmt.Errorf("%s (run 'nextup validate' for the full report)", c.Description)
		}
	}
	return nil
}

func checkSettings(bg context.Context, ctx *cli.Context) error {
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	conflicts := validation.ValidateSettings(settings)
	if len(conflicts) == 0 {
		return nil
	}
	errs := make([]error, 0, len(conflicts))
	for _, c := range conflicts {
		errs = append(errs, errors.New(c.Description))
	}
	return errors.Join(errs...)
}

func checkState(bg context.Context, ctx *cli.Context) error {
	state, err := ctx.Store.GetState(bg)
	if err != nil {
		return fmt.Errorf("failed to read shuffle state: %w", err)
	}
	if state.DailyCount < 0 {
		return fmt.Errorf("daily shuffle count is negative: %d", state.DailyCount)
	}
	if a := state.Active; a != nil && a.ExpiresAt.Before(a.StartedAt) {
		return fmt.Errorf("active task %s expires before it started", a.TaskID)
	}
	return nil
}

func checkClockTimezone(bg context.Context, ctx *cli.Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}

	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	if !utils.ValidateTimezone(settings.Timezone) {
		return fmt.Errorf("unknown timezone %q", settings.Timezone)
	}
	return nil
}

func checkDeviceConfig(_ context.Context, ctx *cli.Context) error {
	if ctx.Config.DeviceID == "" {
		return errors.New("device id is not set (run 'nextup init')")
	}
	return ctx.Config.Validate()
}

func checkPeerSync(_ context.Context, ctx *cli.Context) error {
	peer := ctx.Config.Peer
	if !peer.Enabled() {
		return nil
	}
	if peer.Secret == "" && keyring.Lookup(keyring.PeerSecret, "") == "" {
		return errors.New("peer sync is configured but no secret is set (config, NEXTUP_PEER_SECRET or 'nextup keyring set peer-secret')")
	}
	return nil
}
