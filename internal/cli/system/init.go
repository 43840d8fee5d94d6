package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/config"
	"github.com/julianstephens/nextup/internal/storage"
	"github.com/julianstephens/nextup/internal/storage/postgres"
)

type InitCmd struct {
	Force  bool   `help:"Force reset by deleting existing database before initialization."`
	Source string `help:"Source database path or connection string to copy data from."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	bg := context.Background()

	if c.Force && ctx.IsSQLite() {
		dbPath := ctx.Store.GetConfigPath()
		if c.Source != "" {
			absDB, err := filepath.Abs(dbPath)
			if err == nil {
				dbPath = absDB
			}
			absSource, err := filepath.Abs(c.Source)
			if err == nil && absSource == dbPath {
				return fmt.Errorf("cannot use --force when source and destination are the same: %s", dbPath)
			}
		}
		if _, err := os.Stat(dbPath); err == nil {
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			fmt.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(bg); err != nil {
		return err
	}
	fmt.Printf("Initialized nextup storage at: %s\n", ctx.Store.GetConfigPath())

	if err := c.writeDeviceConfig(ctx); err != nil {
		return err
	}

	if c.Source != "" {
		fmt.Printf("Copying data from: %s\n", c.Source)
		if err := copyData(bg, ctx.Store, c.Source); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Println(cli.Success("Migration completed successfully!"))
	}
	return nil
}

// writeDeviceConfig creates the device config file on first init so the
// device keeps a stable id across runs.
func (c *InitCmd) writeDeviceConfig(ctx *cli.Context) error {
	if ctx.ConfigFile == "" {
		return nil
	}
	path, err := storage.ExpandPath(ctx.ConfigFile)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	cfg := config.Default()
	if ctx.Config.DeviceID != "" {
		cfg.DeviceID = ctx.Config.DeviceID
	}
	if ctx.Config.UserID != "" {
		cfg.UserID = ctx.Config.UserID
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("Wrote device config to: %s (device %s)\n", path, cfg.DeviceID)
	return nil
}

func copyData(ctx context.Context, dst storage.Provider, source string) error {
	if postgres.IsConnString(source) {
		if _, err := postgres.ValidateConnString(source); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return errors.New("PostgreSQL source connection string contains embedded credentials. Use environment variables or .pgpass instead")
			}
			return err
		}
	}
	src, err := storage.Open(source)
	if err != nil {
		return err
	}
	if err := src.Load(ctx); err != nil {
		return fmt.Errorf("failed to load source database: %w", err)
	}
	defer src.Close()

	fmt.Println("  Copying settings...")
	settings, err := src.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to get settings from source: %w", err)
	}
	if err := dst.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to save settings to destination: %w", err)
	}

	fmt.Println("  Copying period definitions...")
	defs, err := src.GetPeriodDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("failed to get period definitions from source: %w", err)
	}
	for _, def := range defs {
		if err := dst.SavePeriodDefinition(ctx, def); err != nil {
			return fmt.Errorf("failed to save period %s: %w", def.ID, err)
		}
	}
	fmt.Printf("    Copied %d period definitions\n", len(defs))

	// Records are copied raw so sync versions and tombstones survive.
	fmt.Println("  Copying tasks...")
	tasks, err := src.GetAllTasksIncludingDeleted(ctx)
	if err != nil {
		return fmt.Errorf("failed to get tasks from source: %w", err)
	}
	for _, task := range tasks {
		if err := dst.PutTaskRecord(ctx, task); err != nil {
			return fmt.Errorf("failed to add task %s: %w", task.ID, err)
		}
	}
	fmt.Printf("    Copied %d tasks\n", len(tasks))
	return nil
}

type MigrateCmd struct{}

// migrator is implemented by the SQL-backed stores.
type migrator interface {
	Migrate(logFn func(string)) (int, error)
	SchemaVersion() (current, latest int, err error)
}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	m, ok := ctx.Store.(migrator)
	if !ok {
		return errors.New("this storage backend does not support migrations")
	}

	count, err := m.Migrate(func(msg string) {
		fmt.Println(msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count == 0 {
		fmt.Println("No migrations to apply. Database is up to date.")
	} else {
		fmt.Printf("\nSuccessfully applied %d migration(s).\n", count)
	}
	return nil
}
