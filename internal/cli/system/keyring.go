package system

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/nextup/internal/cli"
	"github.com/julianstephens/nextup/internal/keyring"
	"github.com/julianstephens/nextup/internal/storage/postgres"
)

type KeyringCmd struct {
	Set    KeyringSetCmd    `cmd:"" help:"Store a secret in the OS keyring."`
	Get    KeyringGetCmd    `cmd:"" help:"Show a stored secret (masked)."`
	Delete KeyringDeleteCmd `cmd:"" help:"Remove a secret from the OS keyring."`
	Status KeyringStatusCmd `cmd:"" help:"Check keyring availability and stored entries."`
}

// KeyringSetCmd stores a database connection string or the peer secret.
type KeyringSetCmd struct {
	Entry string `arg:"" enum:"database-connection,peer-secret" help:"Entry to set (database-connection|peer-secret)."`
	Value string `arg:"" help:"Value to store."`
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	entry := keyring.Entry(cmd.Entry)
	if entry == keyring.ConnectionString {
		if err := checkConnectionString(cmd.Value); err != nil {
			return err
		}
	}

	if err := keyring.Set(entry, cmd.Value); err != nil {
		return err
	}
	fmt.Println(cli.Success("%s stored in OS keyring", entry))
	if entry == keyring.ConnectionString {
		fmt.Println("  You can now use nextup without the --config flag")
	}
	return nil
}

func checkConnectionString(connStr string) error {
	if !postgres.IsConnString(connStr) && !strings.Contains(connStr, "host=") {
		return errors.New("connection string must be a valid PostgreSQL connection string")
	}
	if _, err := postgres.ValidateConnString(connStr); err != nil {
		if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		// The keyring is encrypted, so a password is tolerated here.
		fmt.Println(cli.Warning("Connection string contains embedded credentials."))
		fmt.Println("   It will be stored as-is in the encrypted OS keyring.")
	}
	return nil
}

type KeyringGetCmd struct {
	Entry string `arg:"" enum:"database-connection,peer-secret" default:"database-connection" help:"Entry to show."`
}

func (cmd *KeyringGetCmd) Run(ctx *cli.Context) error {
	entry := keyring.Entry(cmd.Entry)
	value, err := keyring.Get(entry)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("no %s found in keyring. Use 'nextup keyring set' to store one", entry)
		}
		return fmt.Errorf("failed to retrieve %s from keyring: %w", entry, err)
	}

	if entry == keyring.PeerSecret {
		fmt.Println(maskSecret(value))
		return nil
	}
	fmt.Println(maskPassword(value))
	return nil
}

type KeyringDeleteCmd struct {
	Entry string `arg:"" enum:"database-connection,peer-secret" help:"Entry to delete."`
}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	entry := keyring.Entry(cmd.Entry)
	if err := keyring.Delete(entry); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("no %s found in keyring", entry)
		}
		return err
	}
	fmt.Println(cli.Success("%s deleted from OS keyring", entry))
	return nil
}

type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		fmt.Println("❌ OS keyring is not available on this system")
		return keyring.ErrKeyringUnavailable
	}

	fmt.Println(cli.Success("OS keyring is available"))
	for _, e := range keyring.Entries {
		_, err := keyring.Get(e)
		switch {
		case err == nil:
			fmt.Println(cli.Success("%s is stored", e))
		case errors.Is(err, keyring.ErrNotFound):
			fmt.Printf("ℹ No %s stored\n", e)
		default:
			fmt.Println(cli.Warning("%s: %v", e, err))
		}
	}
	return nil
}

// maskPassword masks passwords in connection strings for display
func maskPassword(connStr string) string {
	if postgres.IsConnString(connStr) {
		if idx := strings.Index(connStr, "://"); idx != -1 {
			remaining := connStr[idx+3:]
			if atIdx := strings.LastIndex(remaining, "@"); atIdx != -1 {
				userInfo := remaining[:atIdx]
				if colonIdx := strings.Index(userInfo, ":"); colonIdx != -1 {
					return connStr[:idx+3] + userInfo[:colonIdx] + ":****" + connStr[idx+3+atIdx:]
				}
			}
		}
	}

	if strings.Contains(connStr, "password=") {
		parts := strings.Fields(connStr)
		masked := make([]string, 0, len(parts))
		for _, part := range parts {
			if strings.HasPrefix(part, "password=") {
				masked = append(masked, "password=****")
			} else {
				masked = append(masked, part)
			}
		}
		return strings.Join(masked, " ")
	}
	return connStr
}

// maskSecret keeps only the first and last two characters.
func maskSecret(s string) string {
	if len(s) <= 6 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
