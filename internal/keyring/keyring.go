package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/nextup/internal/constants"
)

var (
	// ErrNotFound is returned when no credentials are found in the keyring
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Entry names one secret nextup keeps in the OS keyring.
type Entry string

const (
	// ConnectionString holds the Postgres DSN.
	ConnectionString Entry = constants.DefaultKeyringUser
	// PeerSecret holds the HMAC secret shared with sync peers.
	PeerSecret Entry = "peer-secret"
)

// Entries lists every entry in display order.
var Entries = []Entry{ConnectionString, PeerSecret}

// Get retrieves the secret stored under e. Returns ErrNotFound if nothing
// is stored.
func Get(e Entry) (string, error) {
	value, err := keyring.Get(constants.AppName, string(e))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return value, nil
}

// Set stores value under e.
func Set(e Entry, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", e)
	}
	if err := keyring.Set(constants.AppName, string(e), value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", e, err)
	}
	return nil
}

// Delete removes the secret stored under e.
func Delete(e Entry) error {
	if err := keyring.Delete(constants.AppName, string(e)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", e, err)
	}
	return nil
}

// Lookup returns the stored secret, or fallback when the entry is missing
// or the keyring cannot be reached.
func Lookup(e Entry, fallback string) string {
	value, err := Get(e)
	if err != nil {
		return fallback
	}
	return value
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
