package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/julianstephens/nextup/internal/models"

	apperrors "github.com/julianstephens/nextup/internal/errors"
)

// GetState returns the persisted shuffle state, or the zero state at
// version 0 when nothing has been saved.
func (s *Store) GetState(ctx context.Context) (models.ShuffleState, error) {
	if err := s.ready(); err != nil {
		return models.ShuffleState{}, err
	}
	var version int64
	var payload string
	err := s.queryRow(ctx, "SELECT version, payload FROM shuffle_state WHERE id = 1").Scan(&version, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ShuffleState{}, nil
	}
	if err != nil {
		return models.ShuffleState{}, fmt.Errorf("failed to load shuffle state: %w", err)
	}

	var st models.ShuffleState
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return models.ShuffleState{}, fmt.Errorf("failed to decode shuffle state: %w", err)
	}
	st.Version = version
	return st, nil
}

// SaveState writes state if its Version still matches the stored one and
// returns the saved state with the bumped version. A mismatch yields
// ErrStateConflict.
func (s *Store) SaveState(ctx context.Context, state models.ShuffleState) (models.ShuffleState, error) {
	if err := s.ready(); err != nil {
		return models.ShuffleState{}, err
	}
	next := state
	next.Version = state.Version + 1
	payload, err := json.Marshal(next)
	if err != nil {
		return models.ShuffleState{}, fmt.Errorf("failed to encode shuffle state: %w", err)
	}

	var res sql.Result
	if state.Version == 0 {
		res, err = s.exec(ctx,
			"INSERT INTO shuffle_state (id, version, payload) VALUES (1, ?, ?) ON CONFLICT (id) DO NOTHING",
			next.Version, string(payload))
	} else {
		res, err = s.exec(ctx,
			"UPDATE shuffle_state SET version = ?, payload = ? WHERE id = 1 AND version = ?",
			next.Version, string(payload), state.Version)
	}
	if err != nil {
		return models.ShuffleState{}, fmt.Errorf("failed to save shuffle state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.ShuffleState{}, fmt.Errorf("failed to save shuffle state: %w", err)
	}
	if n == 0 {
		return models.ShuffleState{}, apperrors.ErrStateConflict
	}
	return next, nil
}
