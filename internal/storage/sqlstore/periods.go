package sqlstore

import (
	"context"
	"fmt"

	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/validation"

	apperrors "github.com/julianstephens/nextup/internal/errors"
)

func (s *Store) GetPeriodDefinitions(ctx context.Context) ([]models.PeriodDefinition, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, `
SELECT id, name, weekdays, start_time, end_time, all_day, alignment
FROM period_definitions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query period definitions: %w", err)
	}
	defer logClose(rows)

	var defs []models.PeriodDefinition
	for rows.Next() {
		var d models.PeriodDefinition
		var weekdays, alignment int64
		if err := rows.Scan(&d.ID, &d.Name, &weekdays, &d.Start, &d.End, &d.AllDay, &alignment); err != nil {
			return nil, err
		}
		d.Weekdays = models.WeekdayMask(weekdays)
		d.Alignment = models.AlignmentMode(alignment)
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read period definitions: %w", err)
	}
	return defs, nil
}

func (s *Store) SavePeriodDefinition(ctx context.Context, def models.PeriodDefinition) error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, b := range models.BuiltinPeriods() {
		if b.ID == def.ID {
			return fmt.Errorf("period %q is built in and cannot be changed", def.ID)
		}
	}
	if err := validation.ValidatePeriodDefinition(def); err != nil {
		return fmt.Errorf("invalid period: %w", err)
	}

	_, err := s.exec(ctx, `
INSERT INTO period_definitions (id, name, weekdays, start_time, end_time, all_day, alignment)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
       name = excluded.name,
       weekdays = excluded.weekdays,
       start_time = excluded.start_time,
       end_time = excluded.end_time,
       all_day = excluded.all_day,
       alignment = excluded.alignment`,
		def.ID, def.Name, int64(def.Weekdays), def.Start, def.End, def.AllDay, int64(def.Alignment))
	if err != nil {
		return fmt.Errorf("failed to save period %s: %w", def.ID, err)
	}
	return nil
}

func (s *Store) DeletePeriodDefinition(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.exec(ctx, "DELETE FROM period_definitions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete period %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrPeriodNotFound, id)
	}
	return nil
}
