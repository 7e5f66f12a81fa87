package store

import (
	"context"
	"fmt"
	"log"

	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

// UpsertSchedule creates or replaces the rule for a forecast kind.
func (s *Store) UpsertSchedule(ctx context.Context, kind weather.Kind, at TimeOfDay, active bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules (forecast_type, publish_time, active)
		VALUES (?, ?, ?)
		ON CONFLICT(forecast_type) DO UPDATE SET
			publish_time = excluded.publish_time, active = excluded.active
	`, kind.String(), at.String(), active)
	if err != nil {
		return fmt.Errorf("failed to upsert schedule: %w", err)
	}
	return nil
}

// SetScheduleActive toggles the rule for a forecast kind.
func (s *Store) SetScheduleActive(ctx context.Context, kind weather.Kind, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE schedules SET active = ? WHERE forecast_type = ?`, active, kind.String())
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("schedule %s: %w", kind, ErrNotFound)
	}
	return nil
}

// ActiveSchedules returns active rules ordered by publish time.
// Rows that no longer parse are skipped with a warning.
func (s *Store) ActiveSchedules(ctx context.Context) ([]Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, forecast_type, publish_time, active FROM schedules
		WHERE active = 1
		ORDER BY publish_time ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		var (
			sc         Schedule
			kind, hhmm string
		)
		if err := rows.Scan(&sc.ID, &kind, &hhmm, &sc.Active); err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		if sc.Kind, err = weather.ParseKind(kind); err != nil {
			log.Printf("WARN: skipping schedule %d: %v", sc.ID, err)
			continue
		}
		if sc.At, err = ParseTimeOfDay(hhmm); err != nil {
			log.Printf("WARN: skipping schedule %d: %v", sc.ID, err)
			continue
		}
		schedules = append(schedules, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule rows: %w", err)
	}
	return schedules, nil
}
