package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/i474232898/telegram-weather-publisher/internal/common"
	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

const maxErrorLen = 4000

// HasSuccessful reports whether the channel already received kind for date.
func (s *Store) HasSuccessful(ctx context.Context, channelID int64, kind weather.Kind, date time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM publications
			WHERE channel_id = ? AND forecast_type = ? AND target_date = ? AND success = 1
		)
	`, channelID, kind.String(), date.Format(weather.DateLayout)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check publication: %w", err)
	}
	return exists, nil
}

// Record appends a publication attempt to the ledger. A second successful
// record for the same channel, kind and date violates the unique index; that
// case is logged and swallowed because the other writer already recorded it.
func (s *Store) Record(ctx context.Context, p Publication) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO publications
			(channel_id, city_id, forecast_type, target_date, message_id, success, error, cycle_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ChannelID, p.CityID, p.Kind.String(), p.TargetDate.Format(weather.DateLayout),
		p.MessageID, p.Success, common.Truncate(p.Error, maxErrorLen), p.CycleID,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		log.Printf("WARN: ledger: concurrent duplicate publication detected channel=%d type=%s date=%s",
			p.ChannelID, p.Kind, p.TargetDate.Format(weather.DateLayout))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record publication: %w", err)
	}
	return nil
}

// CountSuccessful returns how many channels received kind for date.
func (s *Store) CountSuccessful(ctx context.Context, kind weather.Kind, date time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM publications WHERE forecast_type = ? AND target_date = ? AND success = 1
	`, kind.String(), date.Format(weather.DateLayout)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count publications: %w", err)
	}
	return count, nil
}

// ListPublications returns the most recent ledger entries, newest first.
func (s *Store) ListPublications(ctx context.Context, limit int) ([]Publication, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, city_id, forecast_type, target_date, message_id, success, error, cycle_id, created_at
		FROM publications
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list publications: %w", err)
	}
	defer rows.Close()

	var out []Publication
	for rows.Next() {
		var (
			p                       Publication
			kind, target, createdAt string
		)
		if err := rows.Scan(&p.ID, &p.ChannelID, &p.CityID, &kind, &target, &p.MessageID,
			&p.Success, &p.Error, &p.CycleID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan publication row: %w", err)
		}
		p.Kind, _ = weather.ParseKind(kind)
		p.TargetDate, _ = time.Parse(weather.DateLayout, target)
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating publication rows: %w", err)
	}
	return out, nil
}
