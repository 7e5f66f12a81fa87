package store

import (
	"context"
	"fmt"
)

// UpsertChannel inserts a channel or updates name and active flag by chat id.
func (s *Store) UpsertChannel(ctx context.Context, name, chatID string, active bool) (Channel, error) {
	ts := s.timestamp()
	var ch Channel
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO channels (name, chat_id, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			name = excluded.name, active = excluded.active, updated_at = excluded.updated_at
		RETURNING id, name, chat_id, active
	`, name, chatID, active, ts, ts).Scan(&ch.ID, &ch.Name, &ch.ChatID, &ch.Active)
	if err != nil {
		return Channel{}, fmt.Errorf("failed to upsert channel: %w", err)
	}
	return ch, nil
}

// ActiveChannels returns active channels ordered by name, then id.
func (s *Store) ActiveChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, chat_id, active FROM channels
		WHERE active = 1
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.ChatID, &ch.Active); err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel rows: %w", err)
	}
	return channels, nil
}

// CountActiveChannels returns the number of active channels.
func (s *Store) CountActiveChannels(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels WHERE active = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active channels: %w", err)
	}
	return count, nil
}
