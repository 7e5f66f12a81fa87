package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ensureServiceConfig creates the singleton row if it does not exist yet.
func (s *Store) ensureServiceConfig(ctx context.Context) error {
	ts := s.timestamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_config (singleton, service_enabled, created_at, updated_at)
		VALUES (1, 1, ?, ?)
		ON CONFLICT(singleton) DO NOTHING
	`, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create service config: %w", err)
	}
	return nil
}

// ServiceConfig returns the singleton configuration, creating it on first access.
func (s *Store) ServiceConfig(ctx context.Context) (ServiceConfig, error) {
	if err := s.ensureServiceConfig(ctx); err != nil {
		return ServiceConfig{}, err
	}

	var (
		cfg         ServiceConfig
		defaultCity sql.NullInt64
		updatedAt   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT service_enabled, default_city_id, updated_at FROM service_config WHERE singleton = 1
	`).Scan(&cfg.ServiceEnabled, &defaultCity, &updatedAt)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("failed to get service config: %w", err)
	}

	if defaultCity.Valid {
		id := defaultCity.Int64
		cfg.DefaultCityID = &id
	}
	cfg.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return cfg, nil
}

// SetServiceEnabled turns publishing on or off globally.
func (s *Store) SetServiceEnabled(ctx context.Context, enabled bool) error {
	return s.updateServiceConfig(ctx, `service_enabled = ?`, enabled)
}

// SetDefaultCity sets (or clears, with nil) the city publications are made for.
func (s *Store) SetDefaultCity(ctx context.Context, cityID *int64) error {
	var arg any
	if cityID != nil {
		arg = *cityID
	}
	return s.updateServiceConfig(ctx, `default_city_id = ?`, arg)
}

func (s *Store) updateServiceConfig(ctx context.Context, set string, arg any) error {
	if err := s.ensureServiceConfig(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE service_config SET `+set+`, singleton = 1, updated_at = ? WHERE singleton = 1`,
		arg, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("failed to update service config: %w", err)
	}
	return nil
}
