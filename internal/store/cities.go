package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

const citySelect = `SELECT id, name, latitude, longitude, active FROM cities`

func scanCity(row interface{ Scan(...any) error }) (City, error) {
	var (
		c        City
		lat, lon sql.NullFloat64
	)
	if err := row.Scan(&c.ID, &c.Name, &lat, &lon, &c.Active); err != nil {
		return City{}, err
	}
	if lat.Valid && lon.Valid {
		c.Coords = &weather.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	}
	return c, nil
}

// UpsertCity inserts a city or updates the active flag of an existing one by name.
func (s *Store) UpsertCity(ctx context.Context, name string, active bool) (City, error) {
	ts := s.timestamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cities (name, active, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET active = excluded.active, updated_at = excluded.updated_at
	`, name, active, ts, ts)
	if err != nil {
		return City{}, fmt.Errorf("failed to upsert city: %w", err)
	}
	return s.GetCityByName(ctx, name)
}

// GetCity retrieves a city by id.
func (s *Store) GetCity(ctx context.Context, id int64) (City, error) {
	c, err := scanCity(s.db.QueryRowContext(ctx, citySelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return City{}, fmt.Errorf("city %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return City{}, fmt.Errorf("failed to get city: %w", err)
	}
	return c, nil
}

// GetCityByName retrieves a city by its unique name.
func (s *Store) GetCityByName(ctx context.Context, name string) (City, error) {
	c, err := scanCity(s.db.QueryRowContext(ctx, citySelect+` WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return City{}, fmt.Errorf("city %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return City{}, fmt.Errorf("failed to get city by name: %w", err)
	}
	return c, nil
}

// FirstActiveCity returns the active city that sorts first by name.
func (s *Store) FirstActiveCity(ctx context.Context) (City, error) {
	c, err := scanCity(s.db.QueryRowContext(ctx, citySelect+` WHERE active = 1 ORDER BY name ASC, id ASC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return City{}, fmt.Errorf("active city: %w", ErrNotFound)
	}
	if err != nil {
		return City{}, fmt.Errorf("failed to get first active city: %w", err)
	}
	return c, nil
}

// SetCityCoordinates stores geocoded coordinates for a city.
func (s *Store) SetCityCoordinates(ctx context.Context, id int64, at weather.Coordinates) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cities SET latitude = ?, longitude = ?, updated_at = ? WHERE id = ?
	`, at.Lat, at.Lon, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("failed to set city coordinates: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("city %d: %w", id, ErrNotFound)
	}
	return nil
}

// CountActiveCities returns the number of active cities.
func (s *Store) CountActiveCities(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cities WHERE active = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active cities: %w", err)
	}
	return count, nil
}
