// Package bootstrap prepares the database for a fresh deployment.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/i474232898/telegram-weather-publisher/internal/config"
	"github.com/i474232898/telegram-weather-publisher/internal/store"
	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

// DefaultSchedules are the publication times installed by EnsureDefaults.
var DefaultSchedules = map[weather.Kind]store.TimeOfDay{
	weather.KindToday:     {Hour: 8},
	weather.KindTomorrow:  {Hour: 13},
	weather.KindThreeDays: {Hour: 18},
}

// EnsureDefaults creates the service config and resets the three schedules
// to their default times.
func EnsureDefaults(ctx context.Context, st *store.Store) error {
	if _, err := st.ServiceConfig(ctx); err != nil {
		return err
	}
	for _, kind := range weather.Kinds() {
		if err := st.UpsertSchedule(ctx, kind, DefaultSchedules[kind], true); err != nil {
			return err
		}
	}
	log.Println("INFO: bootstrap: defaults are ready")
	return nil
}

// Apply writes the cities, channels and schedules of a seed file, then the
// service flags. It runs after EnsureDefaults, so seeded schedules win.
func Apply(ctx context.Context, st *store.Store, seed *config.Seed) error {
	for _, c := range seed.Cities {
		city, err := st.UpsertCity(ctx, c.Name, config.IsActive(c.Active))
		if err != nil {
			return err
		}
		if c.Lat != nil && c.Lon != nil {
			if err := st.SetCityCoordinates(ctx, city.ID, weather.Coordinates{Lat: *c.Lat, Lon: *c.Lon}); err != nil {
				return err
			}
		}
	}

	for _, ch := range seed.Channels {
		name := ch.Name
		if name == "" {
			name = ch.ChatID
		}
		if _, err := st.UpsertChannel(ctx, name, ch.ChatID, config.IsActive(ch.Active)); err != nil {
			return err
		}
	}

	for _, s := range seed.Schedules {
		kind, err := weather.ParseKind(s.Kind)
		if err != nil {
			return err
		}
		at, err := store.ParseTimeOfDay(s.Time)
		if err != nil {
			return fmt.Errorf("schedule %s: %w", s.Kind, err)
		}
		if err := st.UpsertSchedule(ctx, kind, at, config.IsActive(s.Active)); err != nil {
			return err
		}
	}

	if seed.ServiceEnabled != nil {
		if err := st.SetServiceEnabled(ctx, *seed.ServiceEnabled); err != nil {
			return err
		}
	}
	if seed.DefaultCity != "" {
		city, err := st.GetCityByName(ctx, seed.DefaultCity)
		if err != nil {
			return fmt.Errorf("default city %q: %w", seed.DefaultCity, err)
		}
		if err := st.SetDefaultCity(ctx, &city.ID); err != nil {
			return err
		}
	}

	log.Printf("INFO: bootstrap: seeded %d cities, %d channels, %d schedules",
		len(seed.Cities), len(seed.Channels), len(seed.Schedules))
	return nil
}
