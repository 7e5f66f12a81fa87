package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Service orchestrates forecast providers, geocoders and the forecast cache.
type Service struct {
	cache       Cache
	forecasters []Forecaster
	geocoders   []Geocoder
}

// NewService creates a new Service. cache may be nil to disable caching.
func NewService(cache Cache, forecasters []Forecaster, geocoders []Geocoder) *Service {
	return &Service{
		cache:       cache,
		forecasters: forecasters,
		geocoders:   geocoders,
	}
}

// Forecast returns at least one day of forecast for the given point. Providers
// are tried in order and the first usable answer wins; a fresh cached forecast
// covering the requested number of days short-circuits the providers.
func (s *Service) Forecast(ctx context.Context, at Coordinates, days int) (Forecast, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be greater than zero")
	}

	if s.cache != nil {
		if cached, _, err := s.cache.GetLatest(at); err == nil && len(cached) >= days {
			log.Printf("DEBUG: forecast cache hit for %s", at.Key())
			return cached, nil
		}
	}

	if len(s.forecasters) == 0 {
		log.Printf("ERROR: No forecast providers available for %s", at.Key())
		return nil, fmt.Errorf("no forecast providers configured")
	}

	var lastErr error
	for _, p := range s.forecasters {
		forecast, err := p.FetchForecast(ctx, at, days)
		if err == nil && len(forecast) == 0 {
			err = ErrEmptyForecast
		}
		if err != nil {
			// Log and continue; the next provider may still answer.
			log.Printf("provider %s forecast failed for %s: %v", p.Name(), at.Key(), err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if s.cache != nil {
			s.cache.SaveForecast(at, forecast)
		}
		return forecast, nil
	}

	return nil, fmt.Errorf("fetch forecast for %s: %w", at.Key(), lastErr)
}

// Geocode resolves name with the first geocoder that finds it. When every
// geocoder fails and at least one reported no match, the error wraps ErrNotFound.
func (s *Service) Geocode(ctx context.Context, name string) (Coordinates, error) {
	if len(s.geocoders) == 0 {
		return Coordinates{}, fmt.Errorf("no geocoders configured")
	}

	var errs []error
	for _, g := range s.geocoders {
		at, err := g.Geocode(ctx, name)
		if err == nil {
			return at, nil
		}
		log.Printf("geocoding %q failed: %v", name, err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}

	return Coordinates{}, fmt.Errorf("geocode %q: %w", name, errors.Join(errs...))
}
