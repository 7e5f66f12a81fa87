package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/telegram-weather-publisher/internal/common"
	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

// The geocoder package keeps its API key in a package variable.
var googleKeyMu sync.Mutex

// GoogleGeocoder implements weather.Geocoder using the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey string
	lookup func(geocoder.Address) (geocoder.Location, error)
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{
		apiKey: apiKey,
		lookup: geocoder.Geocoding,
	}
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, name string) (weather.Coordinates, error) {
	if g.apiKey == "" {
		return weather.Coordinates{}, fmt.Errorf("google geocoder api key is not configured")
	}
	if err := ctx.Err(); err != nil {
		return weather.Coordinates{}, err
	}

	googleKeyMu.Lock()
	geocoder.ApiKey = g.apiKey
	loc, err := g.lookup(geocoder.Address{City: name})
	googleKeyMu.Unlock()

	if err != nil {
		if common.HasAny(strings.ToLower(err.Error()), "zero_results", "no results", "not found") {
			return weather.Coordinates{}, fmt.Errorf("%w: %s", weather.ErrNotFound, name)
		}
		return weather.Coordinates{}, fmt.Errorf("google geocoding: %w", err)
	}

	return weather.Coordinates{Lat: loc.Latitude, Lon: loc.Longitude}, nil
}
