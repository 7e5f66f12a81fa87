package weather

import (
	"context"
	"time"
)

// Forecaster abstracts a daily forecast source (e.g. Open-Meteo, WeatherAPI).
type Forecaster interface {
	Name() string
	FetchForecast(ctx context.Context, at Coordinates, days int) (Forecast, error)
}

// Geocoder resolves a place name to coordinates. Implementations return an
// error wrapping ErrNotFound when the name has no match.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (Coordinates, error)
}

// Cache is the contract the in-memory forecast cache satisfies.
type Cache interface {
	SaveForecast(at Coordinates, forecast Forecast)
	GetLatest(at Coordinates) (Forecast, time.Time, error)
}
