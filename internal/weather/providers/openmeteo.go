package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/telegram-weather-publisher/internal/weather"
	"github.com/sony/gobreaker"
)

const (
	DefaultOpenMeteoForecastURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultOpenMeteoGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
)

// OpenMeteoProvider implements weather.Forecaster and weather.Geocoder for Open-Meteo.
type OpenMeteoProvider struct {
	name         string
	forecastURL  string
	geocodingURL string
	httpCfg      HTTPClientConfig
	circuit      *gobreaker.CircuitBreaker
}

// NewOpenMeteoProvider builds a provider; empty URLs fall back to the public endpoints.
func NewOpenMeteoProvider(client *http.Client, forecastURL, geocodingURL string) *OpenMeteoProvider {
	if forecastURL == "" {
		forecastURL = DefaultOpenMeteoForecastURL
	}
	if geocodingURL == "" {
		geocodingURL = DefaultOpenMeteoGeocodingURL
	}

	return &OpenMeteoProvider{
		name:         "openmeteo",
		forecastURL:  forecastURL,
		geocodingURL: geocodingURL,
		httpCfg:      defaultHTTPConfig(client),
		circuit:      newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// Geocode resolves a city name to the coordinates of the best match.
func (p *OpenMeteoProvider) Geocode(ctx context.Context, name string) (weather.Coordinates, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("name", name)
		values.Set("count", "1")
		values.Set("language", "ru")
		values.Set("format", "json")

		return http.NewRequestWithContext(ctx, http.MethodGet, p.geocodingURL+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Coordinates{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Coordinates{}, err
	}

	if len(payload.Results) == 0 {
		return weather.Coordinates{}, fmt.Errorf("%w: %s", weather.ErrNotFound, name)
	}

	first := payload.Results[0]
	return weather.Coordinates{Lat: first.Latitude, Lon: first.Longitude}, nil
}

// FetchForecast returns the daily forecast starting today (in the point's local timezone).
func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, at weather.Coordinates, days int) (weather.Forecast, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(at.Lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(at.Lon, 'f', -1, 64))
		values.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min,"+
			"relative_humidity_2m_mean,wind_speed_10m_max,precipitation_probability_max")
		values.Set("wind_speed_unit", "ms")
		values.Set("forecast_days", strconv.Itoa(max(days, 1)))
		values.Set("timezone", "auto")

		return http.NewRequestWithContext(ctx, http.MethodGet, p.forecastURL+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Daily struct {
			Time              []string   `json:"time"`
			TempMax           []*float64 `json:"temperature_2m_max"`
			TempMin           []*float64 `json:"temperature_2m_min"`
			WeatherCode       []*int     `json:"weather_code"`
			WeatherCodeLegacy []*int     `json:"weathercode"`
			Humidity          []*float64 `json:"relative_humidity_2m_mean"`
			WindSpeed         []*float64 `json:"wind_speed_10m_max"`
			PrecipProbability []*float64 `json:"precipitation_probability_max"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	daily := payload.Daily
	codes := daily.WeatherCode
	if len(codes) == 0 {
		codes = daily.WeatherCodeLegacy
	}

	// Days are selected by position, so only a trailing run of incomplete
	// rows may be dropped. A gap before a complete day is an error.
	forecast := make(weather.Forecast, 0, len(daily.Time))
	gap := ""
	for i, ds := range daily.Time {
		date, err := time.Parse(weather.DateLayout, ds)
		tmin, tmax, code := valueAt(daily.TempMin, i), valueAt(daily.TempMax, i), valueAt(codes, i)
		if err != nil || tmin == nil || tmax == nil || code == nil {
			log.Printf("WARN: openmeteo: incomplete weather payload for date=%s", ds)
			if gap == "" {
				gap = ds
			}
			continue
		}
		if gap != "" {
			return nil, fmt.Errorf("openmeteo: %w: day %s is incomplete", weather.ErrInsufficientData, gap)
		}

		forecast = append(forecast, weather.DayRecord{
			Date:              date,
			TempMin:           *tmin,
			TempMax:           *tmax,
			Code:              *code,
			HumidityPct:       valueAt(daily.Humidity, i),
			WindSpeedMS:       valueAt(daily.WindSpeed, i),
			PrecipProbability: valueAt(daily.PrecipProbability, i),
		})
	}

	if len(forecast) == 0 {
		return nil, fmt.Errorf("openmeteo: %w", weather.ErrEmptyForecast)
	}
	return forecast, nil
}

// valueAt returns the i-th element of a parallel payload array, or nil when absent.
func valueAt[T any](values []*T, i int) *T {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}
