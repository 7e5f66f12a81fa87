package main

import (
	"log"
	"net/http"
	"time"

	"github.com/i474232898/telegram-weather-publisher/internal/config"
	"github.com/i474232898/telegram-weather-publisher/internal/publisher"
	"github.com/i474232898/telegram-weather-publisher/internal/store"
	"github.com/i474232898/telegram-weather-publisher/internal/telegram"
	"github.com/i474232898/telegram-weather-publisher/internal/weather"
	"github.com/i474232898/telegram-weather-publisher/internal/weather/providers"
)

// telegramUploadTimeout bounds a single sendVideo upload.
const telegramUploadTimeout = 2 * time.Minute

type app struct {
	store  *store.Store
	engine *publisher.Engine
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Printf("WARN: closing database: %v", err)
	}
}

func openStore(cfg *config.AppConfig) (*store.Store, error) {
	return store.Open(cfg.DatabasePath)
}

// newApp wires the store, weather providers and Telegram client into a
// publication engine.
func newApp(cfg *config.AppConfig) (*app, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	openMeteo := providers.NewOpenMeteoProvider(httpClient, cfg.ForecastURL, cfg.GeocodingURL)

	forecasters := []weather.Forecaster{openMeteo}
	if cfg.WeatherAPIKey != "" {
		forecasters = append(forecasters, providers.NewWeatherAPIProvider(httpClient, "", cfg.WeatherAPIKey))
	}

	geocoders := []weather.Geocoder{openMeteo}
	if cfg.GoogleGeocoderAPIKey != "" {
		geocoders = append(geocoders, providers.NewGoogleGeocoder(cfg.GoogleGeocoderAPIKey))
	}

	cache := store.NewMemoryStore(cfg.ForecastCacheHistory, cfg.ForecastCacheTTL, cfg.Location)
	wx := weather.NewService(cache, forecasters, geocoders)

	tg, err := telegram.New(&http.Client{Timeout: telegramUploadTimeout}, cfg.TelegramAPIBaseURL, cfg.TelegramBotToken)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		store:  st,
		engine: publisher.New(st, st, wx, tg, cfg.MediaRoot),
	}, nil
}
