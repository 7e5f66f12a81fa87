package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/telegram-weather-publisher/internal/weather"
	"github.com/i474232898/telegram-weather-publisher/internal/weather/providers"
)

var validate = validator.New()

type AppConfig struct {
	DatabasePath string `validate:"required"`
	MediaRoot    string `validate:"required"`

	TelegramBotToken   string
	TelegramAPIBaseURL string `validate:"required,url"`

	// Open-Meteo endpoints.
	ForecastURL  string `validate:"required,url"`
	GeocodingURL string `validate:"required,url"`

	// Optional fallback providers, enabled when their keys are set.
	WeatherAPIKey        string
	GoogleGeocoderAPIKey string

	HTTPTimeout time.Duration `validate:"gt=0"`

	// Forecast cache; a zero TTL disables it.
	ForecastCacheTTL     time.Duration `validate:"gte=0"`
	ForecastCacheHistory int           `validate:"gte=0"`

	SchedulerPollInterval   time.Duration `validate:"gt=0"`
	SchedulerMisfireGrace   time.Duration `validate:"gt=0"`
	SchedulerStartupCatchUp bool

	Timezone string `validate:"required"`
	Location *time.Location

	// CronSecretToken guards the remote trigger; empty disables it.
	CronSecretToken string

	TestPublishEveryMinute bool
	TestPublishKind        weather.Kind

	Port string `validate:"required,numeric"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.DatabasePath = getenvDefault("DATABASE_PATH", "data/app.db")
	cfg.MediaRoot = getenvDefault("MEDIA_ROOT", "media")

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramAPIBaseURL = strings.TrimRight(getenvDefault("TELEGRAM_API_BASE_URL", "https://api.telegram.org"), "/")

	cfg.ForecastURL = getenvDefault("WEATHER_API_BASE_URL", providers.DefaultOpenMeteoForecastURL)
	cfg.GeocodingURL = getenvDefault("GEOCODING_API_BASE_URL", providers.DefaultOpenMeteoGeocodingURL)
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GoogleGeocoderAPIKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.ForecastCacheTTL, err = getenvDuration("FORECAST_CACHE_TTL", "30m"); err != nil {
		return nil, err
	}
	cfg.ForecastCacheHistory = getenvInt("FORECAST_CACHE_HISTORY", 4)

	if cfg.SchedulerPollInterval, err = getenvDuration("SCHEDULER_POLL_INTERVAL", "30s"); err != nil {
		return nil, err
	}
	if cfg.SchedulerMisfireGrace, err = getenvDuration("SCHEDULER_MISFIRE_GRACE", "300s"); err != nil {
		return nil, err
	}
	cfg.SchedulerStartupCatchUp = getenvBool("SCHEDULER_STARTUP_CATCHUP", true)

	cfg.Timezone = getenvDefault("TIMEZONE", "Europe/Moscow")
	if cfg.Location, err = time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.CronSecretToken = os.Getenv("CRON_SECRET_TOKEN")

	cfg.TestPublishEveryMinute = getenvBool("TEST_PUBLISH_EVERY_MINUTE", false)
	if cfg.TestPublishKind, err = weather.ParseKind(getenvDefault("TEST_PUBLISH_FORECAST_TYPE", "today")); err != nil {
		return nil, fmt.Errorf("invalid TEST_PUBLISH_FORECAST_TYPE: %w", err)
	}

	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

// getenvDuration accepts Go durations ("30s") and bare seconds ("300").
func getenvDuration(key, def string) (time.Duration, error) {
	s := getenvDefault(key, def)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
