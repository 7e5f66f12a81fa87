package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/telegram-weather-publisher/internal/common"
	"github.com/i474232898/telegram-weather-publisher/internal/weather"
	"github.com/sony/gobreaker"
)

const DefaultWeatherAPIForecastURL = "https://api.weatherapi.com/v1/forecast.json"

// WeatherAPIProvider implements weather.Forecaster for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, baseURL, apiKey string) *WeatherAPIProvider {
	if baseURL == "" {
		baseURL = DefaultWeatherAPIForecastURL
	}

	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, at weather.Coordinates, days int) (weather.Forecast, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi api key is not configured")
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// WeatherAPI uses "q" for location; it accepts "lat,lon".
		values.Set("q", fmt.Sprintf("%f,%f", at.Lat, at.Lon))
		values.Set("days", strconv.Itoa(max(days, 1)))

		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Forecast struct {
			ForecastDay []struct {
				Date string `json:"date"`
				Day  struct {
					MaxTempC          float64 `json:"maxtemp_c"`
					MinTempC          float64 `json:"mintemp_c"`
					AvgHumidity       float64 `json:"avghumidity"`
					MaxWindKph        float64 `json:"maxwind_kph"`
					DailyChanceOfRain float64 `json:"daily_chance_of_rain"`
					Condition         struct {
						Text string `json:"text"`
					} `json:"condition"`
				} `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	forecast := make(weather.Forecast, 0, len(payload.Forecast.ForecastDay))
	gap := ""
	for _, fd := range payload.Forecast.ForecastDay {
		date, err := time.Parse(weather.DateLayout, fd.Date)
		if err != nil {
			if gap == "" {
				gap = fd.Date
			}
			continue
		}
		if gap != "" {
			return nil, fmt.Errorf("weatherapi: %w: bad date %q", weather.ErrInsufficientData, gap)
		}

		humidity := fd.Day.AvgHumidity
		// Convert wind from kph to m/s (approx).
		windMS := fd.Day.MaxWindKph / 3.6
		chance := fd.Day.DailyChanceOfRain

		forecast = append(forecast, weather.DayRecord{
			Date:              date,
			TempMin:           fd.Day.MinTempC,
			TempMax:           fd.Day.MaxTempC,
			Code:              weatherAPICode(fd.Day.Condition.Text),
			HumidityPct:       &humidity,
			WindSpeedMS:       &windMS,
			PrecipProbability: &chance,
		})
	}

	if len(forecast) == 0 {
		return nil, fmt.Errorf("weatherapi: %w", weather.ErrEmptyForecast)
	}
	return forecast, nil
}

// weatherAPICode maps WeatherAPI condition text to a representative WMO code.
func weatherAPICode(text string) int {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return -1
	case common.HasAny(t, "thunder", "storm"):
		return 95
	case common.HasAny(t, "snow", "sleet", "blizzard", "ice pellets"):
		return 71
	case common.HasAny(t, "rain", "shower", "drizzle"):
		return 61
	case common.HasAny(t, "sunny", "clear"):
		return 0
	case common.HasAny(t, "cloud", "overcast", "mist", "fog"):
		return 3
	default:
		return -1
	}
}
