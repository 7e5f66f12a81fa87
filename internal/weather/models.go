package weather

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for forecast days and ledger target dates.
const DateLayout = "2006-01-02"

// Kind is the closed set of forecast kinds a publication can be made for.
type Kind int

const (
	KindToday Kind = iota + 1
	KindTomorrow
	KindThreeDays
)

// Kinds returns every forecast kind in publication order.
func Kinds() []Kind {
	return []Kind{KindToday, KindTomorrow, KindThreeDays}
}

// ParseKind maps the persisted/wire name of a kind back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "today":
		return KindToday, nil
	case "tomorrow":
		return KindTomorrow, nil
	case "three_days":
		return KindThreeDays, nil
	default:
		return 0, fmt.Errorf("unknown forecast kind %q", s)
	}
}

func (k Kind) String() string {
	switch k {
	case KindToday:
		return "today"
	case KindTomorrow:
		return "tomorrow"
	case KindThreeDays:
		return "three_days"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Category represents a normalized weather category used to pick illustrations.
type Category string

const (
	CategorySunny        Category = "sunny"
	CategoryCloudy       Category = "cloudy"
	CategoryRain         Category = "rain"
	CategorySnow         Category = "snow"
	CategoryThunderstorm Category = "thunderstorm"
)

// Severity ranks categories for picking the dominant one over several days.
func (c Category) Severity() int {
	switch c {
	case CategoryThunderstorm:
		return 5
	case CategorySnow:
		return 4
	case CategoryRain:
		return 3
	case CategoryCloudy:
		return 2
	case CategorySunny:
		return 1
	default:
		return 0
	}
}

// Label is the human-readable (Russian) description printed in captions.
func (c Category) Label() string {
	switch c {
	case CategorySunny:
		return "ясно"
	case CategoryRain:
		return "дождь"
	case CategorySnow:
		return "снег"
	case CategoryThunderstorm:
		return "гроза"
	default:
		return "облачно"
	}
}

// CategoryForCode maps a WMO weather code to a category. Unrecognized codes are cloudy.
func CategoryForCode(code int) Category {
	switch {
	case code == 0:
		return CategorySunny
	case code >= 1 && code <= 3, code == 45, code == 48:
		return CategoryCloudy
	case code >= 51 && code <= 57, code >= 61 && code <= 67, code >= 80 && code <= 82:
		return CategoryRain
	case code == 71, code == 73, code == 75, code == 77, code == 85, code == 86:
		return CategorySnow
	case code == 95, code == 96, code == 99:
		return CategoryThunderstorm
	default:
		return CategoryCloudy
	}
}

// Coordinates is a resolved geographic point.
type Coordinates struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Key returns a canonical string key for indexing these coordinates in caches.
func (c Coordinates) Key() string {
	return fmt.Sprintf("%.4f:%.4f", c.Lat, c.Lon)
}

// DayRecord is a single day of a daily forecast.
type DayRecord struct {
	Date    time.Time `json:"date"` // civil date, midnight UTC
	TempMin float64   `json:"tempMinC"`
	TempMax float64   `json:"tempMaxC"`
	Code    int       `json:"weatherCode"`

	HumidityPct       *float64 `json:"humidityPercent,omitempty"`
	WindSpeedMS       *float64 `json:"windSpeed,omitempty"`
	PrecipProbability *float64 `json:"precipProbability,omitempty"`
}

// Category returns the normalized category for the day's weather code.
func (d DayRecord) Category() Category {
	return CategoryForCode(d.Code)
}

// Label returns the human-readable description of the day's weather.
func (d DayRecord) Label() string {
	return d.Category().Label()
}

// DateString formats the day as YYYY-MM-DD.
func (d DayRecord) DateString() string {
	return d.Date.Format(DateLayout)
}

// Forecast is an ordered (by date ascending) sequence of daily records.
type Forecast []DayRecord
