package store

import (
	"fmt"
	"time"

	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

// City is a place forecasts can be published for.
type City struct {
	ID     int64
	Name   string
	Coords *weather.Coordinates // nil until geocoded
	Active bool
}

// Channel is a Telegram destination.
type Channel struct {
	ID     int64
	Name   string
	ChatID string
	Active bool
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (a trailing ":SS" is accepted and ignored).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q; use HH:MM", s)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// On returns the instant at this time of day on the date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

// Schedule is a publication rule for one forecast kind.
type Schedule struct {
	ID     int64
	Kind   weather.Kind
	At     TimeOfDay
	Active bool
}

// ServiceConfig is the process-wide configuration record. Exactly one exists.
type ServiceConfig struct {
	ServiceEnabled bool
	DefaultCityID  *int64
	UpdatedAt      time.Time
}

// Publication is one attempt to publish a forecast to a channel.
type Publication struct {
	ID         int64
	ChannelID  int64
	CityID     int64
	Kind       weather.Kind
	TargetDate time.Time
	MessageID  string
	Success    bool
	Error      string
	CycleID    string
	CreatedAt  time.Time
}
