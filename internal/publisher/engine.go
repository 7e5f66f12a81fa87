// Package publisher runs publication cycles: resolve the city, fetch the
// forecast, and deliver it once per channel per forecast kind and day.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/telegram-weather-publisher/internal/content"
	"github.com/i474232898/telegram-weather-publisher/internal/store"
	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

const (
	// forecastWindow is how many days are fetched per cycle regardless of kind.
	forecastWindow = 3
	// ledgerWriteTimeout bounds a ledger write once the cycle context is gone.
	ledgerWriteTimeout = 10 * time.Second
)

// ErrNoActiveLocation is returned when neither a default nor an active city exists.
var ErrNoActiveLocation = errors.New("no active city to publish for")

// Store is the configuration state the engine reads.
type Store interface {
	ServiceConfig(ctx context.Context) (store.ServiceConfig, error)
	GetCity(ctx context.Context, id int64) (store.City, error)
	FirstActiveCity(ctx context.Context) (store.City, error)
	SetCityCoordinates(ctx context.Context, id int64, at weather.Coordinates) error
	ActiveChannels(ctx context.Context) ([]store.Channel, error)
}

// Ledger records publication attempts and answers deduplication queries.
type Ledger interface {
	HasSuccessful(ctx context.Context, channelID int64, kind weather.Kind, date time.Time) (bool, error)
	Record(ctx context.Context, p store.Publication) error
}

// Weather provides forecasts and geocoding.
type Weather interface {
	Forecast(ctx context.Context, at weather.Coordinates, days int) (weather.Forecast, error)
	Geocode(ctx context.Context, name string) (weather.Coordinates, error)
}

// Messenger delivers a captioned video and returns the message id.
type Messenger interface {
	SendVideo(ctx context.Context, chatID, caption, videoPath string) (string, error)
}

// Engine publishes forecasts. It is safe for concurrent use; duplicate
// deliveries across concurrent cycles are prevented by the ledger.
type Engine struct {
	store     Store
	ledger    Ledger
	weather   Weather
	messenger Messenger
	mediaRoot string
}

// New creates a new Engine.
func New(st Store, ledger Ledger, wx Weather, messenger Messenger, mediaRoot string) *Engine {
	return &Engine{
		store:     st,
		ledger:    ledger,
		weather:   wx,
		messenger: messenger,
		mediaRoot: mediaRoot,
	}
}

// delivery is the outcome of sending to one channel.
type delivery struct {
	messageID string
	err       error
}

// Publish runs one cycle for kind and returns the number of successful deliveries.
// Errors before the per-channel loop abort the cycle; per-channel failures are
// recorded in the ledger and never abort it.
func (e *Engine) Publish(ctx context.Context, kind weather.Kind) (int, error) {
	cfg, err := e.store.ServiceConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("load service config: %w", err)
	}
	if !cfg.ServiceEnabled {
		return 0, nil
	}

	cycleID := uuid.NewString()

	city, err := e.resolveCity(ctx, cfg)
	if err != nil {
		return 0, err
	}

	channels, err := e.store.ActiveChannels(ctx)
	if err != nil {
		return 0, fmt.Errorf("load channels: %w", err)
	}
	if len(channels) == 0 {
		log.Printf("INFO: publisher: no active channels found (type=%s cycle=%s)", kind, cycleID)
		return 0, nil
	}

	forecast, err := e.weather.Forecast(ctx, *city.Coords, forecastWindow)
	if err != nil {
		return 0, fmt.Errorf("fetch forecast for %s: %w", city.Name, err)
	}

	days, err := weather.SelectDays(kind, forecast)
	if err != nil {
		return 0, err
	}
	targetDate := days[0].Date
	caption := content.Caption(city.Name, kind, days)
	video := content.VideoPath(e.mediaRoot, weather.ChooseVisualCategory(kind, days))

	successful := 0
	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			log.Printf("WARN: publisher: cycle %s abandoned: %v", cycleID, err)
			return successful, err
		}

		done, err := e.ledger.HasSuccessful(ctx, ch.ID, kind, targetDate)
		if err != nil {
			log.Printf("ERROR: publisher: dedup check failed channel=%s type=%s: %v", ch.ChatID, kind, err)
			e.record(ctx, ch, store.Publication{
				ChannelID:  ch.ID,
				CityID:     city.ID,
				Kind:       kind,
				TargetDate: targetDate,
				Error:      "dedup check: " + err.Error(),
				CycleID:    cycleID,
			})
			continue
		}
		if done {
			log.Printf("INFO: publisher: skip duplicated publication channel=%s type=%s date=%s",
				ch.ChatID, kind, targetDate.Format(weather.DateLayout))
			continue
		}

		d := e.deliver(ctx, ch, caption, video)
		rec := store.Publication{
			ChannelID:  ch.ID,
			CityID:     city.ID,
			Kind:       kind,
			TargetDate: targetDate,
			MessageID:  d.messageID,
			Success:    d.err == nil,
			CycleID:    cycleID,
		}
		if d.err != nil {
			log.Printf("ERROR: publisher: publish failed channel=%s type=%s: %v", ch.ChatID, kind, d.err)
			rec.Error = d.err.Error()
		} else {
			successful++
		}

		e.record(ctx, ch, rec)
	}

	log.Printf("INFO: publisher: publish completed type=%s city=%s successful=%d cycle=%s",
		kind, city.Name, successful, cycleID)
	return successful, nil
}

// resolveCity picks the configured default city, falling back to the first
// active one, and geocodes it once if it has no coordinates yet.
func (e *Engine) resolveCity(ctx context.Context, cfg store.ServiceConfig) (store.City, error) {
	var (
		city store.City
		err  error
	)
	if cfg.DefaultCityID != nil {
		city, err = e.store.GetCity(ctx, *cfg.DefaultCityID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return store.City{}, fmt.Errorf("load default city: %w", err)
		}
	}
	if cfg.DefaultCityID == nil || err != nil {
		city, err = e.store.FirstActiveCity(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return store.City{}, ErrNoActiveLocation
		}
		if err != nil {
			return store.City{}, fmt.Errorf("load active city: %w", err)
		}
	}

	if city.Coords == nil {
		at, err := e.weather.Geocode(ctx, city.Name)
		if err != nil {
			return store.City{}, err
		}
		if err := e.store.SetCityCoordinates(ctx, city.ID, at); err != nil {
			return store.City{}, fmt.Errorf("save coordinates for %s: %w", city.Name, err)
		}
		city.Coords = &at
	}
	return city, nil
}

// record writes an attempt to the ledger. A message already handed to
// Telegram must be recorded even if the cycle is cancelled meanwhile.
func (e *Engine) record(ctx context.Context, ch store.Channel, rec store.Publication) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
	defer cancel()

	if err := e.ledger.Record(ctx, rec); err != nil {
		log.Printf("ERROR: publisher: %v (channel=%s type=%s)", err, ch.ChatID, rec.Kind)
	}
}

func (e *Engine) deliver(ctx context.Context, ch store.Channel, caption, video string) delivery {
	id, err := e.messenger.SendVideo(ctx, ch.ChatID, caption, video)
	if err != nil {
		return delivery{err: err}
	}
	return delivery{messageID: id}
}
