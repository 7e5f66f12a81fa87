package store

import (
	"sync"
	"time"

	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

// cachedForecast is one fetched forecast and when it was fetched.
type cachedForecast struct {
	Forecast  weather.Forecast
	FetchedAt time.Time
}

// ForecastHistory holds a time-ordered list of fetched forecasts for a point.
type ForecastHistory struct {
	Entries []cachedForecast
}

// MemoryStore is a concurrency-safe in-memory cache of fetched forecasts.
type MemoryStore struct {
	mu sync.RWMutex

	// key: coordinates key, value: history
	data map[string]*ForecastHistory

	// retention configuration
	maxHistory int           // max number of forecasts per point
	maxAge     time.Duration // forecasts older than this are never served

	// loc decides where a calendar day starts.
	loc *time.Location
	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited. If maxAge is <= 0,
// nothing is ever served from the cache. A nil loc means time.Local.
func NewMemoryStore(maxHistory int, maxAge time.Duration, loc *time.Location) *MemoryStore {
	if loc == nil {
		loc = time.Local
	}
	return &MemoryStore{
		data:       make(map[string]*ForecastHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		loc:        loc,
		now:        time.Now,
	}
}

// SaveForecast appends a freshly fetched forecast for a point and enforces retention.
func (s *MemoryStore) SaveForecast(at weather.Coordinates, forecast weather.Forecast) {
	key := at.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &ForecastHistory{}
		s.data[key] = history
	}

	history.Entries = append(history.Entries, cachedForecast{
		Forecast:  append(weather.Forecast(nil), forecast...),
		FetchedAt: s.now(),
	})

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Entries) > s.maxHistory {
		over := len(history.Entries) - s.maxHistory
		history.Entries = history.Entries[over:]
	}

	// Enforce retention by age.
	cutoff := s.now().Add(-s.maxAge)
	i := 0
	for ; i < len(history.Entries); i++ {
		if !history.Entries[i].FetchedAt.Before(cutoff) {
			break
		}
	}
	if i > 0 && i < len(history.Entries) {
		history.Entries = history.Entries[i:]
	}
}

// GetLatest returns the most recent forecast for a point if it is still fresh.
func (s *MemoryStore) GetLatest(at weather.Coordinates) (weather.Forecast, time.Time, error) {
	key := at.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Entries) == 0 {
		return nil, time.Time{}, ErrNotFound
	}

	latest := history.Entries[len(history.Entries)-1]
	now := s.now()
	if s.maxAge <= 0 || now.Sub(latest.FetchedAt) > s.maxAge {
		return nil, time.Time{}, ErrNotFound
	}
	// A forecast fetched before midnight starts on the wrong day.
	if latest.FetchedAt.In(s.loc).Format(weather.DateLayout) != now.In(s.loc).Format(weather.DateLayout) {
		return nil, time.Time{}, ErrNotFound
	}
	return append(weather.Forecast(nil), latest.Forecast...), latest.FetchedAt, nil
}
