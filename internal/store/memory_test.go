package store

import (
	"errors"
	"testing"
	"time"

	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

func TestMemoryStoreServesFreshForecast(t *testing.T) {
	now := time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore(2, 10*time.Minute, time.UTC)
	s.now = func() time.Time { return now }

	at := weather.Coordinates{Lat: 55.75, Lon: 37.61}
	if _, _, err := s.GetLatest(at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty cache, got %v", err)
	}

	s.SaveForecast(at, weather.Forecast{{Code: 0}, {Code: 61}})
	got, fetchedAt, err := s.GetLatest(at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || !fetchedAt.Equal(now) {
		t.Fatalf("unexpected cached forecast %v at %v", got, fetchedAt)
	}

	now = now.Add(11 * time.Minute)
	if _, _, err := s.GetLatest(at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected stale forecast to be rejected, got %v", err)
	}
}

func TestMemoryStoreRejectsForecastFromPreviousDay(t *testing.T) {
	now := time.Date(2026, 2, 12, 23, 58, 0, 0, time.UTC)
	s := NewMemoryStore(0, time.Hour, time.UTC)
	s.now = func() time.Time { return now }

	at := weather.Coordinates{Lat: 1, Lon: 2}
	s.SaveForecast(at, weather.Forecast{{Code: 0}})

	now = now.Add(5 * time.Minute)
	if _, _, err := s.GetLatest(at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected forecast from yesterday to be rejected, got %v", err)
	}
}

func TestMemoryStoreDayBoundaryFollowsLocation(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	// 23:50 in Moscow, still the same UTC day as the lookup below.
	now := time.Date(2026, 2, 12, 20, 50, 0, 0, time.UTC)
	s := NewMemoryStore(0, time.Hour, msk)
	s.now = func() time.Time { return now }

	at := weather.Coordinates{Lat: 55.75, Lon: 37.61}
	s.SaveForecast(at, weather.Forecast{{Code: 0}})

	now = now.Add(15 * time.Minute)
	if _, _, err := s.GetLatest(at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected forecast from before Moscow midnight to be rejected, got %v", err)
	}

	utc := NewMemoryStore(0, time.Hour, time.UTC)
	utc.now = s.now
	utc.SaveForecast(at, weather.Forecast{{Code: 0}})
	if _, _, err := utc.GetLatest(at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMemoryStoreRetention(t *testing.T) {
	s := NewMemoryStore(2, time.Hour, nil)
	at := weather.Coordinates{Lat: 1, Lon: 2}

	for code := 0; code < 5; code++ {
		s.SaveForecast(at, weather.Forecast{{Code: code}})
	}

	history := s.data[at.Key()]
	if len(history.Entries) != 2 {
		t.Fatalf("expected 2 entries after retention, got %d", len(history.Entries))
	}
	got, _, err := s.GetLatest(at)
	if err != nil || got[0].Code != 4 {
		t.Fatalf("expected latest code 4, got %v (%v)", got, err)
	}
}
