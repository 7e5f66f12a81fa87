package publisher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/telegram-weather-publisher/internal/store"
	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

type fakeWeather struct {
	mu           sync.Mutex
	forecast     weather.Forecast
	forecastErr  error
	geocodeErr   error
	geocoded     weather.Coordinates
	forecastHits int
	geocodeHits  int
}

func (f *fakeWeather) Forecast(_ context.Context, _ weather.Coordinates, _ int) (weather.Forecast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forecastHits++
	if f.forecastErr != nil {
		return nil, f.forecastErr
	}
	return f.forecast, nil
}

func (f *fakeWeather) Geocode(_ context.Context, _ string) (weather.Coordinates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.geocodeHits++
	if f.geocodeErr != nil {
		return weather.Coordinates{}, f.geocodeErr
	}
	return f.geocoded, nil
}

type sentVideo struct {
	chatID, caption, video string
}

type fakeMessenger struct {
	mu      sync.Mutex
	failFor map[string]bool
	sent    []sentVideo
	nextID  int

	// afterSend runs once a video has been accepted.
	afterSend func()
}

func (m *fakeMessenger) SendVideo(_ context.Context, chatID, caption, video string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[chatID] {
		return "", fmt.Errorf("chat not found: %s", chatID)
	}
	m.nextID++
	m.sent = append(m.sent, sentVideo{chatID: chatID, caption: caption, video: video})
	if m.afterSend != nil {
		m.afterSend()
	}
	return fmt.Sprintf("%d", m.nextID), nil
}

// flakyLedger fails the dedup check for one channel and passes the rest through.
type flakyLedger struct {
	*store.Store
	brokenChannel int64
}

func (l flakyLedger) HasSuccessful(ctx context.Context, channelID int64, kind weather.Kind, date time.Time) (bool, error) {
	if channelID == l.brokenChannel {
		return false, errors.New("database is locked")
	}
	return l.Store.HasSuccessful(ctx, channelID, kind, date)
}

func day(t *testing.T, date string, code int) weather.DayRecord {
	t.Helper()
	d, err := time.Parse(weather.DateLayout, date)
	require.NoError(t, err)
	return weather.DayRecord{Date: d, TempMin: -1, TempMax: 4, Code: code}
}

type fixture struct {
	st        *store.Store
	wx        *fakeWeather
	messenger *fakeMessenger
	engine    *Engine
	city      store.City
}

func newFixture(t *testing.T, chatIDs ...string) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	city, err := st.UpsertCity(ctx, "Москва", true)
	require.NoError(t, err)
	require.NoError(t, st.SetCityCoordinates(ctx, city.ID, weather.Coordinates{Lat: 55.75, Lon: 37.61}))

	for _, id := range chatIDs {
		_, err := st.UpsertChannel(ctx, id, id, true)
		require.NoError(t, err)
	}

	wx := &fakeWeather{forecast: weather.Forecast{
		day(t, "2026-02-12", 0),
		day(t, "2026-02-13", 61),
		day(t, "2026-02-14", 71),
	}}
	messenger := &fakeMessenger{failFor: map[string]bool{}}

	return &fixture{
		st:        st,
		wx:        wx,
		messenger: messenger,
		engine:    New(st, st, wx, messenger, "/media"),
		city:      city,
	}
}

func countRecords(t *testing.T, st *store.Store) (success, failed int) {
	t.Helper()
	pubs, err := st.ListPublications(context.Background(), 1000)
	require.NoError(t, err)
	for _, p := range pubs {
		if p.Success {
			success++
		} else {
			failed++
			assert.NotEmpty(t, p.Error)
		}
	}
	return success, failed
}

func TestPublishIsIdempotent(t *testing.T) {
	f := newFixture(t, "@a", "@b")
	ctx := context.Background()

	n, err := f.engine.Publish(ctx, weather.KindToday)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.engine.Publish(ctx, weather.KindToday)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	success, failed := countRecords(t, f.st)
	assert.Equal(t, 2, success)
	assert.Equal(t, 0, failed)
	assert.Len(t, f.messenger.sent, 2)

	// A different kind targets a different (kind, date) pair.
	n, err = f.engine.Publish(ctx, weather.KindTomorrow)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPublishIsolatesChannelFailures(t *testing.T) {
	f := newFixture(t, "@a", "@b", "@c")
	f.messenger.failFor["@b"] = true

	n, err := f.engine.Publish(context.Background(), weather.KindToday)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	success, failed := countRecords(t, f.st)
	assert.Equal(t, 2, success)
	assert.Equal(t, 1, failed)

	sentTo := []string{f.messenger.sent[0].chatID, f.messenger.sent[1].chatID}
	assert.Equal(t, []string{"@a", "@c"}, sentTo)
}

func TestPublishRetriesFailedChannelNextCycle(t *testing.T) {
	f := newFixture(t, "@a", "@b")
	f.messenger.failFor["@b"] = true
	ctx := context.Background()

	n, err := f.engine.Publish(ctx, weather.KindToday)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.messenger.failFor["@b"] = false
	n, err = f.engine.Publish(ctx, weather.KindToday)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	success, failed := countRecords(t, f.st)
	assert.Equal(t, 2, success)
	assert.Equal(t, 1, failed)
}

func TestPublishDisabledIsNoop(t *testing.T) {
	f := newFixture(t, "@a")
	ctx := context.Background()
	require.NoError(t, f.st.SetServiceEnabled(ctx, false))

	for _, kind := range weather.Kinds() {
		n, err := f.engine.Publish(ctx, kind)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	}

	success, failed := countRecords(t, f.st)
	assert.Zero(t, success+failed)
	assert.Zero(t, f.wx.forecastHits)
	assert.Empty(t, f.messenger.sent)
}

func TestPublishWithoutChannels(t *testing.T) {
	f := newFixture(t)

	n, err := f.engine.Publish(context.Background(), weather.KindToday)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Zero(t, f.wx.forecastHits)
}

func TestPublishWithoutActiveCity(t *testing.T) {
	f := newFixture(t, "@a")
	ctx := context.Background()
	_, err := f.st.UpsertCity(ctx, f.city.Name, false)
	require.NoError(t, err)

	_, err = f.engine.Publish(ctx, weather.KindToday)
	assert.ErrorIs(t, err, ErrNoActiveLocation)
}

func TestPublishUsesDefaultCity(t *testing.T) {
	f := newFixture(t, "@a")
	ctx := context.Background()

	spb, err := f.st.UpsertCity(ctx, "Санкт-Петербург", true)
	require.NoError(t, err)
	require.NoError(t, f.st.SetCityCoordinates(ctx, spb.ID, weather.Coordinates{Lat: 59.93, Lon: 30.31}))
	require.NoError(t, f.st.SetDefaultCity(ctx, &spb.ID))

	_, err = f.engine.Publish(ctx, weather.KindToday)
	require.NoError(t, err)
	require.Len(t, f.messenger.sent, 1)
	assert.Contains(t, f.messenger.sent[0].caption, "Погода в Санкт-Петербург")
}

func TestPublishGeocodesMissingCoordinatesOnce(t *testing.T) {
	f := newFixture(t, "@a")
	ctx := context.Background()

	kazan, err := f.st.UpsertCity(ctx, "Казань", true)
	require.NoError(t, err)
	require.NoError(t, f.st.SetDefaultCity(ctx, &kazan.ID))
	f.wx.geocoded = weather.Coordinates{Lat: 55.79, Lon: 49.12}

	_, err = f.engine.Publish(ctx, weather.KindToday)
	require.NoError(t, err)
	_, err = f.engine.Publish(ctx, weather.KindTomorrow)
	require.NoError(t, err)

	assert.Equal(t, 1, f.wx.geocodeHits)
	stored, err := f.st.GetCity(ctx, kazan.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Coords)
	assert.InDelta(t, 49.12, stored.Coords.Lon, 1e-9)
}

func TestPublishGeocodingFailureAbortsCycle(t *testing.T) {
	f := newFixture(t, "@a")
	ctx := context.Background()

	ghost, err := f.st.UpsertCity(ctx, "Нигдебург", true)
	require.NoError(t, err)
	require.NoError(t, f.st.SetDefaultCity(ctx, &ghost.ID))
	f.wx.geocodeErr = fmt.Errorf("%w: Нигдебург", weather.ErrNotFound)

	_, err = f.engine.Publish(ctx, weather.KindToday)
	assert.ErrorIs(t, err, weather.ErrNotFound)
	assert.Zero(t, f.wx.forecastHits)
	assert.Empty(t, f.messenger.sent)
}

func TestPublishForecastErrorsAbortCycle(t *testing.T) {
	f := newFixture(t, "@a")
	ctx := context.Background()

	f.wx.forecastErr = errors.New("provider down")
	_, err := f.engine.Publish(ctx, weather.KindToday)
	assert.ErrorContains(t, err, "provider down")

	f.wx.forecastErr = nil
	f.wx.forecast = f.wx.forecast[:1]
	_, err = f.engine.Publish(ctx, weather.KindTomorrow)
	assert.ErrorIs(t, err, weather.ErrInsufficientData)

	success, failed := countRecords(t, f.st)
	assert.Zero(t, success+failed)
}

func TestPublishTargetsSelectedDayAndMedia(t *testing.T) {
	f := newFixture(t, "@a")
	ctx := context.Background()

	_, err := f.engine.Publish(ctx, weather.KindTomorrow)
	require.NoError(t, err)
	_, err = f.engine.Publish(ctx, weather.KindThreeDays)
	require.NoError(t, err)

	require.Len(t, f.messenger.sent, 2)
	assert.Equal(t, filepath.Join("/media", "videos", "rain.mp4"), f.messenger.sent[0].video)
	assert.Equal(t, filepath.Join("/media", "videos", "snow.mp4"), f.messenger.sent[1].video)

	tomorrow, _ := time.Parse(weather.DateLayout, "2026-02-13")
	n, err := f.st.CountSuccessful(ctx, weather.KindTomorrow, tomorrow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	today, _ := time.Parse(weather.DateLayout, "2026-02-12")
	n, err = f.st.CountSuccessful(ctx, weather.KindThreeDays, today)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPublishConcurrentCyclesDeliverOnceInLedger(t *testing.T) {
	f := newFixture(t, "@a", "@b")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Publish(context.Background(), weather.KindToday)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	success, _ := countRecords(t, f.st)
	assert.Equal(t, 2, success)
}

func TestPublishRecordsDeliveryAfterCancellation(t *testing.T) {
	f := newFixture(t, "@a")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.messenger.afterSend = cancel

	n, err := f.engine.Publish(ctx, weather.KindToday)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	success, failed := countRecords(t, f.st)
	assert.Equal(t, 1, success)
	assert.Zero(t, failed)

	// The next cycle sees the recorded delivery and sends nothing.
	f.messenger.afterSend = nil
	n, err = f.engine.Publish(context.Background(), weather.KindToday)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.messenger.sent, 1)
}

func TestPublishRecordsFailedDedupCheck(t *testing.T) {
	f := newFixture(t, "@a", "@b")
	ctx := context.Background()

	broken, err := f.st.UpsertChannel(ctx, "@b", "@b", true)
	require.NoError(t, err)
	f.engine.ledger = flakyLedger{Store: f.st, brokenChannel: broken.ID}

	n, err := f.engine.Publish(ctx, weather.KindToday)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, "@a", f.messenger.sent[0].chatID)

	pubs, err := f.st.ListPublications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pubs, 2)
	for _, p := range pubs {
		if p.ChannelID == broken.ID {
			assert.False(t, p.Success)
			assert.Contains(t, p.Error, "database is locked")
		} else {
			assert.True(t, p.Success)
		}
	}
}
