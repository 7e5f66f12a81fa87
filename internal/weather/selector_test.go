package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forecastOf(codes ...int) Forecast {
	start := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	f := make(Forecast, len(codes))
	for i, code := range codes {
		f[i] = DayRecord{Date: start.AddDate(0, 0, i), Code: code}
	}
	return f
}

func TestSelectDays(t *testing.T) {
	f := forecastOf(0, 61, 71, 95)

	days, err := SelectDays(KindToday, f[:3])
	require.NoError(t, err)
	assert.Equal(t, f[:1], days)

	days, err = SelectDays(KindTomorrow, f[:3])
	require.NoError(t, err)
	assert.Equal(t, f[1:2], days)

	days, err = SelectDays(KindThreeDays, f)
	require.NoError(t, err)
	assert.Equal(t, f[:3], days)

	// Fewer than three days is still a valid three-day publication.
	days, err = SelectDays(KindThreeDays, f[:2])
	require.NoError(t, err)
	assert.Len(t, days, 2)
}

func TestSelectDaysInsufficientData(t *testing.T) {
	_, err := SelectDays(KindTomorrow, forecastOf(0))
	assert.ErrorIs(t, err, ErrInsufficientData)

	for _, kind := range Kinds() {
		_, err := SelectDays(kind, nil)
		assert.ErrorIs(t, err, ErrInsufficientData, kind.String())
	}

	_, err = SelectDays(Kind(0), forecastOf(0))
	assert.Error(t, err)
}

func TestChooseVisualCategory(t *testing.T) {
	assert.Equal(t, CategorySnow, ChooseVisualCategory(KindThreeDays, forecastOf(3, 61, 71)))
	assert.Equal(t, CategorySunny, ChooseVisualCategory(KindThreeDays, forecastOf(0)))
	assert.Equal(t, CategoryThunderstorm, ChooseVisualCategory(KindThreeDays, forecastOf(95, 71, 0)))

	for _, kind := range Kinds() {
		assert.Equal(t, CategoryCloudy, ChooseVisualCategory(kind, nil))
	}

	// Single-day kinds use the first day even when later days are worse.
	assert.Equal(t, CategorySunny, ChooseVisualCategory(KindToday, forecastOf(0, 95)))
	assert.Equal(t, CategoryRain, ChooseVisualCategory(KindTomorrow, forecastOf(61, 95)))
}

func TestCategoryForCode(t *testing.T) {
	cases := map[int]Category{
		0: CategorySunny, 1: CategoryCloudy, 3: CategoryCloudy, 45: CategoryCloudy, 48: CategoryCloudy,
		51: CategoryRain, 65: CategoryRain, 80: CategoryRain, 82: CategoryRain,
		71: CategorySnow, 77: CategorySnow, 85: CategorySnow, 86: CategorySnow,
		95: CategoryThunderstorm, 96: CategoryThunderstorm, 99: CategoryThunderstorm,
		-1: CategoryCloudy, 4: CategoryCloudy, 72: CategoryCloudy, 100: CategoryCloudy,
	}
	for code, want := range cases {
		assert.Equal(t, want, CategoryForCode(code), "code %d", code)
	}
	assert.Equal(t, "гроза", CategoryThunderstorm.Label())
	assert.Equal(t, "облачно", Category("hail").Label())
}

func TestKindRoundTrip(t *testing.T) {
	for _, kind := range Kinds() {
		got, err := ParseKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}
	_, err := ParseKind("weekly")
	assert.Error(t, err)
}
