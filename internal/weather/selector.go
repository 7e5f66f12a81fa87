package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when a forecast has fewer days than a kind needs.
	ErrInsufficientData = errors.New("insufficient forecast data")
	// ErrEmptyForecast is returned when a provider yields no usable days.
	ErrEmptyForecast = errors.New("empty forecast")
	// ErrNotFound is returned by geocoders when a place name has no match.
	ErrNotFound = errors.New("location not found")
)

// SelectDays returns the days of the forecast relevant to kind.
// The result is never empty.
func SelectDays(kind Kind, forecast Forecast) (Forecast, error) {
	switch kind {
	case KindToday:
		if len(forecast) < 1 {
			return nil, fmt.Errorf("%w: today needs 1 day, got 0", ErrInsufficientData)
		}
		return forecast[:1], nil
	case KindTomorrow:
		if len(forecast) < 2 {
			return nil, fmt.Errorf("%w: tomorrow needs 2 days, got %d", ErrInsufficientData, len(forecast))
		}
		return forecast[1:2], nil
	case KindThreeDays:
		if len(forecast) < 1 {
			return nil, fmt.Errorf("%w: three_days needs at least 1 day, got 0", ErrInsufficientData)
		}
		return forecast[:min(3, len(forecast))], nil
	default:
		return nil, fmt.Errorf("select days: %s", kind)
	}
}

// ChooseVisualCategory picks the category used to illustrate the given days.
// Single-day kinds use the first day; three_days uses the most severe day,
// first occurrence winning ties.
func ChooseVisualCategory(kind Kind, days Forecast) Category {
	if len(days) == 0 {
		return CategoryCloudy
	}

	switch kind {
	case KindThreeDays:
		best := days[0].Category()
		for _, d := range days[1:] {
			if c := d.Category(); c.Severity() > best.Severity() {
				best = c
			}
		}
		return best
	default:
		return days[0].Category()
	}
}
