// Package content renders the caption and picks the video for a publication.
package content

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

var videoByCategory = map[weather.Category]string{
	weather.CategorySunny:        "sunny.mp4",
	weather.CategoryCloudy:       "cloudy.mp4",
	weather.CategoryRain:         "rain.mp4",
	weather.CategorySnow:         "snow.mp4",
	weather.CategoryThunderstorm: "thunderstorm.mp4",
}

// Title is the heading printed above the forecast for a kind.
func Title(kind weather.Kind) string {
	switch kind {
	case weather.KindToday:
		return "Сегодня"
	case weather.KindTomorrow:
		return "Завтра"
	case weather.KindThreeDays:
		return "Ближайшие 3 дня"
	default:
		return kind.String()
	}
}

// Caption builds the message text for the selected days of a forecast.
func Caption(city string, kind weather.Kind, days weather.Forecast) string {
	title := Title(kind)

	if kind != weather.KindThreeDays && len(days) > 0 {
		day := days[0]
		return fmt.Sprintf(
			"🌤 Погода в %s\n\n%s:\nТемпература: %s\nОписание: %s\n\nХорошего дня ☀️",
			city, title, tempRange(day), day.Label(),
		)
	}

	lines := []string{"🌤 Погода в " + city, "", title + ":"}
	for _, day := range days {
		lines = append(lines, fmt.Sprintf("%s: %s, %s", day.DateString(), tempRange(day), day.Label()))
	}
	lines = append(lines, "", "Отличной погоды ☀️")
	return strings.Join(lines, "\n")
}

// VideoPath returns the illustration for a category under mediaRoot/videos.
func VideoPath(mediaRoot string, category weather.Category) string {
	name, ok := videoByCategory[category]
	if !ok {
		name = videoByCategory[weather.CategoryCloudy]
	}
	return filepath.Join(mediaRoot, "videos", name)
}

func tempRange(day weather.DayRecord) string {
	return fmt.Sprintf("%d..%d°C", int(math.RoundToEven(day.TempMin)), int(math.RoundToEven(day.TempMax)))
}
