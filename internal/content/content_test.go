package content

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/i474232898/telegram-weather-publisher/internal/weather"
)

func day(date string, tmin, tmax float64, code int) weather.DayRecord {
	d, _ := time.Parse(weather.DateLayout, date)
	return weather.DayRecord{Date: d, TempMin: tmin, TempMax: tmax, Code: code}
}

func TestCaptionToday(t *testing.T) {
	caption := Caption("Москва", weather.KindToday, weather.Forecast{day("2026-02-12", -2, 3, 0)})

	for _, want := range []string{"Погода в Москва", "Сегодня:", "Температура: -2..3°C", "Описание: ясно", "Хорошего дня"} {
		if !strings.Contains(caption, want) {
			t.Errorf("caption %q does not contain %q", caption, want)
		}
	}
}

func TestCaptionThreeDays(t *testing.T) {
	days := weather.Forecast{
		day("2026-02-12", -2, 3, 0),
		day("2026-02-13", -1, 2, 61),
		day("2026-02-14", -5, 1, 71),
	}
	caption := Caption("Казань", weather.KindThreeDays, days)

	for _, want := range []string{"Ближайшие 3 дня", "2026-02-13: -1..2°C, дождь", "2026-02-14: -5..1°C, снег", "Отличной погоды"} {
		if !strings.Contains(caption, want) {
			t.Errorf("caption %q does not contain %q", caption, want)
		}
	}
}

func TestCaptionRoundsHalfToEven(t *testing.T) {
	caption := Caption("Сочи", weather.KindTomorrow, weather.Forecast{day("2026-02-13", 2.5, 3.5, 3)})
	if !strings.Contains(caption, "Температура: 2..4°C") {
		t.Fatalf("unexpected rounding in %q", caption)
	}
}

func TestVideoPath(t *testing.T) {
	got := VideoPath("/media", weather.CategoryThunderstorm)
	if want := filepath.Join("/media", "videos", "thunderstorm.mp4"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	got = VideoPath("/media", weather.Category("hail"))
	if want := filepath.Join("/media", "videos", "cloudy.mp4"); got != want {
		t.Fatalf("expected fallback %s, got %s", want, got)
	}
}
