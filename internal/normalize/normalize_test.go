package normalize

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/bobby-s-dev/pinkweather/internal/models"
)

var narrativeHeader = []string{"timestamp", "date", "hour", "narrative_text", "text_length_px", "text_height_px", "line_count", "fits_display", "temp", "weather_desc"}

func TestFromCSVRowNarrative(t *testing.T) {
	row := []string{"1704067200", "2024-01-01", "00:00", "Clear and cold, <h>2</h>°.", "300", "60", "2", "true", "2", "clear"}

	s, err := FromCSVRow(narrativeHeader, row, NarrativeMapping, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Timestamp != 1704067200 {
		t.Errorf("expected timestamp 1704067200, got %d", s.Timestamp)
	}
	if s.Temp == nil || *s.Temp != 2 {
		t.Errorf("expected temp 2, got %v", s.Temp)
	}
	if s.ConditionText() != "clear" {
		t.Errorf("expected condition clear, got %q", s.ConditionText())
	}
	if s.Humidity != nil || s.Wind != nil || s.FeelsLike != nil {
		t.Error("expected columns absent from the mapping to stay missing")
	}
	if s.Icon != "01n" {
		t.Errorf("expected night clear icon, got %q", s.Icon)
	}
}

func TestFromCSVRowMissingTemp(t *testing.T) {
	row := []string{"1704067200", "2024-01-01", "00:00", "", "", "", "", "", "nan", "clear"}

	_, err := FromCSVRow(narrativeHeader, row, NarrativeMapping, time.UTC)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "temp" {
		t.Errorf("expected field temp, got %q", verr.Field)
	}
}

func TestFromCSVRowBadNumber(t *testing.T) {
	row := []string{"1704067200", "2024-01-01", "00:00", "", "", "", "", "", "warm", "clear"}

	_, err := FromCSVRow(narrativeHeader, row, NarrativeMapping, time.UTC)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestFromCSVRowOpenMeteo(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	header := []string{"time", "temperature_2m (°C)", "relative_humidity_2m (%)", "apparent_temperature (°C)", "weather_code (wmo code)", "wind_speed_10m (km/h)", "wind_gusts_10m (km/h)", "is_day ()"}
	row := []string{"2024-01-01T14:00", "4.2", "71", "0.9", "61", "18.4", "31.0", "1"}

	s, err := FromCSVRow(header, row, OpenMeteoMapping, loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 1, 14, 0, 0, 0, loc).Unix()
	if s.Timestamp != want {
		t.Errorf("expected %d, got %d", want, s.Timestamp)
	}
	if s.Local.Hour() != 14 {
		t.Errorf("expected local hour 14, got %d", s.Local.Hour())
	}
	if s.ConditionCode == nil || *s.ConditionCode != 61 {
		t.Fatalf("expected code 61, got %v", s.ConditionCode)
	}
	if s.ConditionText() != "Slight rain" {
		t.Errorf("expected description from code, got %q", s.ConditionText())
	}
	if s.Icon != "10d" {
		t.Errorf("expected icon 10d, got %q", s.Icon)
	}
	if s.Wind == nil || *s.Wind != 18.4 {
		t.Errorf("expected km/h wind kept as is, got %v", s.Wind)
	}
}

func TestFromProviderConvertsUnits(t *testing.T) {
	p := ProviderPayload{
		Units: "imperial",
		Current: ProviderCurrent{
			Dt:        1704067200,
			Temp:      models.Float(50),
			FeelsLike: models.Float(32),
			Wind:      models.Float(10),
			Condition: models.String("light rain"),
		},
		Forecast: []ProviderForecast{
			{Dt: 1704078000, Temp: models.Float(41), Icon: "10d", Condition: "rain", Pop: models.Float(0.8)},
		},
	}

	s, err := FromProvider(p, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(*s.Temp-10) > 1e-9 {
		t.Errorf("expected 10°C, got %v", *s.Temp)
	}
	if math.Abs(*s.FeelsLike) > 1e-9 {
		t.Errorf("expected 0°C, got %v", *s.FeelsLike)
	}
	if math.Abs(*s.Wind-16.09344) > 1e-9 {
		t.Errorf("expected 16.09 km/h, got %v", *s.Wind)
	}
	if s.High != nil || s.Low != nil || s.Humidity != nil {
		t.Error("expected missing fields to stay nil")
	}
	if len(s.Forecast) != 1 || math.Abs(*s.Forecast[0].Temp-5) > 1e-9 {
		t.Errorf("expected converted forecast, got %+v", s.Forecast)
	}
}

func TestFromProviderMetricWind(t *testing.T) {
	p := ProviderPayload{
		Units:   "metric",
		Current: ProviderCurrent{Dt: 1704067200, Temp: models.Float(0), Wind: models.Float(5)},
	}
	s, err := FromProvider(p, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *s.Wind != 18 {
		t.Errorf("expected 18 km/h, got %v", *s.Wind)
	}
	if *s.Temp != 0 {
		t.Error("expected a zero temperature to be kept")
	}
}

func TestFromProviderRejects(t *testing.T) {
	cases := []struct {
		name  string
		p     ProviderPayload
		field string
	}{
		{"no temp", ProviderPayload{Current: ProviderCurrent{Dt: 1}}, "temp"},
		{"no timestamp", ProviderPayload{Current: ProviderCurrent{Temp: models.Float(3)}}, "timestamp"},
		{"bad units", ProviderPayload{Units: "furlongs", Current: ProviderCurrent{Dt: 1, Temp: models.Float(3)}}, "units"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := FromProvider(c.p, time.UTC)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != c.field {
				t.Errorf("expected field %q, got %q", c.field, verr.Field)
			}
		})
	}
}

func TestFromProviderSanitizesOptionalFields(t *testing.T) {
	p := ProviderPayload{
		Current: ProviderCurrent{
			Dt:        1704067200,
			Temp:      models.Float(3),
			Humidity:  models.Float(140),
			Condition: models.String("rain <heavy>"),
		},
		AirQuality: &models.AirQuality{AQI: 4, Description: "<b>poor"},
		Forecast: []ProviderForecast{
			{Dt: 1704078000, Temp: models.Float(2), Condition: "snow</i>", Pop: models.Float(1.7)},
		},
	}

	s, err := FromProvider(p, time.UTC)
	if err != nil {
		t.Fatalf("out-of-range optional values must not fail: %v", err)
	}
	if s.Humidity != nil {
		t.Errorf("expected out-of-range humidity to be missing, got %v", *s.Humidity)
	}
	if s.ConditionText() != "rain heavy" {
		t.Errorf("expected markup stripped from condition, got %q", s.ConditionText())
	}
	if s.AirQuality.Description != "bpoor" {
		t.Errorf("expected markup stripped from air quality, got %q", s.AirQuality.Description)
	}
	if s.Forecast[0].Condition != "snow/i" || s.Forecast[0].Pop != nil {
		t.Errorf("unexpected forecast point %+v", s.Forecast[0])
	}
	if p.AirQuality.Description != "<b>poor" {
		t.Error("the payload itself must not be modified")
	}
}

func TestFromCSVRowAcceptsEpochZero(t *testing.T) {
	row := []string{"0", "1970-01-01", "00:00", "", "", "", "", "", "4", "clear"}

	s, err := FromCSVRow(narrativeHeader, row, NarrativeMapping, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Timestamp != 0 || s.Local.Year() != 1970 {
		t.Errorf("unexpected timestamp %d", s.Timestamp)
	}
}

func TestWMOIcon(t *testing.T) {
	cases := map[int]string{0: "01d", 3: "04d", 45: "50d", 63: "10d", 75: "13d", 95: "11d"}
	for code, want := range cases {
		if got := WMOIcon(code, true); got != want {
			t.Errorf("code %d: expected %s, got %s", code, want, got)
		}
	}
	if WMOIcon(0, false) != "01n" {
		t.Error("expected night suffix")
	}
}
