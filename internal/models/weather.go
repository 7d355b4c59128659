package models

import (
	"time"
)

// DateLayout is the calendar-day key used by the history ledger.
const DateLayout = "2006-01-02"

type AirQuality struct {
	AQI         int    `json:"aqi"`
	Description string `json:"description"`
}

type SunTimes struct {
	Sunrise int64 `json:"sunrise"`
	Sunset  int64 `json:"sunset"`
}

type ForecastPoint struct {
	Dt        int64    `json:"dt"`
	Temp      *float64 `json:"temp,omitempty"`
	Icon      string   `json:"icon"`
	Condition string   `json:"condition"`
	Pop       *float64 `json:"pop,omitempty"`
	Wind      *float64 `json:"wind,omitempty"`
	WindGust  *float64 `json:"wind_gust,omitempty"`
}

// WeatherSnapshot is the normalized weather state for one point in time.
// A nil pointer means the source could not supply the field.
type WeatherSnapshot struct {
	Timestamp     int64           `json:"timestamp"`
	Local         time.Time       `json:"local"`
	Temp          *float64        `json:"temp,omitempty" validate:"required"`
	FeelsLike     *float64        `json:"feels_like,omitempty"`
	High          *float64        `json:"high,omitempty"`
	Low           *float64        `json:"low,omitempty"`
	Wind          *float64        `json:"wind,omitempty"`
	WindGust      *float64        `json:"wind_gust,omitempty"`
	Humidity      *float64        `json:"humidity,omitempty"`
	ConditionCode *int            `json:"condition_code,omitempty"`
	Condition     *string         `json:"condition,omitempty"`
	Icon          string          `json:"icon,omitempty"`
	AirQuality    *AirQuality     `json:"air_quality,omitempty"`
	Sun           *SunTimes       `json:"sun,omitempty"`
	Forecast      []ForecastPoint `json:"forecast,omitempty"`
}

// Date returns the local calendar day of the snapshot.
func (s WeatherSnapshot) Date() string {
	return s.Local.Format(DateLayout)
}

// ConditionText returns the lower-level description or "" when missing.
func (s WeatherSnapshot) ConditionText() string {
	if s.Condition == nil {
		return ""
	}
	return *s.Condition
}

// HistoryRecord is one calendar day's aggregate in the ledger.
type HistoryRecord struct {
	Date              string         `json:"-"`
	MinTemp           float64        `json:"min_temp"`
	MaxTemp           float64        `json:"max_temp"`
	AvgTemp           float64        `json:"avg_temp"`
	DominantCondition string         `json:"dominant_condition"`
	Samples           int            `json:"samples,omitempty"`
	Conditions        map[string]int `json:"conditions,omitempty"`
}

func Float(v float64) *float64 {
	return &v
}

func Int(v int) *int {
	return &v
}

func String(v string) *string {
	return &v
}
