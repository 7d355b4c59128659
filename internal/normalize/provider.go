package normalize

import (
	"time"

	"github.com/bobby-s-dev/pinkweather/internal/models"
)

// ProviderPayload is the canonical provider schema the client decodes into.
type ProviderPayload struct {
	Units      string             `json:"units"`
	Current    ProviderCurrent    `json:"current"`
	Forecast   []ProviderForecast `json:"forecast"`
	AirQuality *models.AirQuality `json:"air_quality,omitempty"`
	City       *ProviderCity      `json:"city,omitempty"`
}

type ProviderCurrent struct {
	Dt            int64    `json:"dt"`
	Temp          *float64 `json:"temp"`
	FeelsLike     *float64 `json:"feels_like"`
	TempMin       *float64 `json:"temp_min"`
	TempMax       *float64 `json:"temp_max"`
	Wind          *float64 `json:"wind"`
	WindGust      *float64 `json:"wind_gust"`
	Humidity      *float64 `json:"humidity"`
	ConditionCode *int     `json:"condition_code"`
	Condition     *string  `json:"condition"`
	Icon          string   `json:"icon"`
}

type ProviderForecast struct {
	Dt        int64    `json:"dt"`
	Temp      *float64 `json:"temp"`
	Icon      string   `json:"icon"`
	Condition string   `json:"condition"`
	Pop       *float64 `json:"pop"`
	Wind      *float64 `json:"wind"`
	WindGust  *float64 `json:"wind_gust"`
}

type ProviderCity struct {
	Name    string `json:"name"`
	Sunrise int64  `json:"sunrise"`
	Sunset  int64  `json:"sunset"`
	// TimezoneOffset is seconds east of UTC.
	TimezoneOffset int `json:"timezone"`
}

// Location returns the fixed zone the provider reported, or UTC.
func (p ProviderPayload) Location() *time.Location {
	if p.City == nil || p.City.TimezoneOffset == 0 {
		return time.UTC
	}
	name := p.City.Name
	if name == "" {
		name = "provider"
	}
	return time.FixedZone(name, p.City.TimezoneOffset)
}

// FromProvider converts a provider payload into a snapshot in canonical
// units, localized to loc. Fields the provider left out stay nil.
func FromProvider(p ProviderPayload, loc *time.Location) (models.WeatherSnapshot, error) {
	units, err := parseUnits(p.Units)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}

	c := p.Current
	if c.Dt == 0 {
		return models.WeatherSnapshot{}, &ValidationError{Field: "timestamp", Reason: "missing"}
	}
	s := models.WeatherSnapshot{
		Timestamp:     c.Dt,
		Local:         localize(c.Dt, loc),
		Temp:          convert(c.Temp, units.temp),
		FeelsLike:     convert(c.FeelsLike, units.temp),
		High:          convert(c.TempMax, units.temp),
		Low:           convert(c.TempMin, units.temp),
		Wind:          convert(c.Wind, units.wind),
		WindGust:      convert(c.WindGust, units.wind),
		Humidity:      c.Humidity,
		ConditionCode: c.ConditionCode,
		Condition:     c.Condition,
		Icon:          c.Icon,
	}
	if p.AirQuality != nil {
		aq := *p.AirQuality
		s.AirQuality = &aq
	}
	if p.City != nil && p.City.Sunrise > 0 && p.City.Sunset > 0 {
		s.Sun = &models.SunTimes{Sunrise: p.City.Sunrise, Sunset: p.City.Sunset}
	}
	if len(p.Forecast) > 0 {
		s.Forecast = make([]models.ForecastPoint, 0, len(p.Forecast))
		for _, f := range p.Forecast {
			s.Forecast = append(s.Forecast, models.ForecastPoint{
				Dt:        f.Dt,
				Temp:      convert(f.Temp, units.temp),
				Icon:      f.Icon,
				Condition: f.Condition,
				Pop:       f.Pop,
				Wind:      convert(f.Wind, units.wind),
				WindGust:  convert(f.WindGust, units.wind),
			})
		}
	}

	sanitize(&s)
	resolveCondition(&s, isDaytime(s.Local, s.Sun))

	if err := Validate(s); err != nil {
		return models.WeatherSnapshot{}, err
	}
	return s, nil
}
