package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/models"
	"github.com/bobby-s-dev/pinkweather/internal/normalize"
)

// forecastPoints is 24 hours of 3-hourly forecast.
const forecastPoints = 8

type OpenWeatherClient struct {
	*BaseClient
	apiKey  string
	baseURL string
	units   string
}

type owCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type OpenWeatherCurrentResponse struct {
	Coord struct {
		Lon float64 `json:"lon"`
		Lat float64 `json:"lat"`
	} `json:"coord"`
	Weather []owCondition `json:"weather"`
	Main    struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		TempMin   *float64 `json:"temp_min"`
		TempMax   *float64 `json:"temp_max"`
		Humidity  *float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed *float64 `json:"speed"`
		Gust  *float64 `json:"gust"`
	} `json:"wind"`
	Dt  int64 `json:"dt"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Timezone int    `json:"timezone"`
	Name     string `json:"name"`
	Cod      int    `json:"cod"`
}

type OpenWeatherForecastResponse struct {
	Cod  string `json:"cod"`
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
		Weather []owCondition `json:"weather"`
		Wind    struct {
			Speed *float64 `json:"speed"`
			Gust  *float64 `json:"gust"`
		} `json:"wind"`
		Pop *float64 `json:"pop"`
	} `json:"list"`
	City struct {
		Name     string `json:"name"`
		Timezone int    `json:"timezone"`
		Sunrise  int64  `json:"sunrise"`
		Sunset   int64  `json:"sunset"`
	} `json:"city"`
}

type OpenWeatherAirResponse struct {
	List []struct {
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
	} `json:"list"`
}

var aqiDescriptions = map[int]string{
	1: "good",
	2: "fair",
	3: "moderate",
	4: "poor",
	5: "very poor",
}

func NewOpenWeatherClient(apiKey, baseURL, units string, config ClientConfig, logger *zap.Logger) *OpenWeatherClient {
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org"
	}
	if units == "" {
		units = string(normalize.Metric)
	}
	return &OpenWeatherClient{
		BaseClient: NewBaseClient("openweather", config, logger),
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		units:      units,
	}
}

func (c *OpenWeatherClient) endpoint(path string, q url.Values) string {
	q.Set("appid", c.apiKey)
	return c.baseURL + path + "?" + q.Encode()
}

func (c *OpenWeatherClient) getJSON(ctx context.Context, endpoint string, dst interface{}) error {
	data, err := c.GetWithRetry(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &ProviderError{Provider: c.name, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

// Fetch gathers current conditions, a 24 hour forecast and, when
// available, air quality for location. Air quality failures are logged
// and leave the field missing.
func (c *OpenWeatherClient) Fetch(ctx context.Context, location string) (normalize.ProviderPayload, error) {
	var current OpenWeatherCurrentResponse
	q := url.Values{"q": {location}, "units": {c.units}}
	if err := c.getJSON(ctx, c.endpoint("/data/2.5/weather", q), &current); err != nil {
		return normalize.ProviderPayload{}, fmt.Errorf("failed to fetch current weather: %w", err)
	}
	if current.Cod != 0 && current.Cod != 200 {
		return normalize.ProviderPayload{}, &ProviderError{Provider: c.name, Status: current.Cod, Err: errors.New("API error")}
	}

	var forecast OpenWeatherForecastResponse
	q = url.Values{"q": {location}, "units": {c.units}, "cnt": {fmt.Sprint(forecastPoints)}}
	if err := c.getJSON(ctx, c.endpoint("/data/2.5/forecast", q), &forecast); err != nil {
		return normalize.ProviderPayload{}, fmt.Errorf("failed to fetch forecast: %w", err)
	}

	p := normalize.ProviderPayload{
		Units: c.units,
		Current: normalize.ProviderCurrent{
			Dt:        current.Dt,
			Temp:      current.Main.Temp,
			FeelsLike: current.Main.FeelsLike,
			TempMin:   current.Main.TempMin,
			TempMax:   current.Main.TempMax,
			Humidity:  current.Main.Humidity,
			Wind:      current.Wind.Speed,
			WindGust:  current.Wind.Gust,
		},
		City: &normalize.ProviderCity{
			Name:           current.Name,
			Sunrise:        current.Sys.Sunrise,
			Sunset:         current.Sys.Sunset,
			TimezoneOffset: current.Timezone,
		},
	}
	if len(current.Weather) > 0 {
		w := current.Weather[0]
		p.Current.Condition = models.String(w.Description)
		p.Current.Icon = w.Icon
	}
	for _, item := range forecast.List {
		f := normalize.ProviderForecast{
			Dt:       item.Dt,
			Temp:     item.Main.Temp,
			Pop:      item.Pop,
			Wind:     item.Wind.Speed,
			WindGust: item.Wind.Gust,
		}
		if len(item.Weather) > 0 {
			f.Condition = item.Weather[0].Description
			f.Icon = item.Weather[0].Icon
		}
		p.Forecast = append(p.Forecast, f)
	}

	aq, err := c.airQuality(ctx, current.Coord.Lat, current.Coord.Lon)
	if err != nil {
		c.logger.Warn("Air quality unavailable", zap.String("location", location), zap.Error(err))
	} else {
		p.AirQuality = aq
	}
	return p, nil
}

func (c *OpenWeatherClient) airQuality(ctx context.Context, lat, lon float64) (*models.AirQuality, error) {
	var resp OpenWeatherAirResponse
	q := url.Values{"lat": {fmt.Sprint(lat)}, "lon": {fmt.Sprint(lon)}}
	if err := c.getJSON(ctx, c.endpoint("/data/2.5/air_pollution", q), &resp); err != nil {
		return nil, err
	}
	if len(resp.List) == 0 || resp.List[0].Main.AQI == 0 {
		return nil, errors.New("empty air quality response")
	}
	aqi := resp.List[0].Main.AQI
	return &models.AirQuality{AQI: aqi, Description: aqiDescriptions[aqi]}, nil
}
