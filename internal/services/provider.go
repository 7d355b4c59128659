package services

import (
	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/config"
	"github.com/bobby-s-dev/pinkweather/internal/observability"
	"github.com/bobby-s-dev/pinkweather/pkg/client"
)

// NewProvider builds the OpenWeather client from configuration. It returns
// nil when no API key is set, leaving live renders unavailable.
func NewProvider(cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) WeatherProvider {
	if cfg.Provider.OpenWeatherAPIKey == "" {
		logger.Warn("OPENWEATHER_API_KEY not set, live weather disabled")
		return nil
	}

	clientConfig := client.ClientConfig{
		Timeout:        cfg.Provider.Timeout,
		MaxRetries:     cfg.Retry.MaxRetries,
		RetryDelay:     cfg.Retry.Delay,
		Multiplier:     cfg.Retry.Multiplier,
		Threshold:      cfg.CircuitBreaker.Threshold,
		BreakerTimeout: cfg.CircuitBreaker.Timeout,
		RateLimit:      cfg.RateLimit.PerSecond,
		Burst:          cfg.RateLimit.Burst,
		Metrics:        metrics,
	}

	c := client.NewOpenWeatherClient(
		cfg.Provider.OpenWeatherAPIKey,
		cfg.Provider.BaseURL,
		cfg.Provider.Units,
		clientConfig,
		logger,
	)
	logger.Info("OpenWeatherMap client initialized", zap.String("units", cfg.Provider.Units))
	return c
}
