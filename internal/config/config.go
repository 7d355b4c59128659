package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		LogLevel     string
	}

	Provider struct {
		OpenWeatherAPIKey string
		BaseURL           string
		Units             string
		Location          string
		Timeout           time.Duration
	}

	Display struct {
		Backend    string
		OutputPath string
	}

	Ledger struct {
		Path         string
		SnapshotPath string
	}

	Dataset struct {
		Dir string
	}

	Scheduler struct {
		Spec string
	}

	Cache struct {
		Duration time.Duration
	}

	CircuitBreaker struct {
		Threshold int
		Timeout   time.Duration
	}

	Retry struct {
		MaxRetries int
		Delay      time.Duration
		Multiplier float64
	}

	RateLimit struct {
		PerSecond float64
		Burst     int
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	cfg.Server.Port = getEnv("FIBER_PORT", "8080")
	cfg.Server.ReadTimeout = parseDuration(getEnv("FIBER_READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("FIBER_WRITE_TIMEOUT", "10s"))
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	cfg.Provider.OpenWeatherAPIKey = getEnv("OPENWEATHER_API_KEY", "")
	cfg.Provider.BaseURL = getEnv("OPENWEATHER_URL", "https://api.openweathermap.org")
	cfg.Provider.Units = getEnv("OPENWEATHER_UNITS", "metric")
	cfg.Provider.Location = getEnv("WEATHER_LOCATION", "Toronto,CA")
	cfg.Provider.Timeout = parseDuration(getEnv("PROVIDER_TIMEOUT", "10s"))

	// bitmap draws with the panel's fonts, preview with a smoother face.
	cfg.Display.Backend = getEnv("DISPLAY_BACKEND", "bitmap")
	cfg.Display.OutputPath = getEnv("DISPLAY_OUTPUT", "data/display.bmp")

	cfg.Ledger.Path = getEnv("LEDGER_PATH", "data/history.json")
	cfg.Ledger.SnapshotPath = getEnv("SNAPSHOT_PATH", "data/last_snapshot.json")

	cfg.Dataset.Dir = getEnv("DATASET_DIR", "misc")

	cfg.Scheduler.Spec = getEnv("REFRESH_SCHEDULE", "@every 10m")

	cfg.Cache.Duration = parseDuration(getEnv("CACHE_DURATION", "10m"))

	cfg.CircuitBreaker.Threshold = parseInt(getEnv("CIRCUIT_BREAKER_THRESHOLD", "3"))
	cfg.CircuitBreaker.Timeout = parseDuration(getEnv("CIRCUIT_BREAKER_TIMEOUT", "30s"))

	cfg.Retry.MaxRetries = parseInt(getEnv("MAX_RETRIES", "3"))
	cfg.Retry.Delay = parseDuration(getEnv("RETRY_DELAY", "1s"))
	cfg.Retry.Multiplier = parseFloat(getEnv("RETRY_MULTIPLIER", "2"))

	cfg.RateLimit.PerSecond = parseFloat(getEnv("PROVIDER_RATE_LIMIT", "1"))
	cfg.RateLimit.Burst = parseInt(getEnv("PROVIDER_RATE_BURST", "2"))

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		zap.L().Warn("Failed to parse duration", zap.String("value", value), zap.Error(err))
		return 0
	}
	return duration
}

func parseInt(value string) int {
	intValue, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("Failed to parse int", zap.String("value", value), zap.Error(err))
		return 0
	}
	return intValue
}

func parseFloat(value string) float64 {
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		zap.L().Warn("Failed to parse float", zap.String("value", value), zap.Error(err))
		return 0
	}
	return floatValue
}
