package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/api"
	"github.com/bobby-s-dev/pinkweather/internal/config"
	"github.com/bobby-s-dev/pinkweather/internal/history"
	"github.com/bobby-s-dev/pinkweather/internal/observability"
	"github.com/bobby-s-dev/pinkweather/internal/render"
	"github.com/bobby-s-dev/pinkweather/internal/services"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	zap.ReplaceGlobals(logger)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if leveled, err := observability.NewLogger(cfg.Server.LogLevel); err == nil {
		logger = leveled
		zap.ReplaceGlobals(logger)
	}
	defer logger.Sync()

	logger.Info("Starting PinkWeather preview server")

	metrics := observability.NewMetrics()

	ledger := history.NewLedger(history.NewFileStore(cfg.Ledger.Path), logger.Named("history"))
	if err := ledger.Load(); err != nil {
		logger.Warn("Starting with empty history", zap.Error(err))
	}
	metrics.LedgerRecords(ledger.Len())

	backend, err := render.BackendByName(cfg.Display.Backend)
	if err != nil {
		logger.Fatal("Invalid display backend", zap.Error(err))
	}
	renderer := render.NewRenderer(render.NewMetrics(), backend)

	preview := services.NewPreview(
		services.NewProvider(cfg, metrics, logger),
		services.NewResponseCache(cfg.Cache.Duration, metrics, logger),
		ledger,
		renderer,
		cfg.Dataset.Dir,
		services.WithPreviewMetrics(metrics),
		services.WithPreviewLogger(logger),
	)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		JSONEncoder:  json.Marshal,
		ErrorHandler: errorHandler,
	})

	// Setup handlers and routes
	handler := api.NewHandler(preview, cfg.Provider.Location, logger)
	api.SetupRoutes(app, handler, metrics, logger)

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server",
			zap.String("address", addr),
			zap.String("backend", renderer.Backend()))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	if err := ledger.Persist(); err != nil {
		logger.Error("Failed to persist history", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func errorHandler(c *fiber.Ctx, err error) error {
	zap.L().Error("HTTP error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))

	// Default to 500 status code
	code := fiber.StatusInternalServerError

	// Check if it's a Fiber error
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   err.Error(),
		"success": false,
	})
}
