package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/observability"
)

func SetupRoutes(app *fiber.App, handler *Handler, metrics *observability.Metrics, log *zap.Logger) {
	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD",
	}))

	// Custom logger middleware
	app.Use(logger.New(logger.Config{
		Format:     "${time} ${pid} ${locals:requestid} ${status} - ${method} ${path}\n",
		TimeFormat: time.RFC3339,
	}))

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		metrics.HTTPRequest(c.Route().Path, c.Response().StatusCode(), time.Since(start))
		return err
	})

	// API v1 routes
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", handler.GetHealth)

	// Metrics
	api.Get("/metrics", handler.GetMetrics)
	api.Get("/metrics/prometheus", adaptor.HTTPHandler(metrics.Handler()))

	// Historical data
	api.Get("/datasets", handler.GetDatasets)
	api.Get("/history", handler.GetHistory)

	// Display renders
	api.Get("/render", handler.GetRender)
	api.Get("/scenario", handler.GetScenario)
	api.Post("/markup/layout", handler.PostLayout)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
			"path":  c.Path(),
		})
	})

	log.Debug("Routes registered", zap.Int("handlers", int(app.HandlersCount())))
}
