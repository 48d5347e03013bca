// Command weather-server keeps the job running: it fetches on a schedule and
// serves the stored observations and daily summaries over HTTP.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/mlindgren/weatherjob/internal/api/http"
	"github.com/mlindgren/weatherjob/internal/config"
	"github.com/mlindgren/weatherjob/internal/scheduler"
	"github.com/mlindgren/weatherjob/internal/store"
	"github.com/mlindgren/weatherjob/internal/weather"
	"github.com/mlindgren/weatherjob/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	logger.Printf("INFO: starting server – location: %s, units: %s, VC_API_KEY: %s",
		cfg.Location, cfg.UnitGroup, cfg.SafeKey())

	// SQLite store shared by the scheduled job and the read API.
	retry := store.DefaultRetry()
	retry.MaxAttempts = cfg.MaxAttempts
	st, err := store.Open(cfg.DatabaseDSN, retry, logger)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer st.Close()

	// Provider with resilience (backoff + circuit breaker).
	backoff := providers.DefaultBackoff()
	backoff.MaxAttempts = cfg.MaxAttempts
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	provider := providers.NewVisualCrossingProvider(httpClient, cfg.APIKey, cfg.UnitGroup, backoff, logger)

	// Core service orchestrating provider and store.
	service := weather.NewService(provider, st, logger)

	// Scheduler that periodically fetches and upserts data.
	sched := scheduler.New(cfg.Location, cfg.FetchInterval, service, logger)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-server",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-server",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Printf("error during shutdown: %v", err)
	}
}
