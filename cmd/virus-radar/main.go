package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpapi "github.com/jmtatsch/virus-radar/internal/api/http"
	"github.com/jmtatsch/virus-radar/internal/config"
	"github.com/jmtatsch/virus-radar/internal/geo"
	"github.com/jmtatsch/virus-radar/internal/location"
	"github.com/jmtatsch/virus-radar/internal/scheduler"
	"github.com/jmtatsch/virus-radar/internal/store"
	"github.com/jmtatsch/virus-radar/internal/surveillance"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Shared HTTP client for outbound dataset and geolocation calls.
	httpClient := &http.Client{Timeout: 60 * time.Second}

	ctx := context.Background()

	// The city index is required for site preselection; without it the
	// service cannot start.
	citiesPath, err := geo.EnsureCities1000(ctx, cfg.DataDir, cfg.GeonamesURL, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to obtain geonames extract")
	}
	index, err := geo.LoadFile(citiesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load geonames extract")
	}
	log.Info().Int("places", index.Len()).Msg("geonames index loaded")

	memStore := store.NewMemoryStore()
	loader := surveillance.NewLoader(cfg.GrippeWebSource, cfg.AMELAGSource, memStore, httpClient)

	// Initial load is best-effort; endpoints answer 503 until the first
	// successful refresh.
	loadCtx, cancelLoad := context.WithTimeout(ctx, 5*time.Minute)
	if err := loader.Refresh(loadCtx); err != nil {
		log.Warn().Err(err).Msg("initial dataset load incomplete")
	}
	cancelLoad()

	sched := scheduler.New(loader, cfg.RefreshInterval)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	service := surveillance.NewService(memStore, index, surveillance.ForecastConfig{
		Horizon:        cfg.ForecastHorizon,
		SeasonalPeriod: cfg.SeasonalPeriod,
		FitTimeout:     cfg.FitTimeout,
		Workers:        cfg.ForecastWorkers,
	})

	ipClient := location.NewIPInfoClient(httpClient, cfg.IPInfoURL, cfg.IPInfoToken)
	locator := location.NewResolver(ipClient, index)

	app := fiber.New(fiber.Config{
		AppName:               "virus-radar",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
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

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "virus-radar",
		})
	})

	httpapi.RegisterRoutes(app, service, locator)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
