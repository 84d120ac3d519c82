package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ctanbus/ctanbus_core/internal/api"
	"github.com/ctanbus/ctanbus_core/internal/cache"
	"github.com/ctanbus/ctanbus_core/internal/config"
	"github.com/ctanbus/ctanbus_core/internal/ctan"
	"github.com/ctanbus/ctanbus_core/internal/geocode"
	"github.com/ctanbus/ctanbus_core/internal/geolocation"
	"github.com/ctanbus/ctanbus_core/internal/logging"
	"github.com/ctanbus/ctanbus_core/internal/middleware"
	"github.com/ctanbus/ctanbus_core/internal/models"
	"github.com/ctanbus/ctanbus_core/internal/nearby"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(os.Stdout, logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	slog.SetDefault(log)
	log.Info("Starting CTAN bus API server...")

	store, closeStore, err := newStore(context.Background(), cfg.Cache)
	if err != nil {
		logging.LogError(log, "Failed to initialize cache", err)
		os.Exit(1)
	}
	defer closeStore()
	log.Info("✓ Response cache ready", slog.String("backend", cfg.Cache.Backend), slog.Duration("ttl", cfg.Cache.TTL))

	client := ctan.NewClient(ctan.Config{
		BaseURL:    cfg.CTAN.BaseURL,
		Consortium: cfg.CTAN.Consortium,
		Lang:       cfg.CTAN.Lang,
		Timeout:    cfg.CTAN.Timeout,
	}, store, ctan.WithLogger(log))

	var geocoder nearby.Geocoder
	if cfg.Location.GeocoderURL != "" {
		geocoder = geocode.NewNominatim(cfg.Location.GeocoderURL, cfg.Location.UserAgent, store, log)
	}

	resolver := geolocation.NewResolver(
		models.Coordinate{Latitude: cfg.Location.DefaultLatitude, Longitude: cfg.Location.DefaultLongitude},
		geolocation.Options{Timeout: cfg.Location.Timeout, HighAccuracy: true},
		log,
	)
	service := nearby.NewService(client, geocoder, resolver, cfg.CTAN.Radius, log)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "CTAN Bus API",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorHandler: api.ErrorHandler(log),
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(middleware.RequestLogger(log))

	// Routes
	checker, _ := store.(cache.Checker)
	api.NewHandlers(service, checker, cfg.Location.IPLookupURL, log).Register(app)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down gracefully...")
		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			logging.LogError(log, "Error during shutdown", err)
		}
	}()

	// Start server
	log.Info(fmt.Sprintf("🚀 Server listening on http://localhost%s", addr))
	log.Info(fmt.Sprintf("📍 Nearby stops: http://localhost%s/api/bus-stops?lat=LAT&long=LON", addr))
	log.Info(fmt.Sprintf("❤️  Health check: http://localhost%s/health", addr))

	if err := app.Listen(addr); err != nil {
		logging.LogError(log, "Failed to start server", err)
		closeStore()
		os.Exit(1)
	}
}

// newStore builds the configured response cache and its cleanup function
func newStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, func(), error) {
	switch cfg.Backend {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS:      cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		store := cache.NewRedis(client, cfg.TTL, cfg.Redis.KeyPrefix)
		return store, func() { _ = store.Close() }, nil
	default:
		return cache.NewMemory(cfg.TTL), func() {}, nil
	}
}
