package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/toiletmap/internal/adapters/http"
	natsadapter "github.com/samirrijal/toiletmap/internal/adapters/nats"
	"github.com/samirrijal/toiletmap/internal/adapters/opendata"
	"github.com/samirrijal/toiletmap/internal/adapters/postgres"
	"github.com/samirrijal/toiletmap/internal/adapters/valkey"
	"github.com/samirrijal/toiletmap/internal/adapters/wsmap"
	"github.com/samirrijal/toiletmap/internal/core/domain"
	"github.com/samirrijal/toiletmap/internal/core/ports"
	"github.com/samirrijal/toiletmap/internal/core/usecases"
	"github.com/samirrijal/toiletmap/internal/pkg/config"
	"github.com/samirrijal/toiletmap/internal/pkg/logging"
	"github.com/samirrijal/toiletmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("toiletmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{RateLimit: cfg.Server.RateLimit}

	// Restroom source
	var fetcher ports.POIFetcher
	switch cfg.Source {
	case config.SourcePostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		go db.ReportStats(ctx, 15*time.Second)

		fetcher = postgres.NewToiletRepo(db)
		deps.DB = db
	default:
		client, err := opendata.New(cfg.OpenData)
		if err != nil {
			log.Fatalf("opendata client: %v", err)
		}
		fetcher = client
	}
	slog.Info("restroom source selected", "source", cfg.Source)

	// Rate limiter storage
	store, err := valkey.New(cfg.Valkey.Addr, "toiletmap:limiter:")
	if err != nil {
		slog.Warn("valkey unavailable, rate limiting in memory", "error", err)
	} else {
		defer store.Close()
		deps.LimiterStorage = store
		deps.Valkey = store
	}

	// NATS session events
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, session events disabled", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
		deps.NATS = pub.Conn()
	}

	deps.Toilets = usecases.NewToiletService(fetcher, cfg.OpenData.ResultLimit)
	deps.MapSession = wsmap.Options{
		Coordinator: usecases.CoordinatorConfig{
			Style:         cfg.Map.Style,
			Center:        domain.GeoPoint{Lat: cfg.Map.CenterLat, Lon: cfg.Map.CenterLon},
			Zoom:          cfg.Map.Zoom,
			ResultLimit:   cfg.OpenData.ResultLimit,
			LocateZoom:    cfg.Map.LocateZoom,
			FlyDuration:   cfg.Map.FlyDuration,
			LocateTimeout: cfg.Map.LocationTimeout,
		},
		Credential: cfg.Map.AccessToken,
		Fetcher:    fetcher,
		Publisher:  publisher,
		Logger:     slog.Default(),
	}
	if cfg.Map.AccessToken == "" {
		slog.Warn("map access token not configured, browsers will be asked for one")
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Toiletmap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
