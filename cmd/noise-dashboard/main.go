package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/noise-dashboard/internal/api/http"
	"github.com/i474232898/noise-dashboard/internal/config"
	"github.com/i474232898/noise-dashboard/internal/scheduler"
	"github.com/i474232898/noise-dashboard/internal/session"
	"github.com/i474232898/noise-dashboard/internal/store"
	"github.com/i474232898/noise-dashboard/internal/upstream"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Upstream REST client with resilience (backoff + circuit breaker).
	client := upstream.NewClient(cfg.UpstreamBaseURL, cfg.HTTPTimeout, cfg.RESTBackoff())

	snapshots := store.NewSnapshotStore(cfg.SnapshotRejectStale)
	history := store.NewHistoryStore(cfg.HistoryMaxPoints, cfg.Location)

	// The dashboard session owns every store mutation.
	sess := session.New(client, snapshots, history, cfg.HistoryLimit, cfg.HTTPTimeout)
	go func() {
		if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ERROR: session stopped: %v", err)
		}
	}()

	// Initial snapshot; a failure leaves the map empty until the next refresh.
	go func() {
		if err := sess.LoadSnapshot(ctx); err != nil {
			log.Printf("ERROR: initial snapshot from %s failed: %v", client.Name(), err)
		}
	}()

	// Real-time feed.
	feed := upstream.NewFeed(cfg.UpstreamWSURL, cfg.FeedReconnect, cfg.FeedBackoff)
	go func() {
		if err := feed.Run(ctx, sess.HandleMeasurement); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ERROR: real-time feed stopped: %v", err)
		}
	}()

	// Scheduler that periodically reloads the snapshot.
	sched := scheduler.New(cfg.SnapshotRefreshInterval, cfg.HTTPTimeout, sess)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "noise-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowMethods: "GET,PUT,OPTIONS",
	}))

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "noise-dashboard",
			"session": sess.ID,
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Session:  sess,
		Logs:     client,
		Scale:    cfg.ColorScale,
		Location: cfg.Location,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: listening on :%s (upstream %s)", cfg.Port, cfg.UpstreamBaseURL)

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
