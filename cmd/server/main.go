// devpulse - developer activity ingestion server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/devpulse/internal/aggregate"
	"github.com/ashureev/devpulse/internal/api"
	"github.com/ashureev/devpulse/internal/config"
	"github.com/ashureev/devpulse/internal/identity"
	"github.com/ashureev/devpulse/internal/ingest"
	"github.com/ashureev/devpulse/internal/middleware"
	"github.com/ashureev/devpulse/internal/retention"
	"github.com/ashureev/devpulse/internal/store"
	"github.com/ashureev/devpulse/internal/trigger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "db_driver", cfg.DBDriver, "auth", cfg.AuthEnabled())

	// Initialize dependencies.
	repo, err := store.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Initialize services.
	retry := cfg.RetryPolicy()
	dispatcher := ingest.NewDispatcher(repo,
		aggregate.NewSessionAggregator(repo, cfg.ActivityQuantum, retry),
		aggregate.NewUserStatsAggregator(repo, cfg.ActivityQuantum, retry, cfg.Location()),
	)

	verifier := identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	if verifier == nil {
		slog.Warn("JWT_SECRET not set, trusting the X-User-ID header for caller identity")
	}

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, dispatcher)
	activityHandler := api.NewActivityHandler(baseHandler)
	healthHandler := api.NewHealthHandler(repo)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(identity.Middleware(verifier))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// Handlers check the caller themselves.
	activityHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Retention.Enabled {
		worker := retention.NewWorker(repo, cfg.Retention.Window, cfg.Retention.BatchSize, cfg.Retention.Interval, retry)
		g.Go(func() error { return worker.Run(gctx) })
	}

	if cfg.KafkaEnabled() {
		reader := trigger.NewReader(trigger.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		consumer := trigger.NewConsumer(reader, dispatcher, cfg.Kafka.Concurrency)
		slog.Info("Kafka trigger enabled", "topic", cfg.Kafka.Topic, "group_id", cfg.Kafka.GroupID)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	// Start server.
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Wait for shutdown signal or a failed component.
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		stop()
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
