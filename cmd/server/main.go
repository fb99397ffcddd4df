package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/threaded-comments-api/internal/api"
	"github.com/threaded-comments-api/internal/config"
	"github.com/threaded-comments-api/internal/database"
	"github.com/threaded-comments-api/internal/moderation"
	"github.com/threaded-comments-api/internal/notify"
	"github.com/threaded-comments-api/internal/repository"
	"github.com/threaded-comments-api/internal/service"
	"github.com/threaded-comments-api/internal/telemetry"
	"github.com/threaded-comments-api/pkg/logger"
)

const serviceName = "threaded-comments-api"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "json")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting threaded comments API server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up tracing")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error().Err(err).Msg("Tracing shutdown failed")
		}
	}()

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Moderation policies
	registry := moderation.NewRegistry()
	if cfg.Moderation.PolicyFile != "" {
		n, err := registry.LoadFile(cfg.Moderation.PolicyFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.Moderation.PolicyFile).Msg("Failed to load moderation policies")
		}
		log.Info().Int("content_types", n).Msg("Moderation policies loaded")
	}

	// Notification workers
	dispatcher := notify.NewDispatcher(notify.NewSender(cfg.Notify, log), cfg.Notify.Recipients, cfg.Notify.Workers, log)
	dispatcher.Start(context.Background())
	log.Info().Int("workers", cfg.Notify.Workers).Msg("Notification dispatcher started")

	// Initialize repositories and services
	repos := repository.New(db)
	services := service.NewServices(repos, cfg, registry, dispatcher, log)

	// Initialize router
	router := api.NewRouter(services, cfg, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain pending notifications
	dispatcher.Stop()

	log.Info().Msg("Server exited gracefully")
}
