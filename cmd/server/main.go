package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/modern-blog/internal/api"
	"github.com/modern-blog/internal/auth"
	"github.com/modern-blog/internal/cache"
	"github.com/modern-blog/internal/config"
	"github.com/modern-blog/internal/database"
	"github.com/modern-blog/internal/repository"
	"github.com/modern-blog/internal/service"
	"github.com/modern-blog/internal/storage"
	"github.com/modern-blog/pkg/logger"
)

func main() {
	migrateDown := flag.Bool("migrate-down", false, "roll back the last migration and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "json")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("env", cfg.Server.Env).Msg("Starting blog server...")

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if *migrateDown {
		if err := db.MigrateDown(cfg.Database.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to roll back migration")
		}
		return
	}

	// Run migrations
	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	repos := repository.New(db)

	startup, cancelStartup := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout)
	defer cancelStartup()

	// Account cache in front of session resolution
	accountCache, err := cache.New(startup, &cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer accountCache.Close()
	accounts := cache.NewAccounts(repos.User, accountCache, log)

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, accounts, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session issuer")
	}

	// Featured image storage
	store, err := storage.New(startup, &cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize image storage")
	}

	// Initialize services
	services := service.NewServices(repos, store, issuer, accounts, log)

	// Initialize router
	router, err := api.NewRouter(services, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load view templates")
	}

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain pending view increments once no request can schedule more
	services.Views.Stop(ctx)

	log.Info().Msg("Server exited gracefully")
}
