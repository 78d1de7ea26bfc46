package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatterbox/internal/api"
	"github.com/eldtechnologies/chatterbox/internal/attachment"
	"github.com/eldtechnologies/chatterbox/internal/config"
	"github.com/eldtechnologies/chatterbox/internal/presence"
	"github.com/eldtechnologies/chatterbox/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize the primary store
	dataStore, kind, err := store.Open(ctx, cfg.DatabaseURL, cfg.MongoDatabase, cfg.SQLitePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer dataStore.Close()
	logger.Info().Str("database", kind).Msg("connected to database")

	// Initialize Redis store
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	} else {
		logger.Info().Msg("REDIS_URL not set, rate limiting is per-process")
	}

	// Attachment storage, fixed for the process lifetime
	files, err := attachment.New(attachment.ResolveMode(
		cfg.CloudinaryCloudName,
		cfg.CloudinaryAPIKey,
		cfg.CloudinaryAPISecret,
		cfg.UploadsDir,
		cfg.PublicBaseURL,
	), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("attachment storage init failed")
	}
	logger.Info().Str("mode", files.Mode()).Msg("attachment storage ready")
	if files.Mode() == "local" && cfg.PublicBaseURL == "" && !cfg.IsDevelopment() {
		logger.Warn().Msg("PUBLIC_BASE_URL not set, attachment URLs follow the request Host header")
	}

	// Create router
	router := api.NewRouter(api.Options{
		Config:    cfg,
		Store:     dataStore,
		StoreKind: kind,
		Redis:     redisStore,
		Files:     files,
		Presence:  presence.NewRegistry(),
		Logger:    logger,
	})

	// Create server. Uploads need a longer read window than plain JSON.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting chat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
