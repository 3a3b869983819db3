// Command server runs the vinyl backend: the HTTP gateway adapter, the match
// store, and the single-worker conversion queue, wired together and shut down
// gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/slowjam/go-vinyl-backend/internal/audio"
	"github.com/slowjam/go-vinyl-backend/internal/config"
	"github.com/slowjam/go-vinyl-backend/internal/gateway"
	httpapi "github.com/slowjam/go-vinyl-backend/internal/http"
	"github.com/slowjam/go-vinyl-backend/internal/http/handlers"
	"github.com/slowjam/go-vinyl-backend/internal/observability"
	"github.com/slowjam/go-vinyl-backend/internal/queue"
	"github.com/slowjam/go-vinyl-backend/internal/repo"
	"github.com/slowjam/go-vinyl-backend/internal/services"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Optional .env for local development; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	setupLogging(cfg)
	gin.SetMode(cfg.GinMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("setup otel: %w", err)
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			return fmt.Errorf("enable db tracing: %w", err)
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Info().Str("path", cfg.DBPath).Msg("database ready")

	// Dependency wiring: store → queue → orchestrator → social, all
	// constructed once and passed explicitly.
	matchSvc := services.NewMatchService(db)

	q := queue.New(log.Logger)
	q.Start(ctx)

	hook := gateway.NewWebhook(cfg.Webhook.ResultURL, cfg.Webhook.ModerationURL, cfg.Webhook.Timeout, log.Logger)

	convSvc := &services.ConversionService{
		Matches: matchSvc,
		Queue:   q,
		Transformer: &audio.SoxTransformer{
			SoxPath:    cfg.Convert.SoxPath,
			SpeedRatio: cfg.Convert.SpeedRatio,
			Timeout:    cfg.Convert.Timeout,
			Log:        log.Logger,
		},
		Notifier:         hook,
		MaxSourceBytes:   cfg.Convert.MaxFileBytes,
		CallbackMaxBytes: cfg.CallbackMaxBytes,
		Log:              log.Logger,
	}

	socialSvc := &services.SocialService{
		Matches:          matchSvc,
		Moderation:       hook,
		CallbackMaxBytes: cfg.CallbackMaxBytes,
		Log:              log.Logger,
	}

	h := handlers.New(convSvc, matchSvc, socialSvc, cfg.CallbackMaxBytes)

	r := gin.New()
	httpapi.RegisterRoutes(r, h, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server exited")
			cancel()
		}
	}()
	log.Info().Str("port", cfg.Port).Str("base_path", cfg.APIBasePath).Msg("server started")

	// Wait for shutdown signal (or server failure via cancel above).
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	// Let the in-flight conversion finish, then stop the worker.
	cancel()
	q.Wait()

	return nil
}

// setupLogging configures the global zerolog logger from config.
func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
