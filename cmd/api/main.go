package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/api"
	"github.com/xaenox/tea-bot/internal/app"
	"github.com/xaenox/tea-bot/pkg/config"
	"github.com/xaenox/tea-bot/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		zap.NewExample().Fatal("Failed to build logger", zap.Error(err))
	}
	defer log.Sync()

	if err := cfg.Validate(config.RequireLLM); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	store, err := app.OpenStorage(cfg.Database, log.Named("storage"))
	if err != nil {
		log.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	client, err := app.LLMClient(cfg.OpenAI, log)
	if err != nil {
		log.Fatal("Failed to initialize model client", zap.Error(err))
	}
	provider := app.StatsProvider(cfg.Stats, store, log)
	router := app.Router(cfg, client, provider, log)

	server := api.NewServer(router, provider, store, api.Options{
		MaxHistory:     cfg.Chat.MaxHistoryMessages,
		AllowedOrigins: cfg.API.AllowedOrigins,
		RateLimit:      cfg.API.RateLimit,
		RateBurst:      cfg.API.RateBurst,
	}, log.Named("api"))

	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Starting API server", zap.String("addr", cfg.API.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Server error", zap.Error(err))
	}
	log.Info("API server stopped")
}
