package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/app"
	"github.com/xaenox/tea-bot/internal/bot"
	"github.com/xaenox/tea-bot/internal/history"
	"github.com/xaenox/tea-bot/pkg/config"
	"github.com/xaenox/tea-bot/pkg/logger"
)

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

	if err := cfg.Validate(config.RequireTelegram, config.RequireLLM); err != nil {
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

	hist := history.New[int64](cfg.Chat.MaxHistoryMessages, log.Named("history"))
	b, err := bot.New(cfg.Telegram.Token, router, hist, store, bot.Options{
		SystemPrompt: client.SystemPrompt(),
		AdminIDs:     cfg.Telegram.AdminIDs,
	}, log.Named("bot"))
	if err != nil {
		log.Fatal("Failed to create bot", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.Start(ctx); err != nil {
		log.Fatal("Bot error", zap.Error(err))
	}
	log.Info("Bot stopped")
}
