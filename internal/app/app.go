// Package app wires configuration into the components shared by the binaries.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/chat"
	"github.com/xaenox/tea-bot/internal/classifier"
	"github.com/xaenox/tea-bot/internal/llm"
	"github.com/xaenox/tea-bot/internal/stats"
	"github.com/xaenox/tea-bot/internal/storage"
	"github.com/xaenox/tea-bot/internal/synthetic"
	"github.com/xaenox/tea-bot/pkg/config"
)

func OpenStorage(cfg config.DatabaseConfig, logger *zap.Logger) (storage.Storage, error) {
	return storage.New(storage.DatabaseConfig{
		Driver:   cfg.Driver,
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		DBName:   cfg.DBName,
		SSLMode:  cfg.SSLMode,
		Path:     cfg.Path,
	}, logger)
}

// StatsProvider returns the aggregator over log, or the synthetic provider
// when the config asks for demo numbers.
func StatsProvider(cfg config.StatsConfig, log stats.MessageLog, logger *zap.Logger) stats.Provider {
	if cfg.Source == "synthetic" {
		logger.Info("Using synthetic statistics", zap.Uint64("seed", cfg.Seed))
		return synthetic.NewProvider(cfg.Seed, nil)
	}
	return stats.New(log, logger.Named("stats"))
}

func LLMClient(cfg config.OpenAIConfig, logger *zap.Logger) (*llm.Client, error) {
	prompt, err := llm.LoadSystemPrompt(cfg.SystemPromptPath)
	if err != nil {
		return nil, fmt.Errorf("load system prompt: %w", err)
	}
	return llm.New(llm.Config{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Model:        cfg.Model,
		MaxTokens:    cfg.MaxTokens,
		Temperature:  cfg.Temperature,
		Timeout:      cfg.Timeout,
		SystemPrompt: prompt,
	}, logger.Named("llm")), nil
}

// Router builds the chat router on top of the model client and the admin
// responder for provider.
func Router(cfg *config.Config, responder chat.Responder, provider stats.Provider, logger *zap.Logger) *chat.Router {
	admin := classifier.NewAdmin(provider, logger.Named("admin"))
	return chat.NewRouter(responder, admin, cfg.Chat.MaxHistoryMessages, logger.Named("chat"))
}
