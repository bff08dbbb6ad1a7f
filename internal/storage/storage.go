// Package storage persists the Telegram message log and web chat sessions.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/models"
	"github.com/xaenox/tea-bot/internal/stats"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Storage interface {
	// Statistics queries over the Telegram log.
	stats.MessageLog

	// SaveExchange records a user message and the reply to it atomically.
	SaveExchange(ctx context.Context, telegramID int64, username, userText, reply string) error
	// AddMessages writes entries in one transaction, creating users as needed.
	AddMessages(ctx context.Context, entries ...models.LogEntry) error
	// GetHistory returns the latest limit turns of a user, oldest first.
	GetHistory(ctx context.Context, telegramID int64, limit int) ([]models.Turn, error)
	// ClearHistory soft-deletes a user's messages and reports how many were hidden.
	ClearHistory(ctx context.Context, telegramID int64) (int, error)

	// SaveChatExchange records a web chat exchange, creating the session if needed.
	SaveChatExchange(ctx context.Context, sessionID, mode, userText, reply string) error
	GetChatHistory(ctx context.Context, sessionID string, limit int) ([]models.Turn, error)
	// ClearChatHistory removes a session's messages for good.
	ClearChatHistory(ctx context.Context, sessionID string) (int, error)

	Close() error
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Path is the SQLite database file, or ":memory:".
	Path string
}

// New opens the backend selected by cfg.Driver.
func New(cfg DatabaseConfig, logger *zap.Logger) (Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case DriverPostgres:
		logger.Info("Using PostgreSQL storage",
			zap.String("host", cfg.Host),
			zap.String("dbname", cfg.DBName))
		return NewPostgresStorage(cfg, logger)
	case DriverSQLite:
		logger.Info("Using SQLite storage", zap.String("path", cfg.Path))
		return NewSQLiteStorage(cfg.Path, logger)
	case DriverMemory, "":
		logger.Info("Using in-memory storage")
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func reverse(turns []models.Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
