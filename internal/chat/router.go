// Package chat routes an inbound message to the model backend or to the
// admin statistics responder.
package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/apperr"
	"github.com/xaenox/tea-bot/internal/models"
)

const DefaultMaxHistory = 20

type Mode string

const (
	ModeNormal Mode = "normal"
	ModeAdmin  Mode = "admin"
)

// ParseMode validates a mode received from a client.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeNormal, ModeAdmin:
		return m, nil
	default:
		return "", invalidMode(s)
	}
}

func invalidMode(s string) error {
	return apperr.New(apperr.CodeInvalidMode,
		fmt.Sprintf("invalid chat mode %q: must be 'normal' or 'admin'", s), nil)
}

// Responder produces a conversational reply.
type Responder interface {
	Respond(ctx context.Context, history []models.Turn, message string) (string, error)
}

// AdminResponder answers questions about usage statistics.
type AdminResponder interface {
	Answer(ctx context.Context, query string, history []models.Turn) (string, error)
}

type Router struct {
	responder  Responder
	admin      AdminResponder
	maxHistory int
	logger     *zap.Logger
}

func NewRouter(responder Responder, admin AdminResponder, maxHistory int, logger *zap.Logger) *Router {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		responder:  responder,
		admin:      admin,
		maxHistory: maxHistory,
		logger:     logger,
	}
}

// Handle produces the reply to message in the given mode. Only the last
// maxHistory turns of history are passed on. Backend errors are returned
// unchanged.
func (r *Router) Handle(ctx context.Context, message string, mode Mode, history []models.Turn) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", apperr.New(apperr.CodeEmptyMessage, "message must not be empty", nil)
	}
	if len(history) > r.maxHistory {
		history = history[len(history)-r.maxHistory:]
	}

	r.logger.Debug("Routing chat message",
		zap.String("mode", string(mode)),
		zap.Int("history", len(history)))

	var (
		reply string
		err   error
	)
	switch mode {
	case ModeNormal:
		reply, err = r.responder.Respond(ctx, history, message)
	case ModeAdmin:
		reply, err = r.admin.Answer(ctx, message, history)
	default:
		return "", invalidMode(string(mode))
	}
	if err != nil {
		r.logger.Warn("Chat backend failed",
			zap.String("mode", string(mode)),
			zap.Error(err))
		return "", err
	}
	return reply, nil
}
