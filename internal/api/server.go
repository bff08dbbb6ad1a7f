// Package api serves the web chat and the statistics dashboard over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/apperr"
	"github.com/xaenox/tea-bot/internal/chat"
	"github.com/xaenox/tea-bot/internal/models"
	"github.com/xaenox/tea-bot/internal/stats"
)

const (
	serviceName    = "TEA API"
	serviceVersion = "1.1.0"
)

// Handler produces a chat reply; *chat.Router implements it.
type Handler interface {
	Handle(ctx context.Context, message string, mode chat.Mode, history []models.Turn) (string, error)
}

// ChatStore persists web chat sessions.
type ChatStore interface {
	GetChatHistory(ctx context.Context, sessionID string, limit int) ([]models.Turn, error)
	SaveChatExchange(ctx context.Context, sessionID, mode, userText, reply string) error
	ClearChatHistory(ctx context.Context, sessionID string) (int, error)
}

type Options struct {
	MaxHistory     int
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
}

type Server struct {
	handler    Handler
	stats      stats.Provider
	store      ChatStore
	limiter    *SessionLimiter
	maxHistory int
	origins    []string
	now        func() time.Time
	logger     *zap.Logger
	mux        *http.ServeMux
}

func NewServer(handler Handler, provider stats.Provider, store ChatStore, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = chat.DefaultMaxHistory
	}
	s := &Server{
		handler:    handler,
		stats:      provider,
		store:      store,
		limiter:    NewSessionLimiter(opts.RateLimit, opts.RateBurst),
		maxHistory: opts.MaxHistory,
		origins:    opts.AllowedOrigins,
		now:        time.Now,
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /api/v1/chat/message", s.handleChatMessage)
	s.mux.HandleFunc("DELETE /api/v1/chat/sessions/{id}", s.handleClearSession)
	s.mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

// Handler returns the mux wrapped in the request id, logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	return withRequestID(s.withLogging(s.withCORS(s.mux)))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
		"endpoints": map[string]string{
			"stats": "/api/v1/stats?period={day|week|month}",
			"chat":  "/api/v1/chat/message",
		},
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, errorResponse{Error: errCode, Message: msg})
}

// writeAppError maps err to a status and a message safe to show a client.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	code := apperr.CodeOf(err)

	fields := []zap.Field{
		zap.Error(err),
		zap.String("code", string(code)),
		zap.String("request_id", requestIDFrom(r.Context())),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", fields...)
	} else {
		s.logger.Info("Request rejected", fields...)
	}

	if errors.Is(err, context.Canceled) {
		return
	}
	writeError(w, status, string(code), apperr.UserMessage(err))
}
