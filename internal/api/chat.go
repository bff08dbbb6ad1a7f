package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/apperr"
	"github.com/xaenox/tea-bot/internal/chat"
)

type chatMessageRequest struct {
	Message   string `json:"message"`
	Mode      string `json:"mode"`
	SessionID string `json:"session_id,omitempty"`
}

type chatMessageResponse struct {
	Response  string    `json:"response"`
	Mode      string    `json:"mode"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeAppError(w, r, apperr.New(apperr.CodeInvalidInput, "request body must be a JSON object", err))
		return
	}
	if req.Mode == "" {
		req.Mode = string(chat.ModeNormal)
	}
	mode, err := chat.ParseMode(req.Mode)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	limitKey := req.SessionID
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
		limitKey = clientKey(r.RemoteAddr)
	} else if _, err := uuid.Parse(req.SessionID); err != nil {
		s.writeAppError(w, r, apperr.New(apperr.CodeInvalidInput, "session_id must be a UUID", err))
		return
	}

	if !s.limiter.Allow(limitKey) {
		writeError(w, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many messages. Please slow down.")
		return
	}

	ctx := r.Context()
	history, err := s.store.GetChatHistory(ctx, req.SessionID, s.maxHistory)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	reply, err := s.handler.Handle(ctx, req.Message, mode, history)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	if err := s.store.SaveChatExchange(ctx, req.SessionID, string(mode), req.Message, reply); err != nil {
		// the reply is still useful even if it could not be recorded
		s.logger.Error("Failed to save chat exchange",
			zap.Error(err),
			zap.String("session_id", req.SessionID))
	}

	writeJSON(w, http.StatusOK, chatMessageResponse{
		Response:  reply,
		Mode:      string(mode),
		SessionID: req.SessionID,
		Timestamp: s.now().UTC(),
	})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		s.writeAppError(w, r, apperr.New(apperr.CodeInvalidInput, "session id must be a UUID", err))
		return
	}

	n, err := s.store.ClearChatHistory(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.limiter.Forget(id)

	s.logger.Info("Cleared chat session",
		zap.String("session_id", id),
		zap.Int("deleted", n))
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}
