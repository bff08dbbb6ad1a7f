// Package history keeps a bounded, in-process conversation history per
// identity. It is not backed by the message log: entries live for the
// lifetime of the process and are dropped only by Clear.
package history

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/models"
)

const DefaultMaxMessages = 20

// Stats describes the store contents.
type Stats struct {
	TotalIdentities int `json:"total_identities"`
	TotalTurns      int `json:"total_turns"`
}

// Store is safe for concurrent use. A single lock serializes mutations;
// contention is low since each identity sends one message at a time.
type Store[K comparable] struct {
	mu          sync.RWMutex
	turns       map[K][]models.Turn
	maxMessages int
	logger      *zap.Logger
}

func New[K comparable](maxMessages int, logger *zap.Logger) *Store[K] {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("History store initialized", zap.Int("max_messages", maxMessages))
	return &Store[K]{
		turns:       make(map[K][]models.Turn),
		maxMessages: maxMessages,
		logger:      logger,
	}
}

func (s *Store[K]) MaxMessages() int {
	return s.maxMessages
}

// Append records a turn for id, evicting the oldest turns once the history
// exceeds the bound. Empty content is ignored.
func (s *Store[K]) Append(id K, role models.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(id, role, content)
}

// AppendExchange records a user turn and its reply under one lock, so
// exchanges from concurrent callers never interleave.
func (s *Store[K]) AppendExchange(id K, userText, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(id, models.RoleUser, userText)
	s.appendLocked(id, models.RoleAssistant, reply)
}

// Restore seeds the history for id with turns if it is empty and reports
// whether it did. A non-empty history is left untouched.
func (s *Store[K]) Restore(id K, turns []models.Turn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.turns[id]) > 0 {
		return false
	}
	for _, t := range turns {
		s.appendLocked(id, t.Role, t.Content)
	}
	return true
}

func (s *Store[K]) appendLocked(id K, role models.Role, content string) {
	if content == "" {
		s.logger.Debug("Ignoring empty turn", zap.Any("identity", id), zap.String("role", string(role)))
		return
	}

	turns, exists := s.turns[id]
	if !exists {
		s.logger.Info("Created conversation history", zap.Any("identity", id))
	}
	turns = append(turns, models.Turn{Role: role, Content: content})
	for len(turns) > s.maxMessages {
		var removed models.Turn
		turns, removed = evictOldest(turns)
		s.logger.Debug("History limit reached, evicted oldest turn",
			zap.Any("identity", id),
			zap.String("role", string(removed.Role)))
	}
	s.turns[id] = turns
}

// Get returns a copy of the history for id, oldest first.
func (s *Store[K]) Get(id K) []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[id]
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out
}

func (s *Store[K]) Len(id K) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns[id])
}

// Clear drops the history for id. Unknown identities are a no-op.
func (s *Store[K]) Clear(id K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, exists := s.turns[id]
	if !exists {
		s.logger.Debug("No history to clear", zap.Any("identity", id))
		return
	}
	delete(s.turns, id)
	s.logger.Info("Cleared history", zap.Any("identity", id), zap.Int("turns", len(turns)))
}

func (s *Store[K]) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{TotalIdentities: len(s.turns)}
	for _, turns := range s.turns {
		st.TotalTurns += len(turns)
	}
	return st
}

// evictOldest shifts the history left by one, keeping the backing array.
func evictOldest(turns []models.Turn) ([]models.Turn, models.Turn) {
	if len(turns) == 0 {
		panic("history: evict from empty history")
	}
	removed := turns[0]
	copy(turns, turns[1:])
	turns[len(turns)-1] = models.Turn{}
	return turns[:len(turns)-1], removed
}
