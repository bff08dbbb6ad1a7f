package storage

import (
	"context"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/xaenox/tea-bot/internal/models"
)

type chatMessage struct {
	turn models.Turn
	mode string
	at   time.Time
}

// MemoryStorage keeps the log in process memory. It is meant for local runs
// and tests; everything is lost on restart.
type MemoryStorage struct {
	mu       sync.RWMutex
	users    map[int64]*models.User
	messages []*models.Message
	sessions map[string][]chatMessage
	nextID   int64
	now      func() time.Time
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:    make(map[int64]*models.User),
		sessions: make(map[string][]chatMessage),
		now:      time.Now,
	}
}

// user returns the record for telegramID, creating it if needed. Callers hold mu.
func (s *MemoryStorage) user(telegramID int64, username string, at time.Time) *models.User {
	u, ok := s.users[telegramID]
	if !ok {
		s.nextID++
		u = &models.User{ID: s.nextID, TelegramID: telegramID, CreatedAt: at}
		s.users[telegramID] = u
	}
	if username != "" {
		u.Username = username
	}
	return u
}

func (s *MemoryStorage) append(u *models.User, role models.Role, content string, at time.Time) {
	s.nextID++
	s.messages = append(s.messages, &models.Message{
		ID:            s.nextID,
		UserID:        u.ID,
		Role:          role,
		Content:       content,
		ContentLength: utf8.RuneCountInString(content),
		CreatedAt:     at,
	})
}

func (s *MemoryStorage) SaveExchange(_ context.Context, telegramID int64, username, userText, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	u := s.user(telegramID, username, now)
	s.append(u, models.RoleUser, userText, now)
	s.append(u, models.RoleAssistant, reply, now)
	return nil
}

func (s *MemoryStorage) AddMessages(_ context.Context, entries ...models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, e := range entries {
		at := e.CreatedAt
		if at.IsZero() {
			at = now
		}
		s.append(s.user(e.TelegramID, e.Username, at), e.Role, e.Content, at)
	}
	return nil
}

// visible returns the non-deleted messages of telegramID ordered oldest first.
func (s *MemoryStorage) visible(telegramID int64) []*models.Message {
	u, ok := s.users[telegramID]
	if !ok {
		return nil
	}
	var out []*models.Message
	for _, m := range s.messages {
		if m.UserID == u.ID && !m.IsDeleted {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryStorage) GetHistory(_ context.Context, telegramID int64, limit int) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.visible(telegramID)
	if limit >= 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	turns := make([]models.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, models.Turn{Role: m.Role, Content: m.Content})
	}
	return turns, nil
}

func (s *MemoryStorage) ClearHistory(_ context.Context, telegramID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.visible(telegramID)
	for _, m := range msgs {
		m.IsDeleted = true
	}
	return len(msgs), nil
}

func (s *MemoryStorage) SaveChatExchange(_ context.Context, sessionID, mode, userText, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sessions[sessionID] = append(s.sessions[sessionID],
		chatMessage{turn: models.UserTurn(userText), mode: mode, at: now},
		chatMessage{turn: models.AssistantTurn(reply), mode: mode, at: now})
	return nil
}

func (s *MemoryStorage) GetChatHistory(_ context.Context, sessionID string, limit int) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.sessions[sessionID]
	if limit >= 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	turns := make([]models.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, m.turn)
	}
	return turns, nil
}

func (s *MemoryStorage) ClearChatHistory(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.sessions[sessionID])
	delete(s.sessions, sessionID)
	return n, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

// Statistics

func (s *MemoryStorage) usersByID() map[int64]*models.User {
	out := make(map[int64]*models.User, len(s.users))
	for _, u := range s.users {
		out[u.ID] = u
	}
	return out
}

func (s *MemoryStorage) inRange(r models.TimeRange) []*models.Message {
	var out []*models.Message
	for _, m := range s.messages {
		if !m.IsDeleted && r.Contains(m.CreatedAt) {
			out = append(out, m)
		}
	}
	return out
}

func (s *MemoryStorage) CountMessages(_ context.Context, r models.TimeRange) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inRange(r)), nil
}

func (s *MemoryStorage) CountConversations(_ context.Context, r models.TimeRange) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]struct{})
	for _, m := range s.inRange(r) {
		seen[m.UserID] = struct{}{}
	}
	return len(seen), nil
}

func (s *MemoryStorage) CountActiveUsers(_ context.Context, r models.TimeRange) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.usersByID()
	seen := make(map[int64]struct{})
	for _, m := range s.inRange(r) {
		if u := byID[m.UserID]; u != nil && !u.IsDeleted {
			seen[m.UserID] = struct{}{}
		}
	}
	return len(seen), nil
}

func (s *MemoryStorage) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, u := range s.users {
		if !u.IsDeleted {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStorage) activity(msgs []*models.Message) []models.UserActivity {
	byID := s.usersByID()
	acc := make(map[int64]*models.UserActivity)
	for _, m := range msgs {
		u := byID[m.UserID]
		if u == nil || u.IsDeleted {
			continue
		}
		a, ok := acc[u.ID]
		if !ok {
			a = &models.UserActivity{
				TelegramID:     u.TelegramID,
				Username:       u.Username,
				FirstMessageAt: m.CreatedAt,
				LastMessageAt:  m.CreatedAt,
			}
			acc[u.ID] = a
		}
		a.MessageCount++
		if m.CreatedAt.Before(a.FirstMessageAt) {
			a.FirstMessageAt = m.CreatedAt
		}
		if m.CreatedAt.After(a.LastMessageAt) {
			a.LastMessageAt = m.CreatedAt
		}
	}
	out := make([]models.UserActivity, 0, len(acc))
	for _, a := range acc {
		out = append(out, *a)
	}
	return out
}

func (s *MemoryStorage) RecentUsers(_ context.Context, limit int) ([]models.UserActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var live []*models.Message
	for _, m := range s.messages {
		if !m.IsDeleted {
			live = append(live, m)
		}
	}
	out := s.activity(live)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		return out[i].TelegramID > out[j].TelegramID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStorage) TopUsers(_ context.Context, r models.TimeRange, limit int) ([]models.UserActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.activity(s.inRange(r))
	sort.Slice(out, func(i, j int) bool {
		if out[i].MessageCount != out[j].MessageCount {
			return out[i].MessageCount > out[j].MessageCount
		}
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
