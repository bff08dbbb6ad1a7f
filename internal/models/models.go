package models

import "time"

// User is a Telegram user known to the message log.
type User struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	IsDeleted  bool      `json:"is_deleted"`
}

// Message is one persisted turn of a Telegram conversation.
type Message struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	Role          Role      `json:"role"`
	Content       string    `json:"content"`
	ContentLength int       `json:"content_length"`
	CreatedAt     time.Time `json:"created_at"`
	IsDeleted     bool      `json:"is_deleted"`
}

// LogEntry is a message to be written to the log on behalf of a Telegram user.
// CreatedAt is set explicitly when importing or seeding data.
type LogEntry struct {
	TelegramID int64
	Username   string
	Role       Role
	Content    string
	CreatedAt  time.Time
}

// ChatSession is a web chat session identified by a client supplied token.
type ChatSession struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// UserActivity aggregates the log rows of one user.
type UserActivity struct {
	TelegramID     int64
	Username       string
	FirstMessageAt time.Time
	LastMessageAt  time.Time
	MessageCount   int
}

// TimeRange is a half-open interval [From, To).
type TimeRange struct {
	From time.Time
	To   time.Time
}

func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}
