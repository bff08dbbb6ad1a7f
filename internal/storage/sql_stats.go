package storage

import (
	"context"
	"fmt"

	"github.com/xaenox/tea-bot/internal/models"
)

func (s *SQLStorage) count(ctx context.Context, what, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", what, err)
	}
	return n, nil
}

func (s *SQLStorage) CountMessages(ctx context.Context, r models.TimeRange) (int, error) {
	return s.count(ctx, "messages", `
		SELECT COUNT(*) FROM messages
		WHERE NOT is_deleted AND created_at >= ? AND created_at < ?`,
		toMillis(r.From), toMillis(r.To))
}

func (s *SQLStorage) CountConversations(ctx context.Context, r models.TimeRange) (int, error) {
	return s.count(ctx, "conversations", `
		SELECT COUNT(DISTINCT user_id) FROM messages
		WHERE NOT is_deleted AND created_at >= ? AND created_at < ?`,
		toMillis(r.From), toMillis(r.To))
}

func (s *SQLStorage) CountActiveUsers(ctx context.Context, r models.TimeRange) (int, error) {
	return s.count(ctx, "active users", `
		SELECT COUNT(DISTINCT u.id)
		FROM users u
		JOIN messages m ON m.user_id = u.id
		WHERE NOT u.is_deleted AND NOT m.is_deleted
		  AND m.created_at >= ? AND m.created_at < ?`,
		toMillis(r.From), toMillis(r.To))
}

func (s *SQLStorage) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, "users", `SELECT COUNT(*) FROM users WHERE NOT is_deleted`)
}

func (s *SQLStorage) queryActivity(ctx context.Context, query string, args ...any) ([]models.UserActivity, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.UserActivity{}
	for rows.Next() {
		var (
			a           models.UserActivity
			first, last int64
		)
		if err := rows.Scan(&a.TelegramID, &a.Username, &first, &last, &a.MessageCount); err != nil {
			return nil, err
		}
		a.FirstMessageAt = fromMillis(first)
		a.LastMessageAt = fromMillis(last)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStorage) RecentUsers(ctx context.Context, limit int) ([]models.UserActivity, error) {
	query := `
		SELECT u.telegram_id, u.username, MIN(m.created_at), MAX(m.created_at), COUNT(m.id)
		FROM users u
		JOIN messages m ON m.user_id = u.id
		WHERE NOT u.is_deleted AND NOT m.is_deleted
		GROUP BY u.id, u.telegram_id, u.username
		ORDER BY MAX(m.created_at) DESC, u.id DESC
		LIMIT ?`

	out, err := s.queryActivity(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent users: %w", err)
	}
	return out, nil
}

func (s *SQLStorage) TopUsers(ctx context.Context, r models.TimeRange, limit int) ([]models.UserActivity, error) {
	query := `
		SELECT u.telegram_id, u.username, MIN(m.created_at), MAX(m.created_at), COUNT(m.id)
		FROM users u
		JOIN messages m ON m.user_id = u.id
		WHERE NOT u.is_deleted AND NOT m.is_deleted
		  AND m.created_at >= ? AND m.created_at < ?
		GROUP BY u.id, u.telegram_id, u.username
		ORDER BY COUNT(m.id) DESC, MAX(m.created_at) DESC
		LIMIT ?`

	out, err := s.queryActivity(ctx, query, toMillis(r.From), toMillis(r.To), limit)
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}
	return out, nil
}
