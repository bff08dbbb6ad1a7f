package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/models"
)

//go:embed migrations
var migrationsFS embed.FS

type dialect string

const (
	dialectPostgres dialect = "postgres"
	dialectSQLite   dialect = "sqlite"
)

// SQLStorage is the database/sql backend shared by PostgreSQL and SQLite.
// Queries are written with ? placeholders and rebound per dialect.
type SQLStorage struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
	logger  *zap.Logger
}

var _ Storage = (*SQLStorage)(nil)

func newSQLStorage(db *sql.DB, d dialect, logger *zap.Logger) (*SQLStorage, error) {
	s := &SQLStorage{
		db:      db,
		dialect: d,
		now:     time.Now,
		logger:  logger,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders into $1, $2, ... for PostgreSQL.
func (s *SQLStorage) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStorage) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	dir := "migrations/" + string(s.dialect)
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		err := s.db.QueryRow(s.rebind(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`), f).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile(dir + "/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec(s.rebind(`INSERT INTO schema_migrations (version) VALUES (?)`), f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
		s.logger.Info("Applied migration", zap.String("version", f))
	}
	return nil
}

// inTx runs fn in a transaction and commits when it returns nil.
func (s *SQLStorage) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// upsertUser returns the row id for telegramID. A non-empty username
// replaces the stored one.
func (s *SQLStorage) upsertUser(ctx context.Context, tx *sql.Tx, telegramID int64, username string, at time.Time) (int64, error) {
	query := `
		INSERT INTO users (telegram_id, username, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (telegram_id) DO UPDATE SET username =
			CASE WHEN excluded.username = '' THEN users.username ELSE excluded.username END
		RETURNING id`

	var id int64
	if err := tx.QueryRowContext(ctx, s.rebind(query), telegramID, username, toMillis(at)).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert user %d: %w", telegramID, err)
	}
	return id, nil
}

func (s *SQLStorage) insertMessage(ctx context.Context, tx *sql.Tx, userID int64, role models.Role, content string, at time.Time) error {
	query := `
		INSERT INTO messages (user_id, role, content, content_length, created_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := tx.ExecContext(ctx, s.rebind(query),
		userID, string(role), content, utf8.RuneCountInString(content), toMillis(at))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLStorage) SaveExchange(ctx context.Context, telegramID int64, username, userText, reply string) error {
	now := s.now()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		userID, err := s.upsertUser(ctx, tx, telegramID, username, now)
		if err != nil {
			return err
		}
		if err := s.insertMessage(ctx, tx, userID, models.RoleUser, userText, now); err != nil {
			return err
		}
		return s.insertMessage(ctx, tx, userID, models.RoleAssistant, reply, now)
	})
}

func (s *SQLStorage) AddMessages(ctx context.Context, entries ...models.LogEntry) error {
	now := s.now()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		ids := make(map[int64]int64)
		for _, e := range entries {
			at := e.CreatedAt
			if at.IsZero() {
				at = now
			}
			userID, ok := ids[e.TelegramID]
			if !ok {
				var err error
				if userID, err = s.upsertUser(ctx, tx, e.TelegramID, e.Username, at); err != nil {
					return err
				}
				ids[e.TelegramID] = userID
			}
			if err := s.insertMessage(ctx, tx, userID, e.Role, e.Content, at); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStorage) queryTurns(ctx context.Context, query string, args ...any) ([]models.Turn, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := []models.Turn{}
	for rows.Next() {
		var t models.Turn
		var role string
		if err := rows.Scan(&role, &t.Content); err != nil {
			return nil, err
		}
		t.Role = models.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(turns)
	return turns, nil
}

func (s *SQLStorage) GetHistory(ctx context.Context, telegramID int64, limit int) ([]models.Turn, error) {
	query := `
		SELECT m.role, m.content
		FROM messages m
		JOIN users u ON u.id = m.user_id
		WHERE u.telegram_id = ? AND NOT m.is_deleted
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?`

	turns, err := s.queryTurns(ctx, query, telegramID, limit)
	if err != nil {
		return nil, fmt.Errorf("get history for %d: %w", telegramID, err)
	}
	return turns, nil
}

func (s *SQLStorage) ClearHistory(ctx context.Context, telegramID int64) (int, error) {
	query := `
		UPDATE messages SET is_deleted = TRUE
		WHERE NOT is_deleted
		  AND user_id IN (SELECT id FROM users WHERE telegram_id = ?)`

	res, err := s.db.ExecContext(ctx, s.rebind(query), telegramID)
	if err != nil {
		return 0, fmt.Errorf("clear history for %d: %w", telegramID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear history for %d: %w", telegramID, err)
	}
	return int(n), nil
}

func (s *SQLStorage) SaveChatExchange(ctx context.Context, sessionID, mode, userText, reply string) error {
	now := s.now()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO chat_sessions (session_id, created_at, last_active)
			VALUES (?, ?, ?)
			ON CONFLICT (session_id) DO UPDATE SET last_active = excluded.last_active
			RETURNING id`

		var id int64
		if err := tx.QueryRowContext(ctx, s.rebind(query), sessionID, toMillis(now), toMillis(now)).Scan(&id); err != nil {
			return fmt.Errorf("upsert chat session: %w", err)
		}

		insert := s.rebind(`
			INSERT INTO chat_messages (session_id, role, content, mode, created_at)
			VALUES (?, ?, ?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, insert, id, string(models.RoleUser), userText, mode, toMillis(now)); err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insert, id, string(models.RoleAssistant), reply, mode, toMillis(now)); err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
		return nil
	})
}

func (s *SQLStorage) GetChatHistory(ctx context.Context, sessionID string, limit int) ([]models.Turn, error) {
	query := `
		SELECT cm.role, cm.content
		FROM chat_messages cm
		JOIN chat_sessions cs ON cs.id = cm.session_id
		WHERE cs.session_id = ?
		ORDER BY cm.id DESC
		LIMIT ?`

	turns, err := s.queryTurns(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("get chat history for %s: %w", sessionID, err)
	}
	return turns, nil
}

func (s *SQLStorage) ClearChatHistory(ctx context.Context, sessionID string) (int, error) {
	query := `
		DELETE FROM chat_messages
		WHERE session_id IN (SELECT id FROM chat_sessions WHERE session_id = ?)`

	res, err := s.db.ExecContext(ctx, s.rebind(query), sessionID)
	if err != nil {
		return 0, fmt.Errorf("clear chat history for %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear chat history for %s: %w", sessionID, err)
	}
	return int(n), nil
}
