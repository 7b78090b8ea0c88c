package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"meetly/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id          TEXT PRIMARY KEY,
		title       TEXT,
		channel     TEXT NOT NULL,
		chat_id     TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_chat ON conversations(channel, chat_id);

	CREATE TABLE IF NOT EXISTS messages (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role            TEXT NOT NULL,
		content         TEXT,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS meetings (
		id                TEXT PRIMARY KEY,
		title             TEXT NOT NULL,
		start_at          DATETIME NOT NULL,
		end_at            DATETIME NOT NULL,
		participants      TEXT NOT NULL,
		emails            TEXT NOT NULL,
		meet_link         TEXT,
		doc_request_sent  INTEGER DEFAULT 0,
		channel           TEXT NOT NULL,
		chat_id           TEXT NOT NULL,
		created_at        DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_meetings_chat ON meetings(channel, chat_id);
	CREATE INDEX IF NOT EXISTS idx_meetings_start ON meetings(start_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	now := time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (id, title, channel, chat_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.Channel, conv.ChatID, conv.CreatedAt, conv.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, channel, chat_id, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.Title, &conv.Channel, &conv.ChatID, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *SQLiteStore) FindConversation(ctx context.Context, channel, chatID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, channel, chat_id, created_at, updated_at
		 FROM conversations WHERE channel = ? AND chat_id = ?
		 ORDER BY updated_at DESC LIMIT 1`, channel, chatID,
	).Scan(&conv.ID, &conv.Title, &conv.Channel, &conv.ChatID, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *SQLiteStore) ListConversations(ctx context.Context, limit int) ([]*domain.Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, channel, chat_id, created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.Channel, &c.ChatID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, &c)
	}
	return convs, rows.Err()
}

func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, convID string, msg domain.ChatMessage) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at)
		 VALUES (?, ?, ?, ?)`,
		convID, msg.Role, msg.Content, now,
	)
	if err != nil {
		return err
	}

	_, _ = s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, convID,
	)
	return nil
}

func (s *SQLiteStore) GetMessages(ctx context.Context, convID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	// Get last N messages, ordered oldest first
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM messages WHERE conversation_id = ?
		 ORDER BY id DESC LIMIT ?`, convID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *SQLiteStore) SaveMeeting(ctx context.Context, m *domain.ScheduledMeeting) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	participants, err := json.Marshal(m.Participants)
	if err != nil {
		return err
	}
	emails, err := json.Marshal(m.Emails)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO meetings (id, title, start_at, end_at, participants, emails, meet_link, doc_request_sent, channel, chat_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.Start, m.End, string(participants), string(emails),
		m.MeetLink, boolToInt(m.DocRequestSent), m.Channel, m.ChatID, m.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) MarkDocRequestSent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE meetings SET doc_request_sent = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("meeting not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) MeetingsForChat(ctx context.Context, channel, chatID string) ([]*domain.ScheduledMeeting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, start_at, end_at, participants, emails, meet_link, doc_request_sent, channel, chat_id, created_at
		 FROM meetings WHERE channel = ? AND chat_id = ? ORDER BY start_at`, channel, chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMeetings(rows)
}

func (s *SQLiteStore) MeetingsForDay(ctx context.Context, day time.Time) ([]*domain.ScheduledMeeting, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, start_at, end_at, participants, emails, meet_link, doc_request_sent, channel, chat_id, created_at
		 FROM meetings WHERE start_at >= ? AND start_at < ? ORDER BY start_at`, dayStart, dayEnd,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMeetings(rows)
}

func scanMeetings(rows *sql.Rows) ([]*domain.ScheduledMeeting, error) {
	var meetings []*domain.ScheduledMeeting
	for rows.Next() {
		var m domain.ScheduledMeeting
		var participants, emails string
		var docSent int
		var meetLink sql.NullString
		if err := rows.Scan(&m.ID, &m.Title, &m.Start, &m.End, &participants, &emails,
			&meetLink, &docSent, &m.Channel, &m.ChatID, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(participants), &m.Participants); err != nil {
			return nil, fmt.Errorf("decode participants for %s: %w", m.ID, err)
		}
		if err := json.Unmarshal([]byte(emails), &m.Emails); err != nil {
			return nil, fmt.Errorf("decode emails for %s: %w", m.ID, err)
		}
		m.MeetLink = meetLink.String
		m.DocRequestSent = docSent != 0
		meetings = append(meetings, &m)
	}
	return meetings, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
