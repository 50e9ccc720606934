package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/RichardoC/threadchat/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Timestamps are stored as unix nanoseconds so ordering survives round trips
// without depending on the driver's time format. revision records the order
// of modifications so conversations touched within the same clock tick still
// list newest first; seq does the same for messages.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    revision INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at, seq);`

const nextRevision = `(SELECT COALESCE(MAX(revision), 0) + 1 FROM conversations)`

// SQLiteStore implements Store on a SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

func OpenSQLite(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db, opts: buildOptions(opts)}, nil
}

func (s *SQLiteStore) CreateConversation(title string) (*models.Conversation, error) {
	now := s.opts.now()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
        INSERT INTO conversations (id, title, created_at, updated_at, revision)
        VALUES (?, ?, ?, ?, ` + nextRevision + `)`

	if _, err := s.db.Exec(query, conv.ID, conv.Title, now.UnixNano(), now.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLiteStore) GetConversation(id string) (*models.Conversation, error) {
	query := `
        SELECT id, title, created_at, updated_at
        FROM conversations
        WHERE id = ?`

	conv, err := scanConversation(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLiteStore) ListConversations() ([]models.Conversation, error) {
	query := `
        SELECT id, title, created_at, updated_at
        FROM conversations
        ORDER BY updated_at DESC, revision DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	return conversations, rows.Err()
}

func (s *SQLiteStore) UpdateConversationTitle(id, title string) (*models.Conversation, error) {
	now := s.opts.now()
	query := `
        UPDATE conversations
        SET title = ?, updated_at = ?, revision = ` + nextRevision + `
        WHERE id = ?`

	res, err := s.db.Exec(query, title, now.UnixNano(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetConversation(id)
}

func (s *SQLiteStore) DeleteConversation(id string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return false, fmt.Errorf("failed to delete messages: %w", err)
	}

	res, err := tx.Exec("DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) CreateMessage(conversationID string, role models.Role, content string) (*models.Message, error) {
	now := s.opts.now()
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO messages (id, conversation_id, role, content, created_at)
        VALUES (?, ?, ?, ?, ?)`

	if _, err := tx.Exec(query, msg.ID, msg.ConversationID, string(msg.Role), msg.Content, now.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	touch := `UPDATE conversations SET updated_at = ?, revision = ` + nextRevision + ` WHERE id = ?`
	if _, err := tx.Exec(touch, now.UnixNano(), conversationID); err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *SQLiteStore) ListMessages(conversationID string) ([]models.Message, error) {
	query := `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY created_at ASC, seq ASC`

	rows, err := s.db.Query(query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var (
			msg       models.Message
			role      string
			createdAt int64
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = models.Role(role)
		msg.CreatedAt = time.Unix(0, createdAt)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var (
		conv               models.Conversation
		createdAt, updated int64
	)
	if err := row.Scan(&conv.ID, &conv.Title, &createdAt, &updated); err != nil {
		return nil, err
	}
	conv.CreatedAt = time.Unix(0, createdAt)
	conv.UpdatedAt = time.Unix(0, updated)
	return &conv, nil
}
