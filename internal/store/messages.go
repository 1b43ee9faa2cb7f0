package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one immutable conversation turn. For channel-sourced
// messages UUID equals the channel's native message id and doubles as
// the dedup key; bot-generated messages carry a random UUID.
type Message struct {
	ID                    int64
	Role                  string
	Contents              string
	UUID                  string
	ChannelType           string
	ChannelConversationID string
	CreatedAt             time.Time
}

// ChannelTelegram is the channel_type recorded on Telegram messages.
const ChannelTelegram = "telegram"

// InsertMessage appends a message to the log. Inserting a duplicate
// UUID fails with the underlying UNIQUE constraint error.
func (s *Store) InsertMessage(ctx context.Context, m *Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (role, contents, uuid, channel_type, channel_conversation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.Role, m.Contents, m.UUID, m.ChannelType, m.ChannelConversationID, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

// MessageExists reports whether a message with the given UUID was
// already persisted. Used for at-most-once processing of channel events.
func (s *Store) MessageExists(ctx context.Context, uuid string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM messages WHERE uuid = ?`, uuid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("message exists: %w", err)
	}
	return true, nil
}

// ListConversation returns non-system messages for the channel ordered
// oldest to newest. window >= 0 keeps only the last window messages;
// a negative window returns the entire history.
func (s *Store) ListConversation(ctx context.Context, channelType, conversationID string, window int) ([]Message, error) {
	query := `
		SELECT id, role, contents, uuid, channel_type, channel_conversation_id, created_at
		FROM messages
		WHERE role != ? AND channel_type = ? AND channel_conversation_id = ?
		ORDER BY created_at DESC, id DESC`
	args := []any{RoleSystem, channelType, conversationID}
	if window >= 0 {
		query += ` LIMIT ?`
		args = append(args, window)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Contents, &m.UUID, &m.ChannelType, &m.ChannelConversationID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Fetched newest-first for the LIMIT; reverse to oldest-first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// DeleteAllMessages wipes the message log (forget/amnesia).
func (s *Store) DeleteAllMessages(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

// CountMessages returns the total number of persisted messages.
func (s *Store) CountMessages(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
