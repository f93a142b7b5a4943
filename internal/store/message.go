package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matheus3301/crewchat/internal/message"
)

const messageColumns = `id, conversation_id, idempotency_key, sender_id, sender_display_name,
	content, attachments, reply_to_message_id, attempt, client_sent_at, created_at`

// InsertResult reports the stored message and whether the insert was a replay
// of an idempotency key the store had already accepted.
type InsertResult struct {
	Message    message.Message
	Duplicated bool
}

// InsertMessage persists m, assigning its server id and timestamp. Inserts are
// idempotent on (conversation_id, idempotency_key): a replay returns the row
// stored by the first call unchanged.
func (db *DB) InsertMessage(ctx context.Context, m message.Message) (*InsertResult, error) {
	if m.IdempotencyKey == "" {
		return nil, message.Validation("insert message", "idempotency key is required")
	}
	if err := message.ValidateContent(m.Content, m.Attachments); err != nil {
		return nil, err
	}

	id, createdAt, err := db.nextID()
	if err != nil {
		return nil, err
	}
	attachments, err := encodeAttachments(m.Attachments)
	if err != nil {
		return nil, message.E(message.KindValidation, "insert message", err)
	}
	attempt := m.Attempt
	if attempt < 1 {
		attempt = 1
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, idempotency_key) DO NOTHING`,
		id, m.ConversationID, m.IdempotencyKey, m.SenderID, m.SenderDisplayName,
		m.Content, attachments, m.ReplyToMessageID, attempt, toMillis(m.ClientSentAt), toMillis(createdAt))
	if err != nil {
		return nil, classify("insert message", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, classify("insert message", err)
	}

	stored, err := db.MessageByKey(ctx, m.ConversationID, m.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	return &InsertResult{Message: *stored, Duplicated: n == 0}, nil
}

// MessageByKey returns the stored message for an idempotency key.
func (db *DB) MessageByKey(ctx context.Context, conversationID, key string) (*message.Message, error) {
	row := db.QueryRowContext(ctx, `SELECT `+messageColumns+`
		FROM messages WHERE conversation_id = ? AND idempotency_key = ?`, conversationID, key)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, message.NotFound("message by key", "no message with key %q in %q", key, conversationID)
	}
	if err != nil {
		return nil, classify("message by key", err)
	}
	return m, nil
}

// MessageByID returns a stored message of conversationID by its server id.
func (db *DB) MessageByID(ctx context.Context, conversationID, id string) (*message.Message, error) {
	row := db.QueryRowContext(ctx, `SELECT `+messageColumns+`
		FROM messages WHERE conversation_id = ? AND id = ?`, conversationID, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, message.NotFound("message by id", "no message %q in %q", id, conversationID)
	}
	if err != nil {
		return nil, classify("message by id", err)
	}
	return m, nil
}

// ListMessages returns the newest limit messages of a conversation in
// ascending store order. When before is set only messages older than the
// message with that id are returned.
func (db *DB) ListMessages(ctx context.Context, conversationID string, before string, limit int) ([]message.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?`
	args := []any{conversationID}
	if before != "" {
		q += ` AND (created_at, id) < (SELECT created_at, id FROM messages WHERE id = ?)`
		args = append(args, before)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify("list messages", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []message.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, classify("list messages", err)
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list messages", err)
	}
	// Reverse into ascending order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*message.Message, error) {
	var m message.Message
	var attachments string
	var clientSentAt, createdAt int64
	if err := s.Scan(&m.ID, &m.ConversationID, &m.IdempotencyKey, &m.SenderID, &m.SenderDisplayName,
		&m.Content, &attachments, &m.ReplyToMessageID, &m.Attempt, &clientSentAt, &createdAt); err != nil {
		return nil, err
	}
	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of %s: %w", m.ID, err)
		}
	}
	m.ClientSentAt = fromMillis(clientSentAt)
	m.CreatedAt = fromMillis(createdAt)
	m.Status = message.StatusSent
	return &m, nil
}

func encodeAttachments(a []message.Attachment) (string, error) {
	if len(a) == 0 {
		return "", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
