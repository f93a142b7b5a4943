package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/matheus3301/crewchat/internal/message"
)

const conversationColumns = `c.id, c.kind, c.crew_id, c.title, c.created_at`

// EnsureConversation inserts c if no conversation with its id exists and
// returns the stored row.
func (db *DB) EnsureConversation(ctx context.Context, c message.Conversation) (*message.Conversation, error) {
	p, err := message.ParseConversationID(c.ID)
	if err != nil {
		return nil, err
	}
	if c.Kind == "" {
		c.Kind = p.Kind
	}
	if c.CrewID == "" {
		c.CrewID = p.CrewID
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = db.clock()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO conversations (id, kind, crew_id, member_a, member_b, title, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		c.ID, c.Kind, c.CrewID, p.Participants[0], p.Participants[1], c.Title, toMillis(c.CreatedAt))
	if err != nil {
		return nil, classify("ensure conversation", err)
	}
	return db.Conversation(ctx, c.ID)
}

// Conversation returns a single conversation by id.
func (db *DB) Conversation(ctx context.Context, id string) (*message.Conversation, error) {
	var c message.Conversation
	var createdAt int64
	err := db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations c WHERE c.id = ?`, id).
		Scan(&c.ID, &c.Kind, &c.CrewID, &c.Title, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, message.NotFound("conversation", "conversation %q not found", id)
	}
	if err != nil {
		return nil, classify("conversation", err)
	}
	c.CreatedAt = fromMillis(createdAt)
	return &c, nil
}

// CanAccess reports whether userID may read and write conversationID.
// Crew channels require crew membership, direct threads require being one of
// the two participants and the global feed is open to everyone.
func (db *DB) CanAccess(ctx context.Context, conversationID, userID string) (bool, error) {
	c, err := db.Conversation(ctx, conversationID)
	if err != nil {
		return false, err
	}
	switch c.Kind {
	case message.KindGlobal:
		return true, nil
	case message.KindCrew:
		return db.IsMember(ctx, c.CrewID, userID)
	case message.KindDirect:
		var n int
		err := db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM conversations
			WHERE id = ? AND (member_a = ? OR member_b = ?)`, conversationID, userID, userID).Scan(&n)
		if err != nil {
			return false, classify("can access", err)
		}
		return n > 0, nil
	}
	return false, nil
}

// ListConversations returns every conversation visible to userID, most
// recently active first, with the last message preview filled in.
func (db *DB) ListConversations(ctx context.Context, userID string) ([]message.Conversation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+conversationColumns+`,
			COALESCE(last.created_at, 0),
			COALESCE(last.content, '')
		FROM conversations c
		LEFT JOIN messages last ON last.id = (
			SELECT m.id FROM messages m
			WHERE m.conversation_id = c.id
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT 1)
		WHERE c.kind = 'global'
			OR (c.kind = 'crew' AND c.crew_id IN (SELECT crew_id FROM crew_members WHERE user_id = ?))
			OR (c.kind = 'direct' AND (c.member_a = ? OR c.member_b = ?))
		ORDER BY MAX(COALESCE(last.created_at, 0), c.created_at) DESC, c.id`,
		userID, userID, userID)
	if err != nil {
		return nil, classify("list conversations", err)
	}
	defer func() { _ = rows.Close() }()

	var out []message.Conversation
	for rows.Next() {
		var c message.Conversation
		var createdAt, lastAt int64
		var preview string
		if err := rows.Scan(&c.ID, &c.Kind, &c.CrewID, &c.Title, &createdAt, &lastAt, &preview); err != nil {
			return nil, classify("list conversations", err)
		}
		c.CreatedAt = fromMillis(createdAt)
		c.LastMessageAt = fromMillis(lastAt)
		c.LastMessagePreview = message.Preview(preview, 80)
		out = append(out, c)
	}
	return out, classify("list conversations", rows.Err())
}
