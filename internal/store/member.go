package store

import (
	"context"

	"github.com/matheus3301/crewchat/internal/message"
)

// AddMember inserts or updates a crew membership.
func (db *DB) AddMember(ctx context.Context, m message.Member) error {
	if m.Role == "" {
		m.Role = "member"
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = db.clock()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO crew_members (crew_id, user_id, display_name, role, joined_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(crew_id, user_id) DO UPDATE SET
			display_name = excluded.display_name`,
		m.CrewID, m.UserID, m.DisplayName, m.Role, toMillis(m.JoinedAt))
	return classify("add member", err)
}

// IsMember reports whether userID belongs to crewID.
func (db *DB) IsMember(ctx context.Context, crewID, userID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crew_members WHERE crew_id = ? AND user_id = ?`, crewID, userID).Scan(&n)
	if err != nil {
		return false, classify("is member", err)
	}
	return n > 0, nil
}

// ListMembers returns the members of a crew ordered by display name.
func (db *DB) ListMembers(ctx context.Context, crewID string) ([]message.Member, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT crew_id, user_id, display_name, role, joined_at
		FROM crew_members
		WHERE crew_id = ?
		ORDER BY display_name, user_id`, crewID)
	if err != nil {
		return nil, classify("list members", err)
	}
	defer func() { _ = rows.Close() }()

	var out []message.Member
	for rows.Next() {
		var m message.Member
		var joined int64
		if err := rows.Scan(&m.CrewID, &m.UserID, &m.DisplayName, &m.Role, &joined); err != nil {
			return nil, classify("list members", err)
		}
		m.JoinedAt = fromMillis(joined)
		out = append(out, m)
	}
	return out, classify("list members", rows.Err())
}

// ClaimCrew adds m as the first member of its crew. It reports false, and
// changes nothing, when the crew already has a member.
func (db *DB) ClaimCrew(ctx context.Context, m message.Member) (bool, error) {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = db.clock()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO crew_members (crew_id, user_id, display_name, role, joined_at)
		SELECT ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM crew_members WHERE crew_id = ?)`,
		m.CrewID, m.UserID, m.DisplayName, m.Role, toMillis(m.JoinedAt), m.CrewID)
	if err != nil {
		return false, classify("claim crew", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("claim crew", err)
	}
	return n == 1, nil
}
