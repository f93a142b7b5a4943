package store

import (
	"context"

	"github.com/matheus3301/crewchat/internal/presence"
)

// UpsertPresence records a presence change for (user, crew).
func (db *DB) UpsertPresence(ctx context.Context, r presence.Record) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO presence (user_id, crew_id, is_online, last_seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, crew_id) DO UPDATE SET
			is_online = excluded.is_online,
			last_seen_at = excluded.last_seen_at`,
		r.UserID, r.CrewID, r.IsOnline, toMillis(r.LastSeenAt))
	return classify("upsert presence", err)
}

// ListPresence returns every presence record of a crew.
func (db *DB) ListPresence(ctx context.Context, crewID string) ([]presence.Record, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, crew_id, is_online, last_seen_at
		FROM presence
		WHERE crew_id = ?
		ORDER BY user_id`, crewID)
	if err != nil {
		return nil, classify("list presence", err)
	}
	defer func() { _ = rows.Close() }()

	var out []presence.Record
	for rows.Next() {
		var r presence.Record
		var lastSeen int64
		if err := rows.Scan(&r.UserID, &r.CrewID, &r.IsOnline, &lastSeen); err != nil {
			return nil, classify("list presence", err)
		}
		r.LastSeenAt = fromMillis(lastSeen)
		out = append(out, r)
	}
	return out, classify("list presence", rows.Err())
}
