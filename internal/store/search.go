package store

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/matheus3301/crewchat/internal/message"
)

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message message.Message
	Snippet string
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchMessages performs a case-insensitive substring search on message
// content, limited to conversations userID can access. An empty
// conversationID searches all of them.
func (db *DB) SearchMessages(ctx context.Context, userID, query, conversationID string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, message.Validation("search messages", "search query is empty")
	}
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT ` + prefixed("m.", messageColumns) + `
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.content LIKE '%' || ? || '%' ESCAPE '\'
		AND (c.kind = 'global'
			OR (c.kind = 'crew' AND c.crew_id IN (SELECT crew_id FROM crew_members WHERE user_id = ?))
			OR (c.kind = 'direct' AND (c.member_a = ? OR c.member_b = ?)))`

	args := []any{likeEscaper.Replace(query), userID, userID, userID}
	if conversationID != "" {
		q += " AND m.conversation_id = ?"
		args = append(args, conversationID)
	}
	q += " ORDER BY m.created_at DESC, m.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify("search messages", err)
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, classify("search messages", err)
		}
		results = append(results, SearchResult{Message: *m, Snippet: snippet(m.Content, query, 32)})
	}
	return results, classify("search messages", rows.Err())
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// snippet marks the first match of query in content with << >> and trims
// the surrounding text to roughly width runes on each side.
func snippet(content, query string, width int) string {
	lower := strings.ToLower(content)
	idx := strings.Index(lower, strings.ToLower(query))
	if idx < 0 || len(lower) != len(content) {
		return message.Preview(content, 2*width)
	}
	end := idx + len(query)

	start := idx
	for n := 0; start > 0 && n < width; n++ {
		_, size := utf8.DecodeLastRuneInString(content[:start])
		start -= size
	}
	stop := end
	for n := 0; stop < len(content) && n < width; n++ {
		_, size := utf8.DecodeRuneInString(content[stop:])
		stop += size
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(content[start:idx])
	b.WriteString("<<")
	b.WriteString(content[idx:end])
	b.WriteString(">>")
	b.WriteString(content[end:stop])
	if stop < len(content) {
		b.WriteString("...")
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
