package message

import (
	"slices"
	"strings"
)

// Sort orders msgs in place: confirmed messages by CreatedAt (ties broken by
// ID), followed by unconfirmed messages by ClientSentAt.
func Sort(msgs []Message) {
	slices.SortStableFunc(msgs, Compare)
}

// Compare is the display ordering used by Sort.
func Compare(a, b Message) int {
	ac, bc := a.Confirmed(), b.Confirmed()
	switch {
	case ac && !bc:
		return -1
	case !ac && bc:
		return 1
	case ac && bc:
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	}
	if c := a.ClientSentAt.Compare(b.ClientSentAt); c != 0 {
		return c
	}
	return strings.Compare(a.IdempotencyKey, b.IdempotencyKey)
}

// Merge combines confirmed messages from the store with the local pending
// cache. Pending entries whose idempotency key already appears among the
// confirmed messages are dropped, so a message is never shown twice.
func Merge(confirmed, pending []Message) []Message {
	keys := make(map[string]struct{}, len(confirmed))
	out := make([]Message, 0, len(confirmed)+len(pending))
	for _, m := range confirmed {
		if m.IdempotencyKey != "" {
			keys[m.IdempotencyKey] = struct{}{}
		}
		out = append(out, m)
	}
	for _, m := range pending {
		if _, ok := keys[m.IdempotencyKey]; ok {
			continue
		}
		out = append(out, m)
	}
	Sort(out)
	return out
}
