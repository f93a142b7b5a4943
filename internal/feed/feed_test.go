package feed

import (
	"testing"
	"time"

	"github.com/matheus3301/crewchat/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func sent(id, sender string, t time.Time) message.Message {
	return message.Message{
		ID:                id,
		IdempotencyKey:    "key-" + id,
		SenderID:          sender,
		SenderDisplayName: sender,
		Content:           id,
		CreatedAt:         t,
		ClientSentAt:      t,
		Status:            message.StatusSent,
	}
}

func utcOptions() Options {
	o := DefaultOptions()
	o.Location = time.UTC
	return o
}

// layout renders items compactly: "|" for a separator, "+id" for a message
// starting a group, "id" for a continuation.
func layout(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch {
		case it.Kind == ItemSeparator:
			out = append(out, "|")
		case it.StartsGroup:
			out = append(out, "+"+it.Message.ID)
		default:
			out = append(out, it.Message.ID)
		}
	}
	return out
}

func TestBuildEmpty(t *testing.T) {
	assert.Empty(t, Build(nil, at(12, 0), utcOptions()))
}

func TestBuildThreeMessagesSameSender(t *testing.T) {
	msgs := []message.Message{
		sent("a", "amy", at(10, 0)),
		sent("b", "amy", at(10, 2)),
		sent("c", "amy", at(10, 10)),
	}
	items := Build(msgs, at(10, 30), utcOptions())

	assert.Equal(t, []string{"|", "+a", "b", "+c"}, layout(items))

	groups := Groups(items)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Messages, 2)
	assert.Equal(t, "c", groups[1].Messages[0].ID)
}

func TestBuildGrouping(t *testing.T) {
	tests := []struct {
		name string
		msgs []message.Message
		want []string
	}{
		{
			name: "single message starts a group after a separator",
			msgs: []message.Message{sent("a", "amy", at(9, 0))},
			want: []string{"|", "+a"},
		},
		{
			name: "sender change starts a group",
			msgs: []message.Message{
				sent("a", "amy", at(9, 0)),
				sent("b", "bo", at(9, 0)),
				sent("c", "amy", at(9, 1)),
			},
			want: []string{"|", "+a", "+b", "+c"},
		},
		{
			name: "gap just under five minutes continues",
			msgs: []message.Message{
				sent("a", "amy", at(9, 0)),
				sent("b", "amy", at(9, 0).Add(5*time.Minute-time.Second)),
			},
			want: []string{"|", "+a", "b"},
		},
		{
			name: "gap of exactly five minutes starts a group",
			msgs: []message.Message{
				sent("a", "amy", at(9, 0)),
				sent("b", "amy", at(9, 5)),
			},
			want: []string{"|", "+a", "+b"},
		},
		{
			name: "gap of exactly fifteen minutes adds a separator before the group",
			msgs: []message.Message{
				sent("a", "amy", at(9, 0)),
				sent("b", "amy", at(9, 15)),
			},
			want: []string{"|", "+a", "|", "+b"},
		},
		{
			name: "gap under fifteen minutes has no separator",
			msgs: []message.Message{
				sent("a", "amy", at(9, 0)),
				sent("b", "bo", at(9, 14)),
			},
			want: []string{"|", "+a", "+b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, layout(Build(tt.msgs, at(12, 0), utcOptions())))
		})
	}
}

func TestBuildSortsInput(t *testing.T) {
	msgs := []message.Message{
		sent("b", "amy", at(9, 1)),
		sent("a", "amy", at(9, 0)),
	}
	assert.Equal(t, []string{"|", "+a", "b"}, layout(Build(msgs, at(12, 0), utcOptions())))
	assert.Equal(t, "b", msgs[0].ID, "input must not be reordered")
}

func TestBuildPendingAtTail(t *testing.T) {
	pending := message.Message{
		ID:             "k1",
		IdempotencyKey: "k1",
		SenderID:       "amy",
		Content:        "Copy that",
		ClientSentAt:   at(9, 2),
		Status:         message.StatusPending,
	}
	msgs := []message.Message{pending, sent("a", "amy", at(9, 0))}

	items := Build(msgs, at(9, 3), utcOptions())
	require.Equal(t, []string{"|", "+a", "k1"}, layout(items))
	last := items[len(items)-1]
	assert.Equal(t, message.StatusPending, last.Message.Status)
	assert.Equal(t, at(9, 2), last.At)
}

func TestBuildCustomThresholds(t *testing.T) {
	opts := utcOptions()
	opts.GroupGap = time.Minute
	opts.SeparatorGap = 2 * time.Minute
	msgs := []message.Message{
		sent("a", "amy", at(9, 0)),
		sent("b", "amy", at(9, 1)),
		sent("c", "amy", at(9, 3)),
	}
	assert.Equal(t, []string{"|", "+a", "+b", "|", "+c"}, layout(Build(msgs, at(12, 0), opts)))
}

func TestSeparatorLabels(t *testing.T) {
	msgs := []message.Message{
		sent("a", "amy", at(10, 0)),
		sent("b", "amy", at(11, 0)),
	}
	items := Build(msgs, at(11, 20), utcOptions())
	require.Len(t, items, 4)
	assert.Equal(t, "1 hour ago", items[0].Label)
	assert.Equal(t, "20 minutes ago", items[2].Label)
}

func TestCalendarDayMode(t *testing.T) {
	opts := utcOptions()
	opts.Mode = SeparatorCalendarDay
	msgs := []message.Message{
		sent("a", "amy", at(-24+23, 0)), // yesterday 23:00
		sent("b", "amy", at(8, 0)),
		sent("c", "amy", at(9, 0)),
	}
	items := Build(msgs, at(12, 0), opts)
	assert.Equal(t, []string{"|", "+a", "|", "+b", "+c"}, layout(items))
	assert.Equal(t, "Yesterday", items[0].Label)
	assert.Equal(t, "Today", items[2].Label)
}

func TestDayLabel(t *testing.T) {
	now := at(12, 0)
	assert.Equal(t, "Today", DayLabel(at(1, 0), now, time.UTC))
	assert.Equal(t, "Yesterday", DayLabel(at(-1, 0), now, time.UTC))
	assert.Equal(t, "Sun, Mar 1", DayLabel(day.AddDate(0, 0, -3), now, time.UTC))
	assert.Equal(t, "Dec 31, 2025", DayLabel(time.Date(2025, 12, 31, 9, 0, 0, 0, time.UTC), now, time.UTC))
}

func TestListLabel(t *testing.T) {
	now := at(12, 0)
	assert.Equal(t, "08:15", ListLabel(at(8, 15), now, time.UTC))
	assert.Equal(t, "Yesterday", ListLabel(at(-2, 0), now, time.UTC))
	assert.Equal(t, "Sunday", ListLabel(day.AddDate(0, 0, -3), now, time.UTC))
	assert.Equal(t, "Feb 1", ListLabel(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC), now, time.UTC))
	assert.Equal(t, "", ListLabel(time.Time{}, now, time.UTC))
}

func TestTimeAgo(t *testing.T) {
	now := at(12, 0)
	assert.Equal(t, "just now", TimeAgo(now.Add(-10*time.Second), now))
	assert.Equal(t, "3 hours ago", TimeAgo(at(9, 0), now))
}
