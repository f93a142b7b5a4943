package views

import (
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/crewchat/internal/feed"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/tui/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func msg(id, sender string, at time.Time, content string, st message.Status) message.Message {
	return message.Message{
		ID:                id,
		IdempotencyKey:    id,
		ConversationID:    "crew:local-46:general",
		SenderID:          sender,
		SenderDisplayName: strings.ToUpper(sender[:1]) + sender[1:],
		Content:           content,
		CreatedAt:         at,
		ClientSentAt:      at,
		Status:            st,
	}
}

func TestRenderFeedGroupsAndMarks(t *testing.T) {
	msgs := []message.Message{
		msg("1", "amy", t0, "truck 9 is out", message.StatusSent),
		msg("2", "amy", t0.Add(time.Minute), "back by noon", message.StatusSent),
		msg("3", "bo", t0.Add(2*time.Minute), "copy", message.StatusPending),
		msg("4", "bo", t0.Add(3*time.Minute), "need [hose] 2", message.StatusFailed),
	}
	items := feed.Build(msgs, t0.Add(time.Hour), feed.DefaultOptions())
	out := renderFeed(items, ui.DefaultTheme(), "bo")

	assert.Equal(t, 1, strings.Count(out, "Amy"), "one header for amy's group")
	assert.Contains(t, out, "Bo (you)")
	assert.Contains(t, out, "copy …")
	assert.Contains(t, out, "✗ not sent")
	assert.Contains(t, out, "──── ")
	assert.Contains(t, out, "[hose[]", "content brackets are escaped")
}

func TestRenderFeedEmpty(t *testing.T) {
	assert.Empty(t, renderFeed(nil, ui.DefaultTheme(), "amy"))
}

func TestSanitizeForTerminal(t *testing.T) {
	assert.Equal(t, "👍 ok", sanitizeForTerminal("👍🏽 ok"))
	assert.Equal(t, "plain", sanitizeForTerminal("plain"))
}

func TestConversationListFilterAndSelection(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.now = func() time.Time { return t0 }
	convs := []message.Conversation{
		{ID: "global", Kind: message.KindGlobal, Title: "Global"},
		{ID: "crew:local-46:general", Kind: message.KindCrew, CrewID: "local-46", Title: "local-46 #general", LastMessagePreview: "truck 9"},
		{ID: "dm:amy:bo", Kind: message.KindDirect, Title: "amy"},
	}
	cl.Update(convs)
	cl.Select(2, 0)
	sel, ok := cl.Selected()
	require.True(t, ok)
	assert.Equal(t, "crew:local-46:general", sel.ID)

	cl.SetFilter("TRUCK")
	assert.Equal(t, "TRUCK", cl.Filter())
	sel, ok = cl.Selected()
	require.True(t, ok)
	assert.Equal(t, "crew:local-46:general", sel.ID)
	assert.Equal(t, 2, cl.GetRowCount(), "header plus one match")

	cl.SetFilter("")
	cl.Select(3, 0)
	cl.Update(convs[1:])
	sel, ok = cl.Selected()
	require.True(t, ok)
	assert.Equal(t, "dm:amy:bo", sel.ID, "selection follows the conversation")

	cl.Update(nil)
	_, ok = cl.Selected()
	assert.False(t, ok)
}

func TestRenderHelpListsCommands(t *testing.T) {
	out := renderHelp("blue")
	for _, want := range []string{":open <crew> [channel[]", ":dm <user>", ":invite", ":day"} {
		assert.Contains(t, out, want)
	}
}
