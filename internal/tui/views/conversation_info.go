package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/crewchat/internal/feed"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/presence"
	"github.com/matheus3301/crewchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationInfo displays details of a conversation and, for crew
// channels, who is online.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Details ")
	tv.SetTitleColor(theme.TitleColor)
	return &ConversationInfo{TextView: tv, theme: theme}
}

// Title implements ui.Component.
func (ci *ConversationInfo) Title() string { return "Details" }

// Hints implements ui.Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// Update renders conversation details.
func (ci *ConversationInfo) Update(conv message.Conversation, members []presence.Record) {
	ci.Clear()
	fg, val := ui.Tag(ci.theme.FgColor), ui.Tag(ci.theme.CounterColor)
	now := time.Now()

	last := "-"
	if !conv.LastMessageAt.IsZero() {
		last = feed.TimeAgo(conv.LastMessageAt, now)
	}
	rows := [][2]string{
		{"Title", conv.Title},
		{"ID", conv.ID},
		{"Kind", string(conv.Kind)},
		{"Crew", orDash(conv.CrewID)},
		{"Created", conv.CreatedAt.Local().Format(time.DateTime)},
		{"Last Active", last},
		{"Last Message", message.Preview(conv.LastMessagePreview, 60)},
	}
	_, _ = fmt.Fprintln(ci)
	for _, r := range rows {
		_, _ = fmt.Fprintf(ci, " [%s::b]%-13s[-:-:-] [%s]%s[-]\n", fg, r[0]+":", val, display(r[1]))
	}

	if conv.Kind == message.KindCrew && len(members) > 0 {
		_, _ = fmt.Fprintf(ci, "\n [%s::b]Presence[-:-:-]\n", fg)
		for _, r := range members {
			state, color := "offline", ci.theme.OfflineColor
			if r.IsOnline && !r.Stale {
				state, color = "online", ci.theme.OnlineColor
			}
			_, _ = fmt.Fprintf(ci, "  [%s]%-8s[-] %-20s seen %s\n",
				ui.Tag(color), state, display(r.UserID), feed.TimeAgo(r.LastSeenAt, now))
		}
	}
	ci.SetTitle(fmt.Sprintf(" %s ", tview.Escape(conv.Title)))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
