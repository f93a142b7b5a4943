package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/crewchat/internal/composer"
	"github.com/matheus3301/crewchat/internal/feed"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/presence"
	"github.com/matheus3301/crewchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays the feed of one conversation, the crew roster and
// a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	members  *tview.TextView
	composer *tview.InputField
	conv     message.Conversation
	onSend   func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitleColor(theme.TitleColor)

	members := tview.NewTextView().
		SetDynamicColors(true)
	members.SetBorder(true)
	members.SetBorderColor(theme.BorderColor)
	members.SetBackgroundColor(theme.BgColor)
	members.SetTitle(" Crew ")
	members.SetTitleColor(theme.TitleColor)

	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	input.SetBorder(true)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)
	input.SetTitleColor(theme.TitleColor)

	body := tview.NewFlex().
		AddItem(messages, 0, 1, true).
		AddItem(members, 24, 0, false)

	mt := &MessageThread{
		Flex: tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(body, 0, 1, true).
			AddItem(input, 3, 0, false),
		theme:    theme,
		messages: messages,
		members:  members,
		composer: input,
	}
	mt.SetComposerState(composer.Composing, nil)

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			if text := input.GetText(); strings.TrimSpace(text) != "" {
				mt.onSend(text)
			}
		}
	})
	return mt
}

// Title implements ui.Component.
func (mt *MessageThread) Title() string {
	if mt.conv.Title != "" {
		return mt.conv.Title
	}
	return "Messages"
}

// Hints implements ui.Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "r", Description: "Retry failed"},
		{Key: "d", Description: "Details"},
		{Key: "t", Description: "Day separators"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// SetConversation resets the view for conv.
func (mt *MessageThread) SetConversation(conv message.Conversation) {
	mt.conv = conv
	mt.messages.Clear()
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(conv.Title)))
	mt.composer.SetText("")
	mt.members.Clear()
	mt.SetComposerState(composer.Composing, nil)
}

// Conversation returns the displayed conversation.
func (mt *MessageThread) Conversation() message.Conversation {
	return mt.conv
}

// SetOnSend sets the callback when the composer is submitted.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetComposerText replaces the composer input.
func (mt *MessageThread) SetComposerText(text string) {
	if mt.composer.GetText() != text {
		mt.composer.SetText(text)
	}
}

// SetComposerState reflects the send cycle in the composer title.
func (mt *MessageThread) SetComposerState(state composer.State, err error) {
	switch state {
	case composer.Submitting:
		mt.composer.SetTitle(" Sending... ")
		mt.composer.SetBorderColor(mt.theme.PendingColor)
	case composer.Failed:
		title := " Not sent: r to retry, edit to discard "
		if err != nil {
			title = fmt.Sprintf(" Not sent (%s): r to retry, edit to discard ", tview.Escape(err.Error()))
		}
		mt.composer.SetTitle(title)
		mt.composer.SetBorderColor(mt.theme.FailedColor)
	default:
		mt.composer.SetTitle(" Compose (i to focus) ")
		mt.composer.SetBorderColor(mt.theme.BorderColor)
	}
}

// Update renders the feed. The view follows new messages only when it was
// already scrolled to the bottom.
func (mt *MessageThread) Update(items []feed.Item, me string) {
	row, _ := mt.messages.GetScrollOffset()
	_, _, _, height := mt.messages.GetInnerRect()
	atEnd := row+height >= mt.messages.GetOriginalLineCount()

	mt.messages.SetText(renderFeed(items, mt.theme, me))
	if atEnd {
		mt.messages.ScrollToEnd()
	}
}

// SetMembers renders the crew roster. Direct and global conversations hide
// it.
func (mt *MessageThread) SetMembers(records []presence.Record) {
	mt.members.Clear()
	if mt.conv.Kind != message.KindCrew {
		return
	}
	online := 0
	for _, r := range records {
		color, dot := mt.theme.OfflineColor, "○"
		if r.IsOnline && !r.Stale {
			color, dot = mt.theme.OnlineColor, "●"
			online++
		}
		_, _ = fmt.Fprintf(mt.members, " [%s]%s[-] %s\n", ui.Tag(color), dot, display(r.UserID))
	}
	mt.members.SetTitle(fmt.Sprintf(" Crew %d/%d ", online, len(records)))
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

// renderFeed lays out feed items as dynamic-color text. Separators are
// centered rules, each author group gets a header line and pending or failed
// messages carry a status mark.
func renderFeed(items []feed.Item, theme *ui.Theme, me string) string {
	var b strings.Builder
	for _, it := range items {
		if it.Kind == feed.ItemSeparator {
			fmt.Fprintf(&b, "\n[%s]──── %s ────[-]\n", ui.Tag(theme.SeparatorColor), display(it.Label))
			continue
		}
		m := it.Message
		if it.StartsGroup {
			name := m.SenderDisplayName
			if name == "" {
				name = m.SenderID
			}
			if m.SenderID == me {
				name += " (you)"
			}
			fmt.Fprintf(&b, "\n[%s::b]%s[-:-:-] [%s]%s[-]\n",
				ui.Tag(theme.AuthorColor), display(name),
				ui.Tag(theme.TimeColor), m.EffectiveTime().Local().Format("15:04"))
		}
		b.WriteString("  ")
		if m.ReplyToMessageID != "" {
			fmt.Fprintf(&b, "[%s]↪[-] ", ui.Tag(theme.TimeColor))
		}
		switch m.Status {
		case message.StatusPending:
			fmt.Fprintf(&b, "[%s]%s …[-]", ui.Tag(theme.PendingColor), display(m.Content))
		case message.StatusFailed:
			fmt.Fprintf(&b, "%s [%s]✗ not sent[-]", display(m.Content), ui.Tag(theme.FailedColor))
		default:
			b.WriteString(display(m.Content))
		}
		for _, a := range m.Attachments {
			fmt.Fprintf(&b, "\n    [%s]📎 %s[-]", ui.Tag(theme.TimeColor), display(a.Name))
		}
		b.WriteString("\n")
	}
	return strings.TrimLeft(b.String(), "\n")
}
