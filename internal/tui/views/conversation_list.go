package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationList is the table of conversations visible to the user.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	convs   []message.Conversation
	visible []message.Conversation
	filter  string
	now     func() time.Time
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{Table: table, theme: theme, now: time.Now}
}

// Title implements ui.Component.
func (cl *ConversationList) Title() string { return "Conversations" }

// Hints implements ui.Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "S", Description: "Search"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
	}
}

// Update refreshes the list with new data, keeping the selection on the
// same conversation when it is still listed.
func (cl *ConversationList) Update(convs []message.Conversation) {
	selected, _ := cl.Selected()
	cl.convs = convs
	cl.render()
	for i, c := range cl.visible {
		if c.ID == selected.ID {
			cl.Select(i+1, 0)
			return
		}
	}
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
	cl.Select(1, 0)
}

// Filter returns the active filter text.
func (cl *ConversationList) Filter() string {
	return cl.filter
}

func (cl *ConversationList) matches(c message.Conversation) bool {
	return cl.filter == "" ||
		containsFold(c.Title, cl.filter) ||
		containsFold(c.ID, cl.filter) ||
		containsFold(c.LastMessagePreview, cl.filter)
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" WHEN", 0},
		{" KIND", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	now := cl.now()
	cl.visible = cl.visible[:0]
	for _, c := range cl.convs {
		if !cl.matches(c) {
			continue
		}
		cl.visible = append(cl.visible, c)
		row := len(cl.visible)
		cl.SetCell(row, 0, tview.NewTableCell(" "+display(c.Title)).SetExpansion(1).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+display(message.Preview(c.LastMessagePreview, 60))).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(" "+listTime(c.LastMessageAt, now)).SetAlign(tview.AlignRight).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 3, tview.NewTableCell(" "+string(c.Kind)).SetAlign(tview.AlignRight).SetTextColor(cl.theme.FgColor))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(cl.visible), len(cl.convs), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// Selected returns the highlighted conversation.
func (cl *ConversationList) Selected() (message.Conversation, bool) {
	row, _ := cl.GetSelection()
	idx := row - 1 // account for header
	if idx < 0 || idx >= len(cl.visible) {
		return message.Conversation{}, false
	}
	return cl.visible[idx], true
}
