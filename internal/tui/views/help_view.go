package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/crewchat/internal/tui/ui"
	"github.com/rivo/tview"
)

type helpSection struct {
	title string
	rows  [][2]string
}

var helpSections = []helpSection{
	{"Global Keys", [][2]string{
		{":", "Command mode"},
		{"/", "Filter conversations"},
		{"?", "Help"},
		{"Esc", "Cancel / Go back"},
		{"q", "Quit / Back"},
		{"Ctrl-C", "Quit immediately"},
	}},
	{"Conversations", [][2]string{
		{"Enter", "Open conversation"},
		{"j/Down", "Move down"},
		{"k/Up", "Move up"},
		{"0", "Clear filter"},
	}},
	{"Conversation", [][2]string{
		{"i", "Focus composer"},
		{"Enter", "Send (in composer)"},
		{"r", "Retry last failed message"},
		{"t", "Toggle day separators"},
		{"d", "Conversation details"},
	}},
	{"Commands", [][2]string{
		{":open <crew> [channel]", "Open or create a crew channel"},
		{":dm <user>", "Open a direct conversation"},
		{":join <token>", "Join a crew with an invite"},
		{":invite", "Invite to the current crew"},
		{":search <query>", "Search messages"},
		{":online / :offline", "Set presence"},
		{":day", "Toggle day separators"},
		{":help, :h", "Show this help"},
		{":quit, :q", "Quit application"},
	}},
}

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)
	tv.SetText(renderHelp(ui.Tag(theme.MenuKeyColor)))
	return &HelpView{TextView: tv}
}

// Title implements ui.Component.
func (hv *HelpView) Title() string { return "Help" }

// Hints implements ui.Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{{Key: "Esc", Description: "Back"}}
}

func renderHelp(keyColor string) string {
	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, r := range s.rows {
			fmt.Fprintf(&b, "  [%s]%-24s[-:-:-] %s\n", keyColor, tview.Escape(r[0]), r[1])
		}
	}
	return b.String()
}
