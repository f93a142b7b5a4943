package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"
)

// Logo displays a compact ASCII art logo.
type Logo struct {
	*tview.TextView
}

// NewLogo creates a new logo component.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	title, fg := Tag(theme.TitleColor), Tag(theme.FgColor)
	_, _ = fmt.Fprintf(tv,
		"[%s::b]┌─┐┬─┐┌─┐┬ ┬[-:-:-]\n"+
			"[%s::b]│  ├┬┘├┤ │││[-:-:-]\n"+
			"[%s::b]└─┘┴└─└─┘└┴┘[-:-:-]\n"+
			"[%s]crew chat[-:-:-]",
		title, title, title, fg)
	return &Logo{TextView: tv}
}

// SessionData holds daemon information for display.
type SessionData struct {
	Session       string
	User          string
	Status        string
	Reason        string
	Conversations int
	Messages      int
	Uptime        time.Duration
}

// SessionInfo displays session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)
	return &SessionInfo{TextView: tv, theme: theme}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}
	fg, val := Tag(si.theme.FgColor), Tag(si.theme.CounterColor)
	status := data.Status
	if data.Reason != "" {
		status += " (" + data.Reason + ")"
	}
	rows := [][2]string{
		{"Session:", data.Session},
		{"User:", orDash(data.User)},
		{"Status:", status},
		{"Convs:", humanize.Comma(int64(data.Conversations))},
		{"Msgs:", humanize.Comma(int64(data.Messages))},
		{"Uptime:", data.Uptime.Round(time.Minute).String()},
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("[%s::b]%-8s[-:-:-] [%s]%s[-]", fg, r[0], val, tview.Escape(r[1])))
	}
	_, _ = fmt.Fprint(si, strings.Join(lines, "\n"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Menu displays keyboard shortcut hints in a vertical list.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)
	return &Menu{TextView: tv, theme: theme}
}

// Update renders menu hints, one per line.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	kc := Tag(m.theme.MenuKeyColor)
	for _, h := range hints {
		_, _ = fmt.Fprintf(m, "[%s::b]<%s>[-:-:-] %s\n", kc, h.Key, h.Description)
	}
}

// Crumbs is a breadcrumb bar showing the page stack.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme}
}

// Update renders the trail; the last entry is highlighted.
func (c *Crumbs) Update(stack []string) {
	c.Clear()
	parts := make([]string, 0, len(stack))
	for i, name := range stack {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(stack)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] %s [-:-:-]", Tag(fg), Tag(bg), attr, tview.Escape(name)))
	}
	_, _ = fmt.Fprint(c, strings.Join(parts, " "))
}
