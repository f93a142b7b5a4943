package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/crewchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// InviteView shows a crew invite token and its QR code.
type InviteView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewInviteView creates a new invite view.
func NewInviteView(theme *ui.Theme) *InviteView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Invite ")
	tv.SetTitleColor(theme.TitleColor)
	return &InviteView{TextView: tv, theme: theme}
}

// Title implements ui.Component.
func (iv *InviteView) Title() string { return "Invite" }

// Hints implements ui.Component.
func (iv *InviteView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Show renders the invite for crewID.
func (iv *InviteView) Show(crewID, token string, expires time.Time) {
	iv.Clear()
	iv.SetTitle(fmt.Sprintf(" Invite to %s ", tview.Escape(crewID)))
	qr, err := ui.RenderQR(token, "  ")
	if err != nil {
		qr = "(QR generation failed: " + err.Error() + ")\n"
	}
	_, _ = fmt.Fprintf(iv, "\nShare this token, or scan it:\n\n%s\n[%s]%s[-]\n\n[::d]:join <token> in crewtui, or crewctl join <token>. Expires %s.",
		tview.Escape(qr), ui.Tag(iv.theme.CounterColor), tview.Escape(token), expires.Local().Format(time.RFC1123))
}

// ShowMessage displays a status message.
func (iv *InviteView) ShowMessage(msg string) {
	iv.Clear()
	_, _ = fmt.Fprintf(iv, "\n\n%s", tview.Escape(msg))
}
