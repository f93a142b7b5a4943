package feed

import (
	"time"

	"github.com/dustin/go-humanize"
)

// TimeAgo renders t relative to now, e.g. "20 minutes ago".
func TimeAgo(t, now time.Time) string {
	if now.Sub(t) < time.Minute && now.Sub(t) > -time.Minute {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// DayLabel renders the calendar day of t relative to now.
func DayLabel(t, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t, now = t.In(loc), now.In(loc)
	switch {
	case sameDay(t, now, loc):
		return "Today"
	case sameDay(t, now.AddDate(0, 0, -1), loc):
		return "Yesterday"
	case t.Year() == now.Year():
		return t.Format("Mon, Jan 2")
	}
	return t.Format("Jan 2, 2006")
}

// ListLabel renders a compact timestamp for conversation list rows: the
// clock time today, "Yesterday", the weekday within the last week, then a date.
func ListLabel(t, now time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	t, now = t.In(loc), now.In(loc)
	switch {
	case sameDay(t, now, loc):
		return t.Format("15:04")
	case sameDay(t, now.AddDate(0, 0, -1), loc):
		return "Yesterday"
	case now.Sub(t) < 7*24*time.Hour && t.Before(now):
		return t.Format("Monday")
	case t.Year() == now.Year():
		return t.Format("Jan 2")
	}
	return t.Format("1/2/06")
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
