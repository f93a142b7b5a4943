package views

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/matheus3301/crewchat/internal/feed"
	"github.com/rivo/tview"
)

// display prepares user content for a dynamic-color text view.
func display(s string) string {
	return tview.Escape(sanitizeForTerminal(s))
}

// sanitizeForTerminal drops codepoints that tcell renders with the wrong
// width: skin tone modifiers, zero width joiners and variation selectors.
// A modified emoji then renders as its two-cell base character.
func sanitizeForTerminal(s string) string {
	if !strings.ContainsFunc(s, isProblematicRune) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r != utf8.RuneError && !isProblematicRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isProblematicRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF, // skin tone modifiers
		r == 0x200D,                    // zero width joiner
		r >= 0xFE00 && r <= 0xFE0F,     // variation selectors
		r >= 0xE0100 && r <= 0xE01EF:   // variation selectors supplement
		return true
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// listTime formats t for table columns; zero renders empty.
func listTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	return feed.ListLabel(t, now, time.Local)
}
