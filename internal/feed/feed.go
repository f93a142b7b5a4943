// Package feed turns an ordered message list into display items: message
// rows grouped by author and time separators between bursts of activity.
package feed

import (
	"slices"
	"time"

	"github.com/matheus3301/crewchat/internal/message"
)

// Default thresholds.
const (
	DefaultGroupGap     = 5 * time.Minute
	DefaultSeparatorGap = 15 * time.Minute
)

// SeparatorMode selects when separators are inserted.
type SeparatorMode int

const (
	// SeparatorElapsed inserts a separator after a quiet period of
	// SeparatorGap, labelled relative to now ("20 minutes ago").
	SeparatorElapsed SeparatorMode = iota
	// SeparatorCalendarDay inserts a separator whenever the calendar day
	// changes, labelled "Today", "Yesterday" or a date.
	SeparatorCalendarDay
)

// Options tunes Build.
type Options struct {
	GroupGap     time.Duration
	SeparatorGap time.Duration
	Mode         SeparatorMode
	Location     *time.Location
}

// DefaultOptions returns the standard thread layout.
func DefaultOptions() Options {
	return Options{
		GroupGap:     DefaultGroupGap,
		SeparatorGap: DefaultSeparatorGap,
		Mode:         SeparatorElapsed,
		Location:     time.Local,
	}
}

func (o Options) withDefaults() Options {
	if o.GroupGap <= 0 {
		o.GroupGap = DefaultGroupGap
	}
	if o.SeparatorGap <= 0 {
		o.SeparatorGap = DefaultSeparatorGap
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// ItemKind distinguishes feed rows.
type ItemKind int

const (
	ItemSeparator ItemKind = iota
	ItemMessage
)

func (k ItemKind) String() string {
	if k == ItemSeparator {
		return "separator"
	}
	return "message"
}

// Item is one row of the feed.
type Item struct {
	Kind ItemKind  `json:"-"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`

	// Separator rows.
	Label string `json:"label,omitempty"`

	// Message rows. StartsGroup marks the first message of an author group,
	// which is the row that shows the avatar and display name.
	Message     *message.Message `json:"message,omitempty"`
	StartsGroup bool             `json:"starts_group,omitempty"`
}

// Build lays out msgs. It is pure: the result depends only on its arguments.
//
// A message starts a new group when it is the first message, when its author
// differs from the previous message, or when at least GroupGap elapsed since
// the previous message. A separator precedes a message when it is the first
// message or when at least SeparatorGap elapsed since the previous one (in
// SeparatorCalendarDay mode: when the day changes). If both apply, the
// separator comes first.
func Build(msgs []message.Message, now time.Time, opts Options) []Item {
	opts = opts.withDefaults()
	if len(msgs) == 0 {
		return nil
	}

	ordered := slices.Clone(msgs)
	message.Sort(ordered)

	items := make([]Item, 0, len(ordered)+1)
	var prev *message.Message
	for i := range ordered {
		m := &ordered[i]
		at := m.EffectiveTime()

		var gap time.Duration
		if prev != nil {
			gap = max(at.Sub(prev.EffectiveTime()), 0)
		}

		if sep, ok := separator(prev, m, gap, now, opts); ok {
			items = append(items, sep)
		}

		starts := prev == nil || prev.SenderID != m.SenderID || gap >= opts.GroupGap
		items = append(items, Item{
			Kind:        ItemMessage,
			Type:        ItemMessage.String(),
			At:          at,
			Message:     m,
			StartsGroup: starts,
		})
		prev = m
	}
	return items
}

func separator(prev, cur *message.Message, gap time.Duration, now time.Time, opts Options) (Item, bool) {
	at := cur.EffectiveTime()
	var label string
	switch opts.Mode {
	case SeparatorCalendarDay:
		if prev != nil && sameDay(prev.EffectiveTime(), at, opts.Location) {
			return Item{}, false
		}
		label = DayLabel(at, now, opts.Location)
	default:
		if prev != nil && gap < opts.SeparatorGap {
			return Item{}, false
		}
		label = TimeAgo(at, now)
	}
	return Item{Kind: ItemSeparator, Type: ItemSeparator.String(), At: at, Label: label}, true
}

// Group is a run of consecutive messages shown under one avatar.
type Group struct {
	SenderID          string
	SenderDisplayName string
	Messages          []message.Message
}

// Groups collects the message rows of items into author groups.
func Groups(items []Item) []Group {
	var out []Group
	for _, it := range items {
		if it.Kind != ItemMessage {
			continue
		}
		if it.StartsGroup || len(out) == 0 {
			out = append(out, Group{
				SenderID:          it.Message.SenderID,
				SenderDisplayName: it.Message.SenderDisplayName,
			})
		}
		g := &out[len(out)-1]
		g.Messages = append(g.Messages, *it.Message)
	}
	return out
}
