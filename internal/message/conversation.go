package message

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ConversationKind identifies the shape of a conversation.
type ConversationKind string

const (
	KindCrew   ConversationKind = "crew"
	KindDirect ConversationKind = "direct"
	KindGlobal ConversationKind = "global"
)

// GlobalConversationID is the id of the feed shared by every member.
const GlobalConversationID = "global"

// DefaultChannel is created for every crew on first open.
const DefaultChannel = "general"

// Conversation is a crew channel, direct thread or the global feed.
type Conversation struct {
	ID                 string           `json:"id"`
	Kind               ConversationKind `json:"kind"`
	CrewID             string           `json:"crew_id,omitempty"`
	Title              string           `json:"title"`
	CreatedAt          time.Time        `json:"created_at"`
	LastMessageAt      time.Time        `json:"last_message_at,omitzero"`
	LastMessagePreview string           `json:"last_message_preview,omitempty"`
}

// Member is a user's membership in a crew.
type Member struct {
	CrewID      string    `json:"crew_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

var slugRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateSlug checks crew and channel identifiers.
func ValidateSlug(kind, s string) error {
	if !slugRegexp.MatchString(s) {
		return Validation("validate", fmt.Sprintf("invalid %s %q: must match %s", kind, s, slugRegexp.String()))
	}
	return nil
}

// CrewChannelID returns the conversation id for a crew channel.
func CrewChannelID(crewID, channel string) string {
	if channel == "" {
		channel = DefaultChannel
	}
	return "crew:" + crewID + ":" + channel
}

// DirectID returns the canonical id for a direct thread between two users.
// The order of the arguments does not matter.
func DirectID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "dm:" + a + ":" + b
}

// ParsedID is a decoded conversation id.
type ParsedID struct {
	Kind         ConversationKind
	CrewID       string
	Channel      string
	Participants [2]string
}

// ParseConversationID decodes an id produced by CrewChannelID, DirectID or
// GlobalConversationID.
func ParseConversationID(id string) (ParsedID, error) {
	if id == GlobalConversationID {
		return ParsedID{Kind: KindGlobal}, nil
	}
	parts := strings.Split(id, ":")
	if len(parts) == 3 && parts[1] != "" && parts[2] != "" {
		switch parts[0] {
		case "crew":
			return ParsedID{Kind: KindCrew, CrewID: parts[1], Channel: parts[2]}, nil
		case "dm":
			return ParsedID{Kind: KindDirect, Participants: [2]string{parts[1], parts[2]}}, nil
		}
	}
	return ParsedID{}, Validation("parse conversation id", fmt.Sprintf("malformed conversation id %q", id))
}
