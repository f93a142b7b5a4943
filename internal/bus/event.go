package bus

import "time"

// Event kinds published by the daemon.
const (
	KindStatusChanged   = "session.status_changed"
	KindMessageChanged  = "message.changed"
	KindPresenceChanged = "presence.changed"
)

// MessageKind is the kind published for changes to one conversation. It
// matches the KindMessageChanged namespace.
func MessageKind(conversationID string) string {
	return KindMessageChanged + "." + conversationID
}

// PresenceKind is the kind published for presence changes in one crew.
func PresenceKind(crewID string) string {
	return KindPresenceChanged + "." + crewID
}

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// MessageChange is the payload of KindMessageChanged. It is published
// whenever the visible state of a conversation changes: a pending message is
// added, a delivery is acknowledged or fails, or a retry starts.
type MessageChange struct {
	ConversationID string
	IdempotencyKey string
	Status         string
}

// PresenceChange is the payload of KindPresenceChanged.
type PresenceChange struct {
	CrewID   string
	UserID   string
	IsOnline bool
}
