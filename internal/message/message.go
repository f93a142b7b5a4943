package message

import (
	"strings"
	"time"
)

// Message is a single chat message as seen by clients.
type Message struct {
	ID                string       `json:"id"`
	ConversationID    string       `json:"conversation_id"`
	IdempotencyKey    string       `json:"idempotency_key"`
	SenderID          string       `json:"sender_id"`
	SenderDisplayName string       `json:"sender_display_name"`
	Content           string       `json:"content"`
	Attachments       []Attachment `json:"attachments,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	ClientSentAt      time.Time    `json:"client_sent_at"`
	Status            Status       `json:"status"`
	ReplyToMessageID  string       `json:"reply_to_message_id,omitempty"`
	Attempt           int          `json:"attempt"`
	LastError         string       `json:"last_error,omitempty"`
}

// Attachment is metadata for a file shared alongside a message.
type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// EffectiveTime returns the timestamp used for display: the server time once
// the message is sent, the client time while it is pending or failed.
func (m Message) EffectiveTime() time.Time {
	if m.Status == StatusSent && !m.CreatedAt.IsZero() {
		return m.CreatedAt
	}
	return m.ClientSentAt
}

// Confirmed reports whether the message has been persisted by the store.
func (m Message) Confirmed() bool {
	return m.Status == StatusSent
}

// ValidateContent rejects messages with nothing to send.
func ValidateContent(content string, attachments []Attachment) error {
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return Validation("validate", "message content is empty")
	}
	return nil
}

// Preview returns a single-line excerpt of content suitable for list views.
func Preview(content string, max int) string {
	s := strings.Join(strings.Fields(content), " ")
	r := []rune(s)
	if max > 0 && len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}
