package rpc

import (
	"errors"
	"time"

	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/presence"
)

// Failure is a delivery error carried inside a successful response, so a
// failed message and its cause travel together.
type Failure struct {
	Kind    message.ErrorKind `json:"kind"`
	Message string            `json:"message"`
}

// NewFailure converts err into a Failure. Returns nil for a nil error.
func NewFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	return &Failure{Kind: message.KindOf(err), Message: err.Error()}
}

// Err converts the failure back into a classified error.
func (f *Failure) Err() error {
	if f == nil {
		return nil
	}
	return message.E(f.Kind, "", errors.New(f.Message))
}

type GetStatusRequest struct{}

type GetStatusResponse struct {
	Session       string `json:"session"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	UptimeMs      int64  `json:"uptime_ms"`
	User          string `json:"user,omitempty"`
	Conversations int    `json:"conversations"`
	Messages      int    `json:"messages"`
	Members       int    `json:"members"`
	GatewayAddr   string `json:"gateway_addr,omitempty"`
}

// SendMessageRequest sends a new message. With Wait unset the response
// carries the pending message as soon as it is accepted.
type SendMessageRequest struct {
	ConversationID   string               `json:"conversation_id"`
	Content          string               `json:"content"`
	ReplyToMessageID string               `json:"reply_to_message_id,omitempty"`
	Attachments      []message.Attachment `json:"attachments,omitempty"`
	Wait             bool                 `json:"wait"`
}

type SendMessageResponse struct {
	Message message.Message `json:"message"`
	Failure *Failure        `json:"failure,omitempty"`
}

type RetryMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Wait           bool   `json:"wait"`
}

type ListMessagesRequest struct {
	ConversationID string `json:"conversation_id"`
	Before         string `json:"before,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

type ListMessagesResponse struct {
	Messages []message.Message `json:"messages"`
	HasMore  bool              `json:"has_more"`
}

type WatchConversationRequest struct {
	ConversationID string `json:"conversation_id"`
}

// ConversationSnapshot is one frame of WatchConversation. A frame with a
// Failure is the last one of its stream.
type ConversationSnapshot struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []message.Message `json:"messages"`
	At             time.Time         `json:"at"`
	Failure        *Failure          `json:"failure,omitempty"`
}

type SearchMessagesRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

type SearchResult struct {
	Message message.Message `json:"message"`
	Snippet string          `json:"snippet"`
}

type SearchMessagesResponse struct {
	Results []SearchResult `json:"results"`
	HasMore bool           `json:"has_more"`
}

type ListConversationsRequest struct{}

type ListConversationsResponse struct {
	Conversations []message.Conversation `json:"conversations"`
}

type OpenCrewChannelRequest struct {
	CrewID  string `json:"crew_id"`
	Channel string `json:"channel,omitempty"`
}

type OpenDirectRequest struct {
	UserID string `json:"user_id"`
}

type ConversationResponse struct {
	Conversation message.Conversation `json:"conversation"`
}

type JoinCrewRequest struct {
	InviteToken string `json:"invite_token"`
}

type JoinCrewResponse struct {
	Member       message.Member       `json:"member"`
	Conversation message.Conversation `json:"conversation"`
}

type CreateInviteRequest struct {
	CrewID     string `json:"crew_id"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

type CreateInviteResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ListMembersRequest struct {
	CrewID string `json:"crew_id"`
}

type ListMembersResponse struct {
	Members []message.Member `json:"members"`
}

type SetOnlineStatusRequest struct {
	CrewID string `json:"crew_id"`
	Online bool   `json:"online"`
}

type SetOnlineStatusResponse struct {
	Record presence.Record `json:"record"`
}

type ListPresenceRequest struct {
	CrewID string `json:"crew_id"`
}

type ListPresenceResponse struct {
	Records []presence.Record `json:"records"`
}

type WatchPresenceRequest struct {
	CrewID string `json:"crew_id"`
}
