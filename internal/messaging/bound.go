package messaging

import (
	"context"

	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/message"
)

// Bound is a client acting on behalf of one identity.
type Bound struct {
	client *Client
	id     identity.Identity
}

// As binds the client to id.
func (c *Client) As(id identity.Identity) *Bound {
	return &Bound{client: c, id: id}
}

// SendMessage sends content to conversationID and waits for the outcome.
func (b *Bound) SendMessage(ctx context.Context, conversationID, content string) (message.Message, error) {
	return b.client.SendMessage(ctx, b.id, SendRequest{ConversationID: conversationID, Content: content})
}

// RetryMessage retries a failed message and waits for the outcome.
func (b *Bound) RetryMessage(ctx context.Context, conversationID, key string) (message.Message, error) {
	return b.client.RetryMessage(ctx, b.id, conversationID, key)
}
