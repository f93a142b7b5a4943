// Package client is the front-end side of the daemon socket: typed service
// clients plus the send helpers the composer drives.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/crewchat/internal/config"
	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/rpc"
	"github.com/matheus3301/crewchat/internal/session"
	"google.golang.org/grpc"
)

// Client wraps gRPC connections to the daemon.
type Client struct {
	conn      *grpc.ClientConn
	Session   rpc.SessionServiceClient
	Messaging rpc.MessagingServiceClient
	Presence  rpc.PresenceServiceClient
}

// New dials the daemon's Unix domain socket and returns typed service
// clients. Every call carries token.
func New(socketPath, token string) (*Client, error) {
	conn, err := rpc.Dial(socketPath, token)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:      conn,
		Session:   rpc.NewSessionServiceClient(conn),
		Messaging: rpc.NewMessagingServiceClient(conn),
		Presence:  rpc.NewPresenceServiceClient(conn),
	}, nil
}

// Token mints a token for id signed with the session's secret. Front-ends
// run on the daemon's host and share its session directory.
func Token(sessionName string, id identity.Identity, ttl time.Duration) (string, error) {
	if !id.Valid() {
		return "", fmt.Errorf("a user id is required")
	}
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		return "", err
	}
	secret := cfg.Gateway.JWTSecret
	if secret == "" {
		if secret, err = session.ReadSecret(sessionName); err != nil {
			return "", err
		}
	}
	if ttl <= 0 {
		ttl = cfg.Gateway.TokenTTL.Duration
	}
	return identity.NewTokenService(secret, ttl).CreateForUser(id)
}

// SendMessage sends content and waits for the daemon to resolve it. A
// rejected delivery returns the failed message along with its error.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (message.Message, error) {
	resp, err := c.Messaging.SendMessage(ctx, &rpc.SendMessageRequest{
		ConversationID: conversationID,
		Content:        content,
		Wait:           true,
	})
	return delivered(resp, err)
}

// RetryMessage re-submits the failed message key and waits for the attempt.
func (c *Client) RetryMessage(ctx context.Context, conversationID, key string) (message.Message, error) {
	resp, err := c.Messaging.RetryMessage(ctx, &rpc.RetryMessageRequest{
		ConversationID: conversationID,
		IdempotencyKey: key,
		Wait:           true,
	})
	return delivered(resp, err)
}

func delivered(resp *rpc.SendMessageResponse, err error) (message.Message, error) {
	if err != nil {
		return message.Message{}, rpc.FromStatus(err)
	}
	if resp.Failure != nil {
		return resp.Message, resp.Failure.Err()
	}
	return resp.Message, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
