// Package messaging is the client side of crew chat: it sends messages
// optimistically, tracks their delivery and streams conversation snapshots
// that merge the store with the local pending cache.
package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/crewchat/internal/bus"
	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("messaging client closed")

// Store is the persistence the client needs.
type Store interface {
	InsertMessage(ctx context.Context, m message.Message) (*store.InsertResult, error)
	ListMessages(ctx context.Context, conversationID, before string, limit int) ([]message.Message, error)
	MessageByID(ctx context.Context, conversationID, id string) (*message.Message, error)
	Conversation(ctx context.Context, id string) (*message.Conversation, error)
	CanAccess(ctx context.Context, conversationID, userID string) (bool, error)
}

// Observer receives delivery and subscription events, typically to export
// metrics.
type Observer interface {
	MessageSent(latency time.Duration)
	MessageFailed(kind message.ErrorKind)
	MessageRetried()
	SubscriptionOpened()
	SubscriptionClosed()
}

type nopObserver struct{}

func (nopObserver) MessageSent(time.Duration) {}
func (nopObserver) MessageFailed(message.ErrorKind) {}
func (nopObserver) MessageRetried() {}
func (nopObserver) SubscriptionOpened() {}
func (nopObserver) SubscriptionClosed() {}

// Config tunes the client.
type Config struct {
	// DeliveryTimeout bounds a single persist attempt.
	DeliveryTimeout time.Duration
	// MaxInFlight bounds concurrent persist attempts.
	MaxInFlight int64
	// HistoryLimit is how many confirmed messages a snapshot carries.
	HistoryLimit int
}

// DefaultConfig returns the standard client settings.
func DefaultConfig() Config {
	return Config{
		DeliveryTimeout: 15 * time.Second,
		MaxInFlight:     8,
		HistoryLimit:    200,
	}
}

// Client sends messages and streams conversations for one daemon session.
type Client struct {
	store    Store
	bus      *bus.Bus
	logger   *zap.Logger
	observer Observer
	cfg      Config
	sem      *semaphore.Weighted

	now    func() time.Time
	newKey func() string

	mu      sync.Mutex
	pending map[string]map[string]*message.Message // conversation -> idempotency key
	subs    map[*Subscription]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// Option customizes a Client.
type Option func(*Client)

// WithObserver reports delivery events to o.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithClock overrides the clock used for ClientSentAt.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithKeyFunc overrides idempotency key generation.
func WithKeyFunc(f func() string) Option {
	return func(c *Client) { c.newKey = f }
}

// NewClient creates a client on top of st. Change notifications travel over b.
func NewClient(st Store, b *bus.Bus, logger *zap.Logger, cfg Config, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = def.DeliveryTimeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = def.MaxInFlight
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	c := &Client{
		store:    st,
		bus:      b,
		logger:   logger,
		observer: nopObserver{},
		cfg:      cfg,
		sem:      semaphore.NewWeighted(cfg.MaxInFlight),
		now:      time.Now,
		newKey:   func() string { return uuid.New().String() },
		pending:  make(map[string]map[string]*message.Message),
		subs:     make(map[*Subscription]struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// authorize checks that id may use conversationID.
func (c *Client) authorize(ctx context.Context, op string, id identity.Identity, conversationID string) error {
	if !id.Valid() {
		return message.NotAuthorized(op, "no authenticated user")
	}
	ok, err := c.store.CanAccess(ctx, conversationID, id.UID)
	if err != nil {
		return err
	}
	if !ok {
		return message.NotAuthorized(op, "%s may not access %s", id.UID, conversationID)
	}
	return nil
}

// Pending returns a copy of the unconfirmed messages of a conversation in
// display order.
func (c *Client) Pending(conversationID string) []message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.pending[conversationID]
	out := make([]message.Message, 0, len(entries))
	for _, m := range entries {
		out = append(out, *m)
	}
	message.Sort(out)
	return out
}

// History returns confirmed messages of a conversation, newest limit first
// page in ascending order.
func (c *Client) History(ctx context.Context, id identity.Identity, conversationID, before string, limit int) ([]message.Message, error) {
	if err := c.authorize(ctx, "history", id, conversationID); err != nil {
		return nil, err
	}
	return c.store.ListMessages(ctx, conversationID, before, limit)
}

// Snapshot returns the current merged view of a conversation.
func (c *Client) Snapshot(ctx context.Context, id identity.Identity, conversationID string) ([]message.Message, error) {
	if err := c.authorize(ctx, "snapshot", id, conversationID); err != nil {
		return nil, err
	}
	return c.snapshot(ctx, conversationID)
}

func (c *Client) snapshot(ctx context.Context, conversationID string) ([]message.Message, error) {
	// Read the cache before the store: an ack landing in between then shows
	// up in both and is de-duplicated, never in neither.
	pending := c.Pending(conversationID)
	confirmed, err := c.store.ListMessages(ctx, conversationID, "", c.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	return message.Merge(confirmed, pending), nil
}

func (c *Client) publish(m message.Message) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{
		Kind: bus.MessageKind(m.ConversationID),
		Payload: bus.MessageChange{
			ConversationID: m.ConversationID,
			IdempotencyKey: m.IdempotencyKey,
			Status:         string(m.Status),
		},
	})
}

// Close cancels every subscription and waits for in-flight deliveries to
// resolve. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := make([]*Subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	c.wg.Wait()
	c.logger.Info("messaging client closed")
}
