package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/crewchat/internal/bus"
	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/message"
	"go.uber.org/zap"
)

// Snapshot is the full ordered message list of a conversation at one point
// in time. A snapshot with Err set is the last one of its subscription.
type Snapshot struct {
	ConversationID string
	Messages       []message.Message
	Err            error
	At             time.Time
}

// Subscription is a live stream of snapshots for one conversation.
type Subscription struct {
	conversationID string
	out            chan Snapshot
	cancel         context.CancelFunc
	done           chan struct{}
	once           sync.Once
}

// C returns the snapshot channel. It holds at most one undelivered snapshot:
// when the consumer falls behind, the newest snapshot replaces the older one.
// The channel is closed when the subscription ends.
func (s *Subscription) C() <-chan Snapshot {
	return s.out
}

// ConversationID returns the subscribed conversation.
func (s *Subscription) ConversationID() string {
	return s.conversationID
}

// Close stops the stream. It is safe to call at any time, more than once and
// from the goroutine reading C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// push delivers snap, replacing an unread snapshot if there is one.
func (s *Subscription) push(snap Snapshot) {
	select {
	case s.out <- snap:
		return
	default:
	}
	select {
	case <-s.out:
	default:
	}
	select {
	case s.out <- snap:
	default:
	}
}

// Subscribe streams snapshots of conversationID: one immediately, then one
// after every change. If the store fails, a final snapshot carrying the
// error is emitted and the channel is closed; call Subscribe again to
// reconnect. Closing the subscription has no effect on the store.
func (c *Client) Subscribe(ctx context.Context, id identity.Identity, conversationID string) (*Subscription, error) {
	if err := c.checkOpen("subscribe"); err != nil {
		return nil, err
	}
	if err := c.authorize(ctx, "subscribe", id, conversationID); err != nil {
		return nil, err
	}

	changed, unsub := c.bus.Notify(bus.MessageKind(conversationID))
	sctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		conversationID: conversationID,
		out:            make(chan Snapshot, 1),
		cancel:         cancel,
		done:           make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		unsub()
		return nil, message.E(message.KindTransient, "subscribe", ErrClosed)
	}
	c.subs[s] = struct{}{}
	c.mu.Unlock()
	c.observer.SubscriptionOpened()

	go c.run(sctx, s, changed, unsub)
	return s, nil
}

func (c *Client) run(ctx context.Context, s *Subscription, changed <-chan struct{}, unsub func()) {
	defer close(s.done)
	defer func() {
		unsub()
		close(s.out)
		c.mu.Lock()
		delete(c.subs, s)
		c.mu.Unlock()
		c.observer.SubscriptionClosed()
	}()

	emit := func() bool {
		msgs, err := c.snapshot(ctx, s.conversationID)
		if ctx.Err() != nil {
			return false
		}
		if err != nil {
			c.logger.Warn("conversation subscription failed",
				zap.String("conversation_id", s.conversationID), zap.Error(err))
			s.push(Snapshot{ConversationID: s.conversationID, Err: err, At: time.Now()})
			return false
		}
		s.push(Snapshot{ConversationID: s.conversationID, Messages: msgs, At: time.Now()})
		return true
	}

	if !emit() {
		return
	}
	for {
		select {
		// A signal raised while emit was reading is still queued, so the
		// next read sees every change published so far.
		case _, ok := <-changed:
			if !ok {
				return
			}
			if !emit() {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
