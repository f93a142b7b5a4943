package messaging

import (
	"context"
	"time"

	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/store"
	"go.uber.org/zap"
)

// SendRequest describes a new outgoing message.
type SendRequest struct {
	ConversationID   string
	Content          string
	ReplyToMessageID string
	Attachments      []message.Attachment
}

// Delivery tracks one send attempt from optimistic insert to ack or failure.
type Delivery struct {
	pending message.Message
	done    chan struct{}
	result  message.Message
	err     error
}

// Pending returns the optimistic message as it was first shown.
func (d *Delivery) Pending() message.Message {
	return d.pending
}

// Done is closed once the attempt resolves.
func (d *Delivery) Done() <-chan struct{} {
	return d.done
}

// Result returns the resolved message: the stored message on success, the
// failed message and the delivery error otherwise. It must only be called
// after Done is closed.
func (d *Delivery) Result() (message.Message, error) {
	return d.result, d.err
}

// Wait blocks until the attempt resolves or ctx is done. Cancelling ctx does
// not cancel the delivery.
func (d *Delivery) Wait(ctx context.Context) (message.Message, error) {
	select {
	case <-d.done:
		return d.result, d.err
	case <-ctx.Done():
		return d.pending, ctx.Err()
	}
}

// Send validates req, shows it immediately as a pending message and persists
// it in the background. Empty content without attachments is rejected before
// the store is touched. The returned delivery resolves when the store
// acknowledges or rejects the message; nothing is retried automatically.
func (c *Client) Send(ctx context.Context, id identity.Identity, req SendRequest) (*Delivery, error) {
	if err := message.ValidateContent(req.Content, req.Attachments); err != nil {
		return nil, err
	}
	if err := c.checkOpen("send"); err != nil {
		return nil, err
	}
	if err := c.authorize(ctx, "send", id, req.ConversationID); err != nil {
		return nil, err
	}
	if err := c.checkReply(ctx, req); err != nil {
		return nil, err
	}

	key := c.newKey()
	m := message.Message{
		ID:                key,
		ConversationID:    req.ConversationID,
		IdempotencyKey:    key,
		SenderID:          id.UID,
		SenderDisplayName: id.Name(),
		Content:           req.Content,
		Attachments:       req.Attachments,
		ClientSentAt:      c.now().UTC(),
		Status:            message.StatusPending,
		ReplyToMessageID:  req.ReplyToMessageID,
		Attempt:           1,
	}
	return c.start(ctx, m)
}

// SendMessage sends and waits for the delivery to resolve. On failure the
// failed message is returned together with the error.
func (c *Client) SendMessage(ctx context.Context, id identity.Identity, req SendRequest) (message.Message, error) {
	d, err := c.Send(ctx, id, req)
	if err != nil {
		return message.Message{}, err
	}
	return d.Wait(ctx)
}

// Retry re-submits a failed message under its original idempotency key and
// content, as a new attempt.
func (c *Client) Retry(ctx context.Context, id identity.Identity, conversationID, key string) (*Delivery, error) {
	if err := c.checkOpen("retry"); err != nil {
		return nil, err
	}
	if !id.Valid() {
		return nil, message.NotAuthorized("retry", "no authenticated user")
	}

	c.mu.Lock()
	entry, ok := c.pending[conversationID][key]
	if !ok {
		c.mu.Unlock()
		return nil, message.NotFound("retry", "no pending message %q in %s", key, conversationID)
	}
	if entry.SenderID != id.UID {
		c.mu.Unlock()
		return nil, message.NotAuthorized("retry", "%s did not send %s", id.UID, key)
	}
	if entry.Status != message.StatusFailed {
		c.mu.Unlock()
		return nil, message.Validation("retry", "only failed messages can be retried, "+key+" is "+string(entry.Status))
	}
	next := *entry
	next.Status = message.StatusPending
	next.Attempt++
	next.LastError = ""
	// Claim the entry so a concurrent retry of the same key is rejected.
	*entry = next
	c.mu.Unlock()

	c.observer.MessageRetried()
	c.logger.Info("retrying message",
		zap.String("conversation_id", conversationID),
		zap.String("idempotency_key", key),
		zap.Int("attempt", next.Attempt))
	return c.start(ctx, next)
}

// RetryMessage retries and waits for the new attempt to resolve.
func (c *Client) RetryMessage(ctx context.Context, id identity.Identity, conversationID, key string) (message.Message, error) {
	d, err := c.Retry(ctx, id, conversationID, key)
	if err != nil {
		return message.Message{}, err
	}
	return d.Wait(ctx)
}

// checkReply requires a reply to point at a stored message of the same
// conversation.
func (c *Client) checkReply(ctx context.Context, req SendRequest) error {
	if req.ReplyToMessageID == "" {
		return nil
	}
	_, err := c.store.MessageByID(ctx, req.ConversationID, req.ReplyToMessageID)
	if message.KindOf(err) == message.KindNotFound {
		return message.Validation("send", "reply target "+req.ReplyToMessageID+" is not a message in "+req.ConversationID)
	}
	return err
}

func (c *Client) checkOpen(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return message.E(message.KindTransient, op, ErrClosed)
	}
	return nil
}

// start caches m as pending, announces it and launches the delivery.
func (c *Client) start(ctx context.Context, m message.Message) (*Delivery, error) {
	d := &Delivery{pending: m, done: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, message.E(message.KindTransient, "send", ErrClosed)
	}
	if c.pending[m.ConversationID] == nil {
		c.pending[m.ConversationID] = make(map[string]*message.Message)
	}
	stored := m
	c.pending[m.ConversationID][m.IdempotencyKey] = &stored
	c.wg.Add(1)
	c.mu.Unlock()

	c.publish(m)

	// The caller may give up waiting, but an issued send always resolves.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.DeliveryTimeout)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.deliver(dctx, d)
	}()
	return d, nil
}

func (c *Client) deliver(ctx context.Context, d *Delivery) {
	m := d.pending
	log := c.logger.With(
		zap.String("conversation_id", m.ConversationID),
		zap.String("idempotency_key", m.IdempotencyKey),
		zap.Int("attempt", m.Attempt))
	started := time.Now()

	var res message.Message
	err := c.sem.Acquire(ctx, 1)
	if err == nil {
		var ir *store.InsertResult
		ir, err = c.store.InsertMessage(ctx, m)
		c.sem.Release(1)
		if err == nil {
			res = ir.Message
			if ir.Duplicated {
				log.Info("message already stored, treating replay as ack")
			}
		}
	}

	if err != nil {
		kind := message.KindOf(err)
		failed := c.fail(m, err)
		log.Warn("message delivery failed", zap.String("kind", string(kind)), zap.Error(err))
		c.observer.MessageFailed(kind)
		d.result, d.err = failed, err
		close(d.done)
		return
	}

	c.ack(m)
	log.Info("message sent", zap.String("msg_id", res.ID))
	c.observer.MessageSent(time.Since(started))
	d.result = res
	close(d.done)
}

// ack drops the confirmed message from the pending cache. The store copy,
// matched by idempotency key, replaces it in the next snapshot.
func (c *Client) ack(m message.Message) {
	c.mu.Lock()
	if entries := c.pending[m.ConversationID]; entries != nil {
		delete(entries, m.IdempotencyKey)
		if len(entries) == 0 {
			delete(c.pending, m.ConversationID)
		}
	}
	c.mu.Unlock()

	m.Status = message.StatusSent
	c.publish(m)
}

// fail marks the cached attempt failed and keeps it for an explicit retry.
func (c *Client) fail(m message.Message, cause error) message.Message {
	c.mu.Lock()
	entry, ok := c.pending[m.ConversationID][m.IdempotencyKey]
	if !ok {
		entry = &m
	}
	if err := entry.Transition(message.StatusFailed); err != nil {
		c.logger.Error("unexpected status transition", zap.Error(err))
	}
	entry.LastError = cause.Error()
	failed := *entry
	c.mu.Unlock()

	c.publish(failed)
	return failed
}
