// Package composer holds the input state behind a message box: what the
// user typed, whether a send is in flight and how to recover from a failure.
package composer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/matheus3301/crewchat/internal/message"
)

// State is the composer's position in the send cycle.
type State string

const (
	Composing  State = "composing"
	Submitting State = "submitting"
	Sent       State = "sent"
	Failed     State = "failed"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Composing:  {Submitting},
	Submitting: {Sent, Failed},
	Sent:       {Composing},
	Failed:     {Submitting, Composing},
}

var (
	// ErrInFlight is returned when a submit is attempted while one is running.
	ErrInFlight = errors.New("a message is already being sent")
	// ErrNothingToRetry is returned by Retry when no failed message is held.
	ErrNothingToRetry = errors.New("no failed message to retry")
)

// Sender delivers messages for the composer.
type Sender interface {
	SendMessage(ctx context.Context, conversationID, content string) (message.Message, error)
	RetryMessage(ctx context.Context, conversationID, key string) (message.Message, error)
}

// Composer is the input box of one conversation.
type Composer struct {
	sender         Sender
	conversationID string

	mu        sync.Mutex
	state     State
	text      string
	lastErr   error
	failedKey string
	onChange  func(State)
}

// New creates a composer for conversationID.
func New(sender Sender, conversationID string) *Composer {
	return &Composer{
		sender:         sender,
		conversationID: conversationID,
		state:          Composing,
	}
}

// OnChange registers a callback invoked after every state change.
func (c *Composer) OnChange(fn func(State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// State returns the current state.
func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Text returns the current input text.
func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Err returns the error of the last failed send, if any.
func (c *Composer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// CanSubmit reports whether Submit would call the sender.
func (c *Composer) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != Submitting && strings.TrimSpace(c.text) != ""
}

// SetText updates the input. Typing after a successful send starts a new
// message; editing the text of a failed message abandons the failed one.
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	edited := text != c.text
	c.text = text
	var changed bool
	if c.state == Sent || (c.state == Failed && edited) {
		changed = c.transition(Composing) == nil
		c.failedKey = ""
		c.lastErr = nil
	}
	cb := c.onChange
	state := c.state
	c.mu.Unlock()
	if changed && cb != nil {
		cb(state)
	}
}

func (c *Composer) transition(to State) error {
	if !slices.Contains(validTransitions[c.state], to) {
		return fmt.Errorf("invalid transition from %s to %s", c.state, to)
	}
	c.state = to
	return nil
}

// Submit sends the current text. Blank text is rejected without calling the
// sender. On success the input is cleared; on failure the text is kept, the
// error is returned and Retry becomes available. Submitting the unchanged
// text of a failed message retries it.
func (c *Composer) Submit(ctx context.Context) (message.Message, error) {
	c.mu.Lock()
	if c.state == Submitting {
		c.mu.Unlock()
		return message.Message{}, ErrInFlight
	}
	if c.state == Failed && c.failedKey != "" {
		c.mu.Unlock()
		return c.Retry(ctx)
	}
	text := c.text
	if err := message.ValidateContent(text, nil); err != nil {
		c.mu.Unlock()
		return message.Message{}, err
	}
	if c.state != Composing {
		_ = c.transition(Composing)
	}
	if err := c.transition(Submitting); err != nil {
		c.mu.Unlock()
		return message.Message{}, err
	}
	c.lastErr = nil
	c.mu.Unlock()
	c.notify()

	m, err := c.sender.SendMessage(ctx, c.conversationID, text)
	return m, c.finish(m, err, text)
}

// Retry re-sends the failed message with its original content.
func (c *Composer) Retry(ctx context.Context) (message.Message, error) {
	c.mu.Lock()
	if c.state == Submitting {
		c.mu.Unlock()
		return message.Message{}, ErrInFlight
	}
	if c.state != Failed || c.failedKey == "" {
		c.mu.Unlock()
		return message.Message{}, ErrNothingToRetry
	}
	key, text := c.failedKey, c.text
	if err := c.transition(Submitting); err != nil {
		c.mu.Unlock()
		return message.Message{}, err
	}
	c.mu.Unlock()
	c.notify()

	m, err := c.sender.RetryMessage(ctx, c.conversationID, key)
	return m, c.finish(m, err, text)
}

// finish records the outcome of a send of text. The input is cleared on
// success unless the user has typed something new meanwhile.
func (c *Composer) finish(m message.Message, err error, text string) error {
	c.mu.Lock()
	if err != nil {
		_ = c.transition(Failed)
		c.lastErr = err
		c.failedKey = m.IdempotencyKey
	} else {
		_ = c.transition(Sent)
		c.failedKey = ""
		c.lastErr = nil
		if c.text == text {
			c.text = ""
		}
	}
	c.mu.Unlock()
	c.notify()
	return err
}

func (c *Composer) notify() {
	c.mu.Lock()
	cb, state := c.onChange, c.state
	c.mu.Unlock()
	if cb != nil {
		cb(state)
	}
}
