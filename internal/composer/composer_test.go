package composer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/crewchat/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender records calls. Sends fail while err is set and block while
// block is non-nil.
type fakeSender struct {
	mu      sync.Mutex
	sends   []string
	retries []string
	err     error
	block   chan struct{}
	attempt map[string]int
}

func (f *fakeSender) SendMessage(ctx context.Context, conversationID, content string) (message.Message, error) {
	f.mu.Lock()
	f.sends = append(f.sends, content)
	key := "key-" + content
	if f.attempt == nil {
		f.attempt = map[string]int{}
	}
	f.attempt[key] = 1
	err, block := f.err, f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.result(conversationID, key, content, err)
}

func (f *fakeSender) RetryMessage(ctx context.Context, conversationID, key string) (message.Message, error) {
	f.mu.Lock()
	f.retries = append(f.retries, key)
	f.attempt[key]++
	err := f.err
	f.mu.Unlock()
	return f.result(conversationID, key, key[len("key-"):], err)
}

func (f *fakeSender) result(conversationID, key, content string, err error) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := message.Message{
		ID:             key,
		ConversationID: conversationID,
		IdempotencyKey: key,
		Content:        content,
		Attempt:        f.attempt[key],
		Status:         message.StatusSent,
	}
	if err != nil {
		m.Status = message.StatusFailed
		return m, err
	}
	return m, nil
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends) + len(f.retries)
}

const conv = "crew:local-46:general"

func TestSubmitRejectsBlankWithoutSenderCalls(t *testing.T) {
	s := &fakeSender{}
	c := New(s, conv)

	for _, text := range []string{"", "  ", "\n"} {
		c.SetText(text)
		assert.False(t, c.CanSubmit())
		_, err := c.Submit(context.Background())
		assert.ErrorIs(t, err, message.ErrValidation)
	}
	assert.Zero(t, s.calls())
	assert.Equal(t, Composing, c.State())
}

func TestSubmitSuccessClearsInput(t *testing.T) {
	s := &fakeSender{}
	c := New(s, conv)
	var states []State
	c.OnChange(func(st State) { states = append(states, st) })

	c.SetText("Copy that")
	m, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Copy that", m.Content)
	assert.Equal(t, Sent, c.State())
	assert.Empty(t, c.Text())
	assert.Equal(t, []State{Submitting, Sent}, states)

	c.SetText("n")
	assert.Equal(t, Composing, c.State())
}

func TestInFlightGuard(t *testing.T) {
	block := make(chan struct{})
	s := &fakeSender{block: block}
	c := New(s, conv)
	c.SetText("heading to site")

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return c.State() == Submitting }, time.Second, 5*time.Millisecond)
	assert.False(t, c.CanSubmit())
	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInFlight)
	_, err = c.Retry(context.Background())
	assert.ErrorIs(t, err, ErrInFlight)

	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, s.calls())
}

func TestFailureKeepsTextAndRetryResends(t *testing.T) {
	s := &fakeSender{err: errors.New("network down")}
	c := New(s, conv)
	c.SetText("Copy that")

	failed, err := c.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, Failed, c.State())
	assert.Equal(t, "Copy that", c.Text())
	assert.EqualError(t, c.Err(), "network down")
	assert.Equal(t, message.StatusFailed, failed.Status)

	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()

	m, err := c.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Sent, c.State())
	assert.Equal(t, "Copy that", m.Content)
	assert.Equal(t, failed.IdempotencyKey, m.IdempotencyKey)
	assert.Equal(t, 2, m.Attempt)
	assert.Empty(t, c.Text())
	assert.Equal(t, []string{"key-Copy that"}, s.retries)
	assert.Len(t, s.sends, 1)
}

func TestSubmitAfterFailureRetries(t *testing.T) {
	s := &fakeSender{err: errors.New("timeout")}
	c := New(s, conv)
	c.SetText("on my way")
	_, err := c.Submit(context.Background())
	require.Error(t, err)

	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()

	// Pressing send again on the unchanged text retries under the same key.
	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.sends, 1)
	assert.Len(t, s.retries, 1)
}

func TestEditingFailedTextStartsNewMessage(t *testing.T) {
	s := &fakeSender{err: errors.New("timeout")}
	c := New(s, conv)
	c.SetText("on my way")
	_, err := c.Submit(context.Background())
	require.Error(t, err)

	c.SetText("on my way!")
	assert.Equal(t, Composing, c.State())
	assert.NoError(t, c.Err())
	_, err = c.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRetry)
}

func TestRetryWithoutFailure(t *testing.T) {
	c := New(&fakeSender{}, conv)
	_, err := c.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRetry)
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{Composing, Submitting, true},
		{Composing, Sent, false},
		{Submitting, Sent, true},
		{Submitting, Failed, true},
		{Submitting, Composing, false},
		{Sent, Composing, true},
		{Sent, Submitting, false},
		{Failed, Submitting, true},
		{Failed, Sent, false},
	}
	for _, tt := range tests {
		c := &Composer{state: tt.from}
		err := c.transition(tt.to)
		if (err == nil) != tt.ok {
			t.Errorf("%s -> %s: err = %v, want ok=%v", tt.from, tt.to, err, tt.ok)
		}
	}
}
