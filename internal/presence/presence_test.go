package presence

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/crewchat/internal/bus"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	mu      sync.Mutex
	recs    map[string]Record
	pingErr error
	listErr error
}

func newMemBackend() *memBackend {
	return &memBackend{recs: make(map[string]Record)}
}

func (m *memBackend) UpsertPresence(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[r.CrewID+"/"+r.UserID] = r
	return nil
}

func (m *memBackend) ListPresence(_ context.Context, crewID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Record
	for _, r := range m.recs {
		if r.CrewID == crewID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memBackend) PingContext(context.Context) error {
	return m.pingErr
}

func TestSetOnlineStatusValidates(t *testing.T) {
	tr := NewTracker(newMemBackend(), bus.New(), nil, 0)

	_, err := tr.SetOnlineStatus(context.Background(), " ", "local-46", true)
	assert.ErrorIs(t, err, message.ErrValidation)

	_, err = tr.SetOnlineStatus(context.Background(), "amy", "Bad Crew", true)
	assert.ErrorIs(t, err, message.ErrValidation)
}

func TestListOrdersOnlineFirstAndMarksStale(t *testing.T) {
	backend := newMemBackend()
	tr := NewTracker(backend, bus.New(), nil, time.Minute)
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := tr.SetOnlineStatus(ctx, "zed", "local-46", true)
	require.NoError(t, err)
	_, err = tr.SetOnlineStatus(ctx, "amy", "local-46", false)
	require.NoError(t, err)
	require.NoError(t, backend.UpsertPresence(ctx, Record{
		UserID: "bob", CrewID: "local-46", IsOnline: true, LastSeenAt: now.Add(-5 * time.Minute),
	}))
	_, err = tr.SetOnlineStatus(ctx, "cat", "other", true)
	require.NoError(t, err)

	recs, err := tr.List(ctx, "local-46")
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "zed", recs[0].UserID)
	assert.True(t, recs[0].IsOnline)
	assert.Equal(t, "amy", recs[1].UserID)
	assert.Equal(t, "bob", recs[2].UserID)
	assert.False(t, recs[2].IsOnline)
	assert.True(t, recs[2].Stale)
}

func TestSubscribeEmitsOnChange(t *testing.T) {
	tr := NewTracker(newMemBackend(), bus.New(), nil, 0)
	ctx := context.Background()

	ch, cancel := tr.Subscribe(ctx, "local-46")
	defer cancel()

	select {
	case u := <-ch:
		require.NoError(t, u.Err)
		assert.Empty(t, u.Records)
	case <-time.After(time.Second):
		t.Fatal("no initial presence list")
	}

	_, err := tr.SetOnlineStatus(ctx, "amy", "local-46", true)
	require.NoError(t, err)

	select {
	case u := <-ch:
		require.Len(t, u.Records, 1)
		assert.Equal(t, "amy", u.Records[0].UserID)
	case <-time.After(time.Second):
		t.Fatal("no presence update")
	}

	cancel()
	for range ch {
	}
}

func TestSubscribeEndsWithBackendError(t *testing.T) {
	backend := newMemBackend()
	tr := NewTracker(backend, bus.New(), nil, 0)
	ctx := context.Background()

	ch, cancel := tr.Subscribe(ctx, "local-46")
	defer cancel()
	first := <-ch
	require.NoError(t, first.Err)

	backend.mu.Lock()
	backend.listErr = message.E(message.KindTransient, "list presence", errors.New("connection refused"))
	backend.mu.Unlock()
	_, err := tr.SetOnlineStatus(ctx, "amy", "local-46", true)
	require.NoError(t, err)

	select {
	case u := <-ch:
		assert.ErrorIs(t, u.Err, message.ErrTransient)
	case <-time.After(time.Second):
		t.Fatal("no error update")
	}
	select {
	case _, open := <-ch:
		assert.False(t, open, "channel must close after the error update")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after backend error")
	}
}

func TestCheck(t *testing.T) {
	backend := newMemBackend()
	tr := NewTracker(backend, nil, nil, 0)
	assert.NoError(t, tr.Check(context.Background()))

	backend.pingErr = errors.New("connection refused")
	assert.Error(t, tr.Check(context.Background()))
}

func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("CREWCHAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CREWCHAT_TEST_REDIS_ADDR not set")
	}
	rb, err := NewRedisBackend(RedisConfig{Address: addr, DB: 15})
	require.NoError(t, err)
	defer rb.Close()

	ctx := context.Background()
	crew := "test-" + time.Now().Format("150405.000000")
	seen := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, rb.UpsertPresence(ctx, Record{UserID: "amy", CrewID: crew, IsOnline: true, LastSeenAt: seen}))
	require.NoError(t, rb.UpsertPresence(ctx, Record{UserID: "amy", CrewID: crew, IsOnline: false, LastSeenAt: seen}))

	recs, err := rb.ListPresence(ctx, crew)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].IsOnline)
	assert.True(t, recs[0].LastSeenAt.Equal(seen))
	assert.NoError(t, rb.PingContext(ctx))
}
