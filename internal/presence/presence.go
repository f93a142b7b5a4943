// Package presence tracks which crew members are online.
package presence

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/matheus3301/crewchat/internal/bus"
	"github.com/matheus3301/crewchat/internal/message"
	"go.uber.org/zap"
)

// DefaultStaleAfter is how long an online record stays online without a
// heartbeat before it is reported offline.
const DefaultStaleAfter = 2 * time.Minute

// Record is one user's presence within one crew.
type Record struct {
	UserID     string    `json:"user_id"`
	CrewID     string    `json:"crew_id"`
	IsOnline   bool      `json:"is_online"`
	LastSeenAt time.Time `json:"last_seen_at"`
	Stale      bool      `json:"stale,omitempty"`
}

// Backend persists presence records. Records are created on first write and
// never deleted.
type Backend interface {
	UpsertPresence(ctx context.Context, r Record) error
	ListPresence(ctx context.Context, crewID string) ([]Record, error)
	PingContext(ctx context.Context) error
}

// Tracker records connect and disconnect events and answers presence queries.
type Tracker struct {
	backend    Backend
	bus        *bus.Bus
	logger     *zap.Logger
	staleAfter time.Duration
	now        func() time.Time
}

// NewTracker creates a tracker on top of backend.
func NewTracker(backend Backend, b *bus.Bus, logger *zap.Logger, staleAfter time.Duration) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Tracker{
		backend:    backend,
		bus:        b,
		logger:     logger,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// SetOnlineStatus marks userID online or offline in crewID. Calling it with
// online=true again acts as a heartbeat.
func (t *Tracker) SetOnlineStatus(ctx context.Context, userID, crewID string, online bool) (Record, error) {
	if strings.TrimSpace(userID) == "" {
		return Record{}, message.Validation("set online status", "user id is empty")
	}
	if err := message.ValidateSlug("crew", crewID); err != nil {
		return Record{}, err
	}
	r := Record{
		UserID:     userID,
		CrewID:     crewID,
		IsOnline:   online,
		LastSeenAt: t.now().UTC(),
	}
	if err := t.backend.UpsertPresence(ctx, r); err != nil {
		t.logger.Warn("presence update failed",
			zap.String("user_id", userID), zap.String("crew_id", crewID), zap.Error(err))
		return Record{}, err
	}
	if t.bus != nil {
		t.bus.Publish(bus.Event{
			Kind:    bus.PresenceKind(crewID),
			Payload: bus.PresenceChange{CrewID: crewID, UserID: userID, IsOnline: online},
		})
	}
	return r, nil
}

// List returns the presence of every known member of crewID, online first.
// Online records without a recent heartbeat are reported offline and stale.
func (t *Tracker) List(ctx context.Context, crewID string) ([]Record, error) {
	recs, err := t.backend.ListPresence(ctx, crewID)
	if err != nil {
		return nil, err
	}
	now := t.now()
	for i := range recs {
		if recs[i].IsOnline && now.Sub(recs[i].LastSeenAt) > t.staleAfter {
			recs[i].IsOnline = false
			recs[i].Stale = true
		}
	}
	slices.SortFunc(recs, func(a, b Record) int {
		if a.IsOnline != b.IsOnline {
			if a.IsOnline {
				return -1
			}
			return 1
		}
		return strings.Compare(a.UserID, b.UserID)
	})
	return recs, nil
}

// Check pings the backend.
func (t *Tracker) Check(ctx context.Context) error {
	return t.backend.PingContext(ctx)
}

// Update is one presence list of a subscription. An update with Err set is
// the last one.
type Update struct {
	Records []Record
	Err     error
}

// Subscribe emits the crew's presence list now and after every change until
// ctx is done or the returned function is called. If the backend fails, a
// final update carrying the error is emitted and the channel is closed.
func (t *Tracker) Subscribe(ctx context.Context, crewID string) (<-chan Update, func()) {
	out := make(chan Update, 1)
	changed, unsub := t.bus.Notify(bus.PresenceKind(crewID))
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(out)
		defer unsub()
		emit := func() bool {
			recs, err := t.List(ctx, crewID)
			if ctx.Err() != nil {
				return false
			}
			if err != nil {
				t.logger.Warn("presence subscription failed", zap.String("crew_id", crewID), zap.Error(err))
			}
			select {
			case out <- Update{Records: recs, Err: err}:
				return err == nil
			case <-ctx.Done():
				return false
			}
		}
		if !emit() {
			return
		}
		for {
			select {
			case _, ok := <-changed:
				if !ok || !emit() {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, cancel
}
