package api

import (
	"context"
	"time"

	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/rpc"
	"github.com/matheus3301/crewchat/internal/status"
	"github.com/matheus3301/crewchat/internal/store"
)

// SessionService implements the SessionService gRPC service.
type SessionService struct {
	sessionName string
	startedAt   time.Time
	machine     *status.Machine
	db          *store.DB
	gatewayAddr string
}

// NewSessionService creates a new session service.
func NewSessionService(sessionName string, machine *status.Machine, db *store.DB, gatewayAddr string) *SessionService {
	return &SessionService{
		sessionName: sessionName,
		startedAt:   time.Now(),
		machine:     machine,
		db:          db,
		gatewayAddr: gatewayAddr,
	}
}

func (s *SessionService) GetStatus(ctx context.Context, _ *rpc.GetStatusRequest) (*rpc.GetStatusResponse, error) {
	current, reason, _ := s.machine.Snapshot()

	resp := &rpc.GetStatusResponse{
		Session:     s.sessionName,
		Status:      string(current),
		Reason:      reason,
		UptimeMs:    time.Since(s.startedAt).Milliseconds(),
		GatewayAddr: s.gatewayAddr,
	}
	if id, ok := identity.FromContext(ctx); ok {
		resp.User = id.UID
	}

	// Counts are best effort; a busy store should not fail a health check.
	if s.db != nil {
		if stats, err := s.db.Stats(); err == nil {
			resp.Conversations = stats.Conversations
			resp.Messages = stats.Messages
			resp.Members = stats.Members
		}
	}
	return resp, nil
}
