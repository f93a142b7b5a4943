package api

import (
	"context"

	"github.com/matheus3301/crewchat/internal/crew"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/presence"
	"github.com/matheus3301/crewchat/internal/rpc"
	"google.golang.org/grpc"
)

// PresenceService implements the PresenceService gRPC service.
type PresenceService struct {
	tracker   *presence.Tracker
	directory *crew.Directory
}

// NewPresenceService creates a presence service.
func NewPresenceService(tracker *presence.Tracker, directory *crew.Directory) *PresenceService {
	return &PresenceService{tracker: tracker, directory: directory}
}

func (s *PresenceService) SetOnlineStatus(ctx context.Context, req *rpc.SetOnlineStatusRequest) (*rpc.SetOnlineStatusResponse, error) {
	if err := s.requireMember(ctx, "set online status", req.CrewID); err != nil {
		return nil, err
	}
	id, _ := caller(ctx)
	rec, err := s.tracker.SetOnlineStatus(ctx, id.UID, req.CrewID, req.Online)
	if err != nil {
		return nil, rpc.Status(err)
	}
	return &rpc.SetOnlineStatusResponse{Record: rec}, nil
}

func (s *PresenceService) ListPresence(ctx context.Context, req *rpc.ListPresenceRequest) (*rpc.ListPresenceResponse, error) {
	if err := s.requireMember(ctx, "list presence", req.CrewID); err != nil {
		return nil, err
	}
	recs, err := s.tracker.List(ctx, req.CrewID)
	if err != nil {
		return nil, rpc.Status(err)
	}
	return &rpc.ListPresenceResponse{Records: recs}, nil
}

func (s *PresenceService) WatchPresence(req *rpc.WatchPresenceRequest, stream grpc.ServerStreamingServer[rpc.ListPresenceResponse]) error {
	ctx := stream.Context()
	if err := s.requireMember(ctx, "watch presence", req.CrewID); err != nil {
		return err
	}
	ch, cancel := s.tracker.Subscribe(ctx, req.CrewID)
	defer cancel()

	for u := range ch {
		if u.Err != nil {
			return rpc.Status(u.Err)
		}
		if err := stream.Send(&rpc.ListPresenceResponse{Records: u.Records}); err != nil {
			return err
		}
	}
	return nil
}

func (s *PresenceService) requireMember(ctx context.Context, op, crewID string) error {
	id, err := caller(ctx)
	if err != nil {
		return err
	}
	if err := message.ValidateSlug("crew", crewID); err != nil {
		return rpc.Status(err)
	}
	ok, err := s.directory.IsMember(ctx, id, crewID)
	if err != nil {
		return rpc.Status(err)
	}
	if !ok {
		return rpc.Status(message.NotAuthorized(op, "%s is not a member of crew %s", id.UID, crewID))
	}
	return nil
}
