package api

import (
	"context"
	"time"

	"github.com/matheus3301/crewchat/internal/rpc"
)

func (s *MessagingService) ListConversations(ctx context.Context, _ *rpc.ListConversationsRequest) (*rpc.ListConversationsResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	convs, err := s.directory.Conversations(ctx, id)
	if err != nil {
		return nil, rpc.Status(err)
	}
	return &rpc.ListConversationsResponse{Conversations: convs}, nil
}

func (s *MessagingService) OpenCrewChannel(ctx context.Context, req *rpc.OpenCrewChannelRequest) (*rpc.ConversationResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	conv, err := s.directory.OpenCrewChannel(ctx, id, req.CrewID, req.Channel)
	if err != nil {
		return nil, rpc.Status(err)
	}
	return &rpc.ConversationResponse{Conversation: *conv}, nil
}

func (s *MessagingService) OpenDirect(ctx context.Context, req *rpc.OpenDirectRequest) (*rpc.ConversationResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	conv, err := s.directory.OpenDirect(ctx, id, req.UserID)
	if err != nil {
		return nil, rpc.Status(err)
	}
	return &rpc.ConversationResponse{Conversation: *conv}, nil
}

func (s *MessagingService) JoinCrew(ctx context.Context, req *rpc.JoinCrewRequest) (*rpc.JoinCrewResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	member, conv, err := s.directory.Join(ctx, id, req.InviteToken)
	if err != nil {
		return nil, rpc.Status(err)
	}
	return &rpc.JoinCrewResponse{Member: member, Conversation: *conv}, nil
}

func (s *MessagingService) CreateInvite(ctx context.Context, req *rpc.CreateInviteRequest) (*rpc.CreateInviteResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	token, expires, err := s.directory.CreateInvite(ctx, id, req.CrewID, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		return nil, rpc.Status(err)
	}
	return &rpc.CreateInviteResponse{Token: token, ExpiresAt: expires}, nil
}

func (s *MessagingService) ListMembers(ctx context.Context, req *rpc.ListMembersRequest) (*rpc.ListMembersResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	members, err := s.directory.Members(ctx, id, req.CrewID)
	if err != nil {
		return nil, rpc.Status(err)
	}
	return &rpc.ListMembersResponse{Members: members}, nil
}
