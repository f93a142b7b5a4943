package api

import (
	"context"

	"github.com/matheus3301/crewchat/internal/crew"
	"github.com/matheus3301/crewchat/internal/messaging"
	"github.com/matheus3301/crewchat/internal/rpc"
	"github.com/matheus3301/crewchat/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// MessagingService implements the MessagingService gRPC service.
type MessagingService struct {
	client    *messaging.Client
	directory *crew.Directory
	db        *store.DB
	logger    *zap.Logger
}

// NewMessagingService creates a messaging service.
func NewMessagingService(client *messaging.Client, directory *crew.Directory, db *store.DB, logger *zap.Logger) *MessagingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessagingService{client: client, directory: directory, db: db, logger: logger}
}

func (s *MessagingService) SendMessage(ctx context.Context, req *rpc.SendMessageRequest) (*rpc.SendMessageResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.client.Send(ctx, id, messaging.SendRequest{
		ConversationID:   req.ConversationID,
		Content:          req.Content,
		ReplyToMessageID: req.ReplyToMessageID,
		Attachments:      req.Attachments,
	})
	if err != nil {
		return nil, rpc.Status(err)
	}
	return s.respond(ctx, d, req.Wait)
}

func (s *MessagingService) RetryMessage(ctx context.Context, req *rpc.RetryMessageRequest) (*rpc.SendMessageResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.client.Retry(ctx, id, req.ConversationID, req.IdempotencyKey)
	if err != nil {
		return nil, rpc.Status(err)
	}
	return s.respond(ctx, d, req.Wait)
}

// respond returns the pending message, or the outcome of the delivery when
// wait is set. A failed delivery is a successful call carrying a Failure.
func (s *MessagingService) respond(ctx context.Context, d *messaging.Delivery, wait bool) (*rpc.SendMessageResponse, error) {
	if !wait {
		return &rpc.SendMessageResponse{Message: d.Pending()}, nil
	}
	m, err := d.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, rpc.Status(err)
	}
	return &rpc.SendMessageResponse{Message: m, Failure: rpc.NewFailure(err)}, nil
}

func (s *MessagingService) ListMessages(ctx context.Context, req *rpc.ListMessagesRequest) (*rpc.ListMessagesResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	limit := pageSize(req.Limit)
	msgs, err := s.client.History(ctx, id, req.ConversationID, req.Before, limit)
	if err != nil {
		return nil, rpc.Status(err)
	}
	return &rpc.ListMessagesResponse{
		Messages: msgs,
		HasMore:  len(msgs) == limit,
	}, nil
}

func (s *MessagingService) WatchConversation(req *rpc.WatchConversationRequest, stream grpc.ServerStreamingServer[rpc.ConversationSnapshot]) error {
	ctx := stream.Context()
	id, err := caller(ctx)
	if err != nil {
		return err
	}
	sub, err := s.client.Subscribe(ctx, id, req.ConversationID)
	if err != nil {
		return rpc.Status(err)
	}
	defer sub.Close()

	for snap := range sub.C() {
		out := &rpc.ConversationSnapshot{
			ConversationID: snap.ConversationID,
			Messages:       snap.Messages,
			At:             snap.At,
			Failure:        rpc.NewFailure(snap.Err),
		}
		if err := stream.Send(out); err != nil {
			return err
		}
		if snap.Err != nil {
			s.logger.Warn("conversation stream ended",
				zap.String("conversation_id", req.ConversationID), zap.Error(snap.Err))
			return nil
		}
	}
	return nil
}

func (s *MessagingService) SearchMessages(ctx context.Context, req *rpc.SearchMessagesRequest) (*rpc.SearchMessagesResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	limit := pageSize(req.Limit)
	results, err := s.db.SearchMessages(ctx, id.UID, req.Query, req.ConversationID, limit)
	if err != nil {
		return nil, rpc.Status(err)
	}

	out := make([]rpc.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, rpc.SearchResult{Message: r.Message, Snippet: r.Snippet})
	}
	return &rpc.SearchMessagesResponse{
		Results: out,
		HasMore: len(results) == limit,
	}, nil
}
