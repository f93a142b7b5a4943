// Package api implements the daemon's gRPC services on top of the messaging
// client, the crew directory and the presence tracker.
package api

import (
	"context"

	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/rpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

const defaultPageSize = 50

var (
	_ rpc.SessionServiceServer   = (*SessionService)(nil)
	_ rpc.MessagingServiceServer = (*MessagingService)(nil)
	_ rpc.PresenceServiceServer  = (*PresenceService)(nil)
)

// caller returns the identity the auth interceptor attached to ctx.
func caller(ctx context.Context) (identity.Identity, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return identity.Identity{}, grpcstatus.Error(codes.Unauthenticated, "no authenticated user")
	}
	return id, nil
}

func pageSize(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	return min(limit, 500)
}
