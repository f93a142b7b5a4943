package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	SessionServiceName     = "crewchat.v1.SessionService"
	SessionGetStatusMethod = "/" + SessionServiceName + "/GetStatus"
)

// SessionServiceServer reports daemon health.
type SessionServiceServer interface {
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
}

var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: unary(SessionGetStatusMethod, SessionServiceServer.GetStatus)},
	},
	Metadata: "crewchat/v1/session",
}

func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

// SessionServiceClient is the client API for SessionService.
type SessionServiceClient interface {
	GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error)
}

type sessionServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionServiceClient(cc grpc.ClientConnInterface) SessionServiceClient {
	return &sessionServiceClient{cc}
}

func (c *sessionServiceClient) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error) {
	return invoke[GetStatusRequest, GetStatusResponse](ctx, c.cc, SessionGetStatusMethod, in, opts...)
}
