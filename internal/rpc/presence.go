package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const PresenceServiceName = "crewchat.v1.PresenceService"

const (
	PresenceSetOnlineStatusMethod = "/" + PresenceServiceName + "/SetOnlineStatus"
	PresenceListPresenceMethod    = "/" + PresenceServiceName + "/ListPresence"
	PresenceWatchPresenceMethod   = "/" + PresenceServiceName + "/WatchPresence"
)

// PresenceServiceServer records and reports who is online in a crew.
type PresenceServiceServer interface {
	SetOnlineStatus(context.Context, *SetOnlineStatusRequest) (*SetOnlineStatusResponse, error)
	ListPresence(context.Context, *ListPresenceRequest) (*ListPresenceResponse, error)
	WatchPresence(*WatchPresenceRequest, grpc.ServerStreamingServer[ListPresenceResponse]) error
}

var PresenceServiceDesc = grpc.ServiceDesc{
	ServiceName: PresenceServiceName,
	HandlerType: (*PresenceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SetOnlineStatus", Handler: unary(PresenceSetOnlineStatusMethod, PresenceServiceServer.SetOnlineStatus)},
		{MethodName: "ListPresence", Handler: unary(PresenceListPresenceMethod, PresenceServiceServer.ListPresence)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchPresence",
			Handler:       serverStream(PresenceServiceServer.WatchPresence),
			ServerStreams: true,
		},
	},
	Metadata: "crewchat/v1/presence",
}

func RegisterPresenceServiceServer(s grpc.ServiceRegistrar, srv PresenceServiceServer) {
	s.RegisterService(&PresenceServiceDesc, srv)
}

// PresenceServiceClient is the client API for PresenceService.
type PresenceServiceClient interface {
	SetOnlineStatus(ctx context.Context, in *SetOnlineStatusRequest, opts ...grpc.CallOption) (*SetOnlineStatusResponse, error)
	ListPresence(ctx context.Context, in *ListPresenceRequest, opts ...grpc.CallOption) (*ListPresenceResponse, error)
	WatchPresence(ctx context.Context, in *WatchPresenceRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ListPresenceResponse], error)
}

type presenceServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPresenceServiceClient(cc grpc.ClientConnInterface) PresenceServiceClient {
	return &presenceServiceClient{cc}
}

func (c *presenceServiceClient) SetOnlineStatus(ctx context.Context, in *SetOnlineStatusRequest, opts ...grpc.CallOption) (*SetOnlineStatusResponse, error) {
	return invoke[SetOnlineStatusRequest, SetOnlineStatusResponse](ctx, c.cc, PresenceSetOnlineStatusMethod, in, opts...)
}

func (c *presenceServiceClient) ListPresence(ctx context.Context, in *ListPresenceRequest, opts ...grpc.CallOption) (*ListPresenceResponse, error) {
	return invoke[ListPresenceRequest, ListPresenceResponse](ctx, c.cc, PresenceListPresenceMethod, in, opts...)
}

func (c *presenceServiceClient) WatchPresence(ctx context.Context, in *WatchPresenceRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ListPresenceResponse], error) {
	return openStream[WatchPresenceRequest, ListPresenceResponse](ctx, c.cc, &PresenceServiceDesc.Streams[0], PresenceWatchPresenceMethod, in, opts...)
}
