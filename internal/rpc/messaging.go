package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const MessagingServiceName = "crewchat.v1.MessagingService"

const (
	MessagingSendMessageMethod       = "/" + MessagingServiceName + "/SendMessage"
	MessagingRetryMessageMethod      = "/" + MessagingServiceName + "/RetryMessage"
	MessagingListMessagesMethod      = "/" + MessagingServiceName + "/ListMessages"
	MessagingWatchConversationMethod = "/" + MessagingServiceName + "/WatchConversation"
	MessagingSearchMessagesMethod    = "/" + MessagingServiceName + "/SearchMessages"
	MessagingListConversationsMethod = "/" + MessagingServiceName + "/ListConversations"
	MessagingOpenCrewChannelMethod   = "/" + MessagingServiceName + "/OpenCrewChannel"
	MessagingOpenDirectMethod        = "/" + MessagingServiceName + "/OpenDirect"
	MessagingJoinCrewMethod          = "/" + MessagingServiceName + "/JoinCrew"
	MessagingCreateInviteMethod      = "/" + MessagingServiceName + "/CreateInvite"
	MessagingListMembersMethod       = "/" + MessagingServiceName + "/ListMembers"
)

// MessagingServiceServer sends and streams messages and manages the
// conversations they live in.
type MessagingServiceServer interface {
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	RetryMessage(context.Context, *RetryMessageRequest) (*SendMessageResponse, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	WatchConversation(*WatchConversationRequest, grpc.ServerStreamingServer[ConversationSnapshot]) error
	SearchMessages(context.Context, *SearchMessagesRequest) (*SearchMessagesResponse, error)
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	OpenCrewChannel(context.Context, *OpenCrewChannelRequest) (*ConversationResponse, error)
	OpenDirect(context.Context, *OpenDirectRequest) (*ConversationResponse, error)
	JoinCrew(context.Context, *JoinCrewRequest) (*JoinCrewResponse, error)
	CreateInvite(context.Context, *CreateInviteRequest) (*CreateInviteResponse, error)
	ListMembers(context.Context, *ListMembersRequest) (*ListMembersResponse, error)
}

var MessagingServiceDesc = grpc.ServiceDesc{
	ServiceName: MessagingServiceName,
	HandlerType: (*MessagingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendMessage", Handler: unary(MessagingSendMessageMethod, MessagingServiceServer.SendMessage)},
		{MethodName: "RetryMessage", Handler: unary(MessagingRetryMessageMethod, MessagingServiceServer.RetryMessage)},
		{MethodName: "ListMessages", Handler: unary(MessagingListMessagesMethod, MessagingServiceServer.ListMessages)},
		{MethodName: "SearchMessages", Handler: unary(MessagingSearchMessagesMethod, MessagingServiceServer.SearchMessages)},
		{MethodName: "ListConversations", Handler: unary(MessagingListConversationsMethod, MessagingServiceServer.ListConversations)},
		{MethodName: "OpenCrewChannel", Handler: unary(MessagingOpenCrewChannelMethod, MessagingServiceServer.OpenCrewChannel)},
		{MethodName: "OpenDirect", Handler: unary(MessagingOpenDirectMethod, MessagingServiceServer.OpenDirect)},
		{MethodName: "JoinCrew", Handler: unary(MessagingJoinCrewMethod, MessagingServiceServer.JoinCrew)},
		{MethodName: "CreateInvite", Handler: unary(MessagingCreateInviteMethod, MessagingServiceServer.CreateInvite)},
		{MethodName: "ListMembers", Handler: unary(MessagingListMembersMethod, MessagingServiceServer.ListMembers)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchConversation",
			Handler:       serverStream(MessagingServiceServer.WatchConversation),
			ServerStreams: true,
		},
	},
	Metadata: "crewchat/v1/messaging",
}

func RegisterMessagingServiceServer(s grpc.ServiceRegistrar, srv MessagingServiceServer) {
	s.RegisterService(&MessagingServiceDesc, srv)
}

// MessagingServiceClient is the client API for MessagingService.
type MessagingServiceClient interface {
	SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error)
	RetryMessage(ctx context.Context, in *RetryMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error)
	ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error)
	WatchConversation(ctx context.Context, in *WatchConversationRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ConversationSnapshot], error)
	SearchMessages(ctx context.Context, in *SearchMessagesRequest, opts ...grpc.CallOption) (*SearchMessagesResponse, error)
	ListConversations(ctx context.Context, in *ListConversationsRequest, opts ...grpc.CallOption) (*ListConversationsResponse, error)
	OpenCrewChannel(ctx context.Context, in *OpenCrewChannelRequest, opts ...grpc.CallOption) (*ConversationResponse, error)
	OpenDirect(ctx context.Context, in *OpenDirectRequest, opts ...grpc.CallOption) (*ConversationResponse, error)
	JoinCrew(ctx context.Context, in *JoinCrewRequest, opts ...grpc.CallOption) (*JoinCrewResponse, error)
	CreateInvite(ctx context.Context, in *CreateInviteRequest, opts ...grpc.CallOption) (*CreateInviteResponse, error)
	ListMembers(ctx context.Context, in *ListMembersRequest, opts ...grpc.CallOption) (*ListMembersResponse, error)
}

type messagingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMessagingServiceClient(cc grpc.ClientConnInterface) MessagingServiceClient {
	return &messagingServiceClient{cc}
}

func (c *messagingServiceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	return invoke[SendMessageRequest, SendMessageResponse](ctx, c.cc, MessagingSendMessageMethod, in, opts...)
}

func (c *messagingServiceClient) RetryMessage(ctx context.Context, in *RetryMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	return invoke[RetryMessageRequest, SendMessageResponse](ctx, c.cc, MessagingRetryMessageMethod, in, opts...)
}

func (c *messagingServiceClient) ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error) {
	return invoke[ListMessagesRequest, ListMessagesResponse](ctx, c.cc, MessagingListMessagesMethod, in, opts...)
}

func (c *messagingServiceClient) WatchConversation(ctx context.Context, in *WatchConversationRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ConversationSnapshot], error) {
	return openStream[WatchConversationRequest, ConversationSnapshot](ctx, c.cc, &MessagingServiceDesc.Streams[0], MessagingWatchConversationMethod, in, opts...)
}

func (c *messagingServiceClient) SearchMessages(ctx context.Context, in *SearchMessagesRequest, opts ...grpc.CallOption) (*SearchMessagesResponse, error) {
	return invoke[SearchMessagesRequest, SearchMessagesResponse](ctx, c.cc, MessagingSearchMessagesMethod, in, opts...)
}

func (c *messagingServiceClient) ListConversations(ctx context.Context, in *ListConversationsRequest, opts ...grpc.CallOption) (*ListConversationsResponse, error) {
	return invoke[ListConversationsRequest, ListConversationsResponse](ctx, c.cc, MessagingListConversationsMethod, in, opts...)
}

func (c *messagingServiceClient) OpenCrewChannel(ctx context.Context, in *OpenCrewChannelRequest, opts ...grpc.CallOption) (*ConversationResponse, error) {
	return invoke[OpenCrewChannelRequest, ConversationResponse](ctx, c.cc, MessagingOpenCrewChannelMethod, in, opts...)
}

func (c *messagingServiceClient) OpenDirect(ctx context.Context, in *OpenDirectRequest, opts ...grpc.CallOption) (*ConversationResponse, error) {
	return invoke[OpenDirectRequest, ConversationResponse](ctx, c.cc, MessagingOpenDirectMethod, in, opts...)
}

func (c *messagingServiceClient) JoinCrew(ctx context.Context, in *JoinCrewRequest, opts ...grpc.CallOption) (*JoinCrewResponse, error) {
	return invoke[JoinCrewRequest, JoinCrewResponse](ctx, c.cc, MessagingJoinCrewMethod, in, opts...)
}

func (c *messagingServiceClient) CreateInvite(ctx context.Context, in *CreateInviteRequest, opts ...grpc.CallOption) (*CreateInviteResponse, error) {
	return invoke[CreateInviteRequest, CreateInviteResponse](ctx, c.cc, MessagingCreateInviteMethod, in, opts...)
}

func (c *messagingServiceClient) ListMembers(ctx context.Context, in *ListMembersRequest, opts ...grpc.CallOption) (*ListMembersResponse, error) {
	return invoke[ListMembersRequest, ListMembersResponse](ctx, c.cc, MessagingListMembersMethod, in, opts...)
}
