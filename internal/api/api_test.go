package api

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/crewchat/internal/bus"
	"github.com/matheus3301/crewchat/internal/crew"
	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/messaging"
	"github.com/matheus3301/crewchat/internal/presence"
	"github.com/matheus3301/crewchat/internal/rpc"
	"github.com/matheus3301/crewchat/internal/status"
	"github.com/matheus3301/crewchat/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// flakyStore fails inserts while failing is set.
type flakyStore struct {
	*store.DB
	mu      sync.Mutex
	failing bool
}

func (f *flakyStore) InsertMessage(ctx context.Context, m message.Message) (*store.InsertResult, error) {
	f.mu.Lock()
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return nil, message.E(message.KindTransient, "insert message", errors.New("database is locked"))
	}
	return f.DB.InsertMessage(ctx, m)
}

func (f *flakyStore) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

type harness struct {
	socket  string
	tokens  *identity.TokenService
	flaky   *flakyStore
	machine *status.Machine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "crewapi-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	db, err := store.Open(filepath.Join(dir, "crew.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	tokens := identity.NewTokenService("test-secret", time.Hour)
	flaky := &flakyStore{DB: db}
	client := messaging.NewClient(flaky, b, nil, messaging.DefaultConfig())
	t.Cleanup(client.Close)
	directory := crew.NewDirectory(db, tokens, nil)
	_, err = directory.EnsureGlobal(context.Background())
	require.NoError(t, err)
	tracker := presence.NewTracker(db, b, nil, time.Minute)
	machine := status.NewMachine(b)

	srv := grpc.NewServer(rpc.ServerOptions(tokens)...)
	rpc.RegisterSessionServiceServer(srv, NewSessionService("test", machine, db, ""))
	rpc.RegisterMessagingServiceServer(srv, NewMessagingService(client, directory, db, nil))
	rpc.RegisterPresenceServiceServer(srv, NewPresenceService(tracker, directory))

	socket := filepath.Join(dir, "d.sock")
	lis, err := net.Listen("unix", socket)
	require.NoError(t, err)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return &harness{socket: socket, tokens: tokens, flaky: flaky, machine: machine}
}

func (h *harness) conn(t *testing.T, uid string) *grpc.ClientConn {
	t.Helper()
	var token string
	if uid != "" {
		var err error
		token, err = h.tokens.CreateForUser(identity.Identity{UID: uid, DisplayName: uid})
		require.NoError(t, err)
	}
	conn, err := rpc.Dial(h.socket, token)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestGetStatus(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.machine.Transition(status.Ready))

	resp, err := rpc.NewSessionServiceClient(h.conn(t, "")).GetStatus(testContext(t), &rpc.GetStatusRequest{})
	require.NoError(t, err)
	assert.Equal(t, "test", resp.Session)
	assert.Equal(t, "READY", resp.Status)
	assert.Equal(t, 1, resp.Conversations)
}

func TestSendAndList(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	msgs := rpc.NewMessagingServiceClient(h.conn(t, "amy"))

	open, err := msgs.OpenCrewChannel(ctx, &rpc.OpenCrewChannelRequest{CrewID: "local-46"})
	require.NoError(t, err)
	conv := open.Conversation.ID
	assert.Equal(t, "crew:local-46:general", conv)

	sent, err := msgs.SendMessage(ctx, &rpc.SendMessageRequest{ConversationID: conv, Content: "on site", Wait: true})
	require.NoError(t, err)
	require.Nil(t, sent.Failure)
	assert.Equal(t, message.StatusSent, sent.Message.Status)
	assert.NotEmpty(t, sent.Message.ID)

	list, err := msgs.ListMessages(ctx, &rpc.ListMessagesRequest{ConversationID: conv})
	require.NoError(t, err)
	require.Len(t, list.Messages, 1)
	assert.Equal(t, "on site", list.Messages[0].Content)
	assert.False(t, list.HasMore)

	found, err := msgs.SearchMessages(ctx, &rpc.SearchMessagesRequest{Query: "SITE"})
	require.NoError(t, err)
	require.Len(t, found.Results, 1)
	assert.Contains(t, found.Results[0].Snippet, "<<site>>")
}

func TestSendValidationAndAuthorization(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	amy := rpc.NewMessagingServiceClient(h.conn(t, "amy"))
	bo := rpc.NewMessagingServiceClient(h.conn(t, "bo"))

	open, err := amy.OpenCrewChannel(ctx, &rpc.OpenCrewChannelRequest{CrewID: "local-46"})
	require.NoError(t, err)

	_, err = amy.SendMessage(ctx, &rpc.SendMessageRequest{ConversationID: open.Conversation.ID, Content: "  "})
	assert.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))

	_, err = bo.SendMessage(ctx, &rpc.SendMessageRequest{ConversationID: open.Conversation.ID, Content: "hi"})
	assert.Equal(t, codes.PermissionDenied, grpcstatus.Code(err))

	_, err = amy.SendMessage(ctx, &rpc.SendMessageRequest{ConversationID: "crew:nowhere:general", Content: "hi"})
	assert.Equal(t, codes.NotFound, grpcstatus.Code(err))

	_, err = rpc.NewMessagingServiceClient(h.conn(t, "")).ListConversations(ctx, &rpc.ListConversationsRequest{})
	assert.Equal(t, codes.Unauthenticated, grpcstatus.Code(err))
}

func TestFailedSendThenRetry(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	msgs := rpc.NewMessagingServiceClient(h.conn(t, "amy"))

	h.flaky.setFailing(true)
	failed, err := msgs.SendMessage(ctx, &rpc.SendMessageRequest{ConversationID: message.GlobalConversationID, Content: "mayday", Wait: true})
	require.NoError(t, err)
	require.NotNil(t, failed.Failure)
	assert.Equal(t, message.KindTransient, failed.Failure.Kind)
	assert.Equal(t, message.StatusFailed, failed.Message.Status)

	h.flaky.setFailing(false)
	retried, err := msgs.RetryMessage(ctx, &rpc.RetryMessageRequest{
		ConversationID: message.GlobalConversationID,
		IdempotencyKey: failed.Message.IdempotencyKey,
		Wait:           true,
	})
	require.NoError(t, err)
	require.Nil(t, retried.Failure)
	assert.Equal(t, message.StatusSent, retried.Message.Status)
	assert.Equal(t, failed.Message.IdempotencyKey, retried.Message.IdempotencyKey)

	_, err = msgs.RetryMessage(ctx, &rpc.RetryMessageRequest{
		ConversationID: message.GlobalConversationID,
		IdempotencyKey: failed.Message.IdempotencyKey,
	})
	assert.Equal(t, codes.NotFound, grpcstatus.Code(err))
}

func TestWatchConversation(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	msgs := rpc.NewMessagingServiceClient(h.conn(t, "amy"))

	stream, err := msgs.WatchConversation(ctx, &rpc.WatchConversationRequest{ConversationID: message.GlobalConversationID})
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Empty(t, first.Messages)

	_, err = msgs.SendMessage(ctx, &rpc.SendMessageRequest{ConversationID: message.GlobalConversationID, Content: "copy that"})
	require.NoError(t, err)

	for {
		snap, err := stream.Recv()
		require.NoError(t, err)
		require.Nil(t, snap.Failure)
		if len(snap.Messages) == 1 && snap.Messages[0].Status == message.StatusSent {
			assert.Equal(t, "copy that", snap.Messages[0].Content)
			return
		}
	}
}

func TestInviteJoinAndMembers(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	amy := rpc.NewMessagingServiceClient(h.conn(t, "amy"))
	bo := rpc.NewMessagingServiceClient(h.conn(t, "bo"))

	_, err := amy.OpenCrewChannel(ctx, &rpc.OpenCrewChannelRequest{CrewID: "local-46"})
	require.NoError(t, err)

	invite, err := amy.CreateInvite(ctx, &rpc.CreateInviteRequest{CrewID: "local-46", TTLSeconds: 3600})
	require.NoError(t, err)
	assert.NotEmpty(t, invite.Token)

	joined, err := bo.JoinCrew(ctx, &rpc.JoinCrewRequest{InviteToken: invite.Token})
	require.NoError(t, err)
	assert.Equal(t, "crew:local-46:general", joined.Conversation.ID)

	members, err := bo.ListMembers(ctx, &rpc.ListMembersRequest{CrewID: "local-46"})
	require.NoError(t, err)
	assert.Len(t, members.Members, 2)

	dm, err := bo.OpenDirect(ctx, &rpc.OpenDirectRequest{UserID: "amy"})
	require.NoError(t, err)
	assert.Equal(t, "dm:amy:bo", dm.Conversation.ID)

	convs, err := bo.ListConversations(ctx, &rpc.ListConversationsRequest{})
	require.NoError(t, err)
	assert.Len(t, convs.Conversations, 3)
}

func TestPresence(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	conn := h.conn(t, "amy")
	_, err := rpc.NewMessagingServiceClient(conn).OpenCrewChannel(ctx, &rpc.OpenCrewChannelRequest{CrewID: "local-46"})
	require.NoError(t, err)
	pres := rpc.NewPresenceServiceClient(conn)

	_, err = rpc.NewPresenceServiceClient(h.conn(t, "bo")).SetOnlineStatus(ctx, &rpc.SetOnlineStatusRequest{CrewID: "local-46", Online: true})
	assert.Equal(t, codes.PermissionDenied, grpcstatus.Code(err))

	stream, err := pres.WatchPresence(ctx, &rpc.WatchPresenceRequest{CrewID: "local-46"})
	require.NoError(t, err)
	initial, err := stream.Recv()
	require.NoError(t, err)
	assert.Empty(t, initial.Records)

	set, err := pres.SetOnlineStatus(ctx, &rpc.SetOnlineStatusRequest{CrewID: "local-46", Online: true})
	require.NoError(t, err)
	assert.True(t, set.Record.IsOnline)

	update, err := stream.Recv()
	require.NoError(t, err)
	require.Len(t, update.Records, 1)
	assert.Equal(t, "amy", update.Records[0].UserID)

	list, err := pres.ListPresence(ctx, &rpc.ListPresenceRequest{CrewID: "local-46"})
	require.NoError(t, err)
	require.Len(t, list.Records, 1)
	assert.True(t, list.Records[0].IsOnline)
}
