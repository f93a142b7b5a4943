package rpc

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeSession struct{}

func (fakeSession) GetStatus(ctx context.Context, _ *GetStatusRequest) (*GetStatusResponse, error) {
	resp := &GetStatusResponse{Session: "test", Status: "READY"}
	if id, ok := identity.FromContext(ctx); ok {
		resp.User = id.UID
	}
	return resp, nil
}

type fakePresence struct{}

func (fakePresence) SetOnlineStatus(ctx context.Context, req *SetOnlineStatusRequest) (*SetOnlineStatusResponse, error) {
	id, _ := identity.FromContext(ctx)
	if req.CrewID == "" {
		return nil, Status(message.Validation("set online status", "crew id is empty"))
	}
	return &SetOnlineStatusResponse{Record: presence.Record{UserID: id.UID, CrewID: req.CrewID, IsOnline: req.Online}}, nil
}

func (fakePresence) ListPresence(context.Context, *ListPresenceRequest) (*ListPresenceResponse, error) {
	return nil, Status(message.NotFound("list presence", "no such crew"))
}

func (fakePresence) WatchPresence(req *WatchPresenceRequest, stream grpc.ServerStreamingServer[ListPresenceResponse]) error {
	id, _ := identity.FromContext(stream.Context())
	for i := range 3 {
		rec := presence.Record{UserID: id.UID, CrewID: req.CrewID, IsOnline: i%2 == 0}
		if err := stream.Send(&ListPresenceResponse{Records: []presence.Record{rec}}); err != nil {
			return err
		}
	}
	return nil
}

func startServer(t *testing.T, tokens *identity.TokenService) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "crewrpc-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socket := filepath.Join(dir, "d.sock")

	lis, err := net.Listen("unix", socket)
	require.NoError(t, err)
	srv := grpc.NewServer(ServerOptions(tokens)...)
	RegisterSessionServiceServer(srv, fakeSession{})
	RegisterPresenceServiceServer(srv, fakePresence{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return socket
}

func dial(t *testing.T, socket, token string) *grpc.ClientConn {
	t.Helper()
	conn, err := Dial(socket, token)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestPublicMethodWithoutToken(t *testing.T) {
	tokens := identity.NewTokenService("secret", time.Hour)
	conn := dial(t, startServer(t, tokens), "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := NewSessionServiceClient(conn).GetStatus(ctx, &GetStatusRequest{})
	require.NoError(t, err)
	assert.Equal(t, "READY", resp.Status)
	assert.Empty(t, resp.User)

	_, err = NewPresenceServiceClient(conn).ListPresence(ctx, &ListPresenceRequest{CrewID: "x"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestTokenCarriesIdentity(t *testing.T) {
	tokens := identity.NewTokenService("secret", time.Hour)
	token, err := tokens.CreateForUser(identity.Identity{UID: "amy"})
	require.NoError(t, err)
	conn := dial(t, startServer(t, tokens), token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := NewSessionServiceClient(conn).GetStatus(ctx, &GetStatusRequest{})
	require.NoError(t, err)
	assert.Equal(t, "amy", resp.User)

	set, err := NewPresenceServiceClient(conn).SetOnlineStatus(ctx, &SetOnlineStatusRequest{CrewID: "local-46", Online: true})
	require.NoError(t, err)
	assert.Equal(t, "amy", set.Record.UserID)
	assert.True(t, set.Record.IsOnline)
}

func TestBadTokenRejected(t *testing.T) {
	tokens := identity.NewTokenService("secret", time.Hour)
	other := identity.NewTokenService("other-secret", time.Hour)
	token, err := other.CreateForUser(identity.Identity{UID: "amy"})
	require.NoError(t, err)
	conn := dial(t, startServer(t, tokens), token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = NewSessionServiceClient(conn).GetStatus(ctx, &GetStatusRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.ErrorIs(t, FromStatus(err), message.ErrNotAuthorized)
}

func TestErrorKindsSurviveTheWire(t *testing.T) {
	tokens := identity.NewTokenService("secret", time.Hour)
	token, _ := tokens.CreateForUser(identity.Identity{UID: "amy"})
	conn := dial(t, startServer(t, tokens), token)
	client := NewPresenceServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.SetOnlineStatus(ctx, &SetOnlineStatusRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.ErrorIs(t, FromStatus(err), message.ErrValidation)

	_, err = client.ListPresence(ctx, &ListPresenceRequest{CrewID: "x"})
	assert.ErrorIs(t, FromStatus(err), message.ErrNotFound)
}

func TestServerStream(t *testing.T) {
	tokens := identity.NewTokenService("secret", time.Hour)
	token, _ := tokens.CreateForUser(identity.Identity{UID: "bo"})
	conn := dial(t, startServer(t, tokens), token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := NewPresenceServiceClient(conn).WatchPresence(ctx, &WatchPresenceRequest{CrewID: "local-46"})
	require.NoError(t, err)

	var online []bool
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.Len(t, resp.Records, 1)
		assert.Equal(t, "bo", resp.Records[0].UserID)
		online = append(online, resp.Records[0].IsOnline)
	}
	assert.Equal(t, []bool{true, false, true}, online)
}

func TestFailureRoundTrip(t *testing.T) {
	assert.Nil(t, NewFailure(nil))
	assert.NoError(t, (*Failure)(nil).Err())

	f := NewFailure(message.E(message.KindTransient, "insert", errors.New("database is locked")))
	assert.Equal(t, message.KindTransient, f.Kind)
	assert.ErrorIs(t, f.Err(), message.ErrTransient)
	assert.Contains(t, f.Err().Error(), "database is locked")
}

func TestCodeMapping(t *testing.T) {
	for _, kind := range []message.ErrorKind{
		message.KindValidation, message.KindNotAuthorized, message.KindNotFound, message.KindTransient, message.KindUnknown,
	} {
		assert.Equal(t, kind, KindOf(Code(kind)), "kind %s", kind)
	}
	assert.Equal(t, codes.Unknown, Code(message.KindUnknown))
	assert.Equal(t, codes.Unknown, status.Code(Status(errors.New("boom"))))
}
