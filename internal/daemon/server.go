package daemon

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/matheus3301/crewchat/internal/api"
	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/rpc"
	"github.com/matheus3301/crewchat/internal/session"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Server manages the gRPC server lifecycle for a session daemon.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewServer creates a gRPC server bound to the session's Unix domain socket.
// Every method except the status probe requires a bearer token.
func NewServer(
	p Params,
	logger *zap.Logger,
	tokens *identity.TokenService,
	sessionSvc *api.SessionService,
	messagingSvc *api.MessagingService,
	presenceSvc *api.PresenceService,
) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = session.SocketPath(p.SessionName)
	}

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	srv := grpc.NewServer(rpc.ServerOptions(tokens)...)
	rpc.RegisterSessionServiceServer(srv, sessionSvc)
	rpc.RegisterMessagingServiceServer(srv, messagingSvc)
	rpc.RegisterPresenceServiceServer(srv, presenceSvc)

	return &Server{
		grpcServer: srv,
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins serving gRPC requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("gRPC server starting", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// Stop drains in-flight calls and removes the socket file. Watch streams
// only end when their client leaves, so once ctx is done the remaining calls
// are cut off.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("gRPC server stopping")
	drained := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		s.logger.Warn("gRPC drain timed out, closing open streams")
		s.grpcServer.Stop()
		<-drained
	}
	_ = os.Remove(s.socketPath)
}
