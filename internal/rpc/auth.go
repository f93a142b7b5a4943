package rpc

import (
	"context"
	"slices"
	"strings"

	"github.com/matheus3301/crewchat/internal/identity"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const authorizationKey = "authorization"

// Authenticator turns a bearer token into an identity.
type Authenticator interface {
	Parse(token string) (identity.Identity, error)
}

// PublicMethods may be called without a token.
var PublicMethods = []string{SessionGetStatusMethod}

func authenticate(ctx context.Context, tokens Authenticator, method string) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	var raw string
	if vals := md.Get(authorizationKey); len(vals) > 0 {
		raw = vals[0]
	}
	token, ok := strings.CutPrefix(raw, "Bearer ")
	if !ok || token == "" {
		if slices.Contains(PublicMethods, method) {
			return ctx, nil
		}
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	id, err := tokens.Parse(token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	return identity.WithIdentity(ctx, id), nil
}

// UnaryAuth verifies the bearer token of unary calls and stores the identity
// it carries in the request context.
func UnaryAuth(tokens Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := authenticate(ctx, tokens, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuth is UnaryAuth for streaming calls.
func StreamAuth(tokens Authenticator) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authenticate(ss.Context(), tokens, info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
	}
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authedStream) Context() context.Context {
	return s.ctx
}

// TokenCredentials attaches a bearer token to every call. The daemon socket
// is local, so no transport security is required.
type TokenCredentials string

func (t TokenCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	if t == "" {
		return nil, nil
	}
	return map[string]string{authorizationKey: "Bearer " + string(t)}, nil
}

func (TokenCredentials) RequireTransportSecurity() bool {
	return false
}
