// Package identity carries the authenticated user through the daemon and
// issues the signed tokens that prove it.
package identity

import (
	"context"
	"strings"
)

// Identity is the authenticated author of requests. The messaging core
// treats it as opaque read-only context.
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
}

// Valid reports whether the identity names a user.
func (id Identity) Valid() bool {
	return strings.TrimSpace(id.UID) != ""
}

// Name returns the display name, falling back to the uid.
func (id Identity) Name() string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	return id.UID
}

type contextKey struct{}

// WithIdentity returns a new context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the identity from ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && id.Valid()
}
