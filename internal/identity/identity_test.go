package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UID: "amy", DisplayName: "Amy"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "amy", id.UID)
	assert.Equal(t, "Amy", id.Name())

	_, ok = FromContext(WithIdentity(context.Background(), Identity{UID: "  "}))
	assert.False(t, ok, "blank uid must not count as authenticated")
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	tok, err := svc.CreateForUser(Identity{UID: "amy", DisplayName: "Amy R."})
	require.NoError(t, err)

	id, err := svc.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, Identity{UID: "amy", DisplayName: "Amy R."}, id)
}

func TestParseRejects(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	other := NewTokenService("other", time.Hour)

	forged, err := other.CreateForUser(Identity{UID: "amy"})
	require.NoError(t, err)
	_, err = svc.Parse(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := svc.CreateWithTTL(Identity{UID: "amy"}, -time.Minute)
	require.NoError(t, err)
	_, err = svc.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	invite, err := svc.CreateInvite("local-46", Identity{UID: "amy"}, time.Hour)
	require.NoError(t, err)
	_, err = svc.Parse(invite)
	assert.ErrorIs(t, err, ErrInvalidToken, "invite tokens must not authenticate")

	_, err = svc.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestInviteRoundTrip(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	tok, err := svc.CreateInvite("local-46", Identity{UID: "amy"}, 48*time.Hour)
	require.NoError(t, err)

	inv, err := svc.ParseInvite(tok)
	require.NoError(t, err)
	assert.Equal(t, "local-46", inv.CrewID)
	assert.Equal(t, "amy", inv.InvitedBy)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), inv.ExpiresAt, time.Minute)

	access, err := svc.CreateForUser(Identity{UID: "amy"})
	require.NoError(t, err)
	_, err = svc.ParseInvite(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
