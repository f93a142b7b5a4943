// Package crew manages crews, their channels and direct threads between
// users: everything that decides which conversations exist and who may use
// them.
package crew

import (
	"context"
	"strings"
	"time"

	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/store"
	"go.uber.org/zap"
)

// Roles stored on memberships.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// DefaultInviteTTL is used when CreateInvite is given no TTL.
const DefaultInviteTTL = 7 * 24 * time.Hour

// Store is the persistence the directory needs.
type Store interface {
	EnsureConversation(ctx context.Context, c message.Conversation) (*message.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]message.Conversation, error)
	AddMember(ctx context.Context, m message.Member) error
	IsMember(ctx context.Context, crewID, userID string) (bool, error)
	ClaimCrew(ctx context.Context, m message.Member) (bool, error)
	ListMembers(ctx context.Context, crewID string) ([]message.Member, error)
}

var _ Store = (*store.DB)(nil)

// Directory opens conversations and manages crew membership.
type Directory struct {
	store  Store
	tokens *identity.TokenService
	logger *zap.Logger
}

// NewDirectory creates a directory.
func NewDirectory(st Store, tokens *identity.TokenService, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{store: st, tokens: tokens, logger: logger}
}

// EnsureGlobal creates the global feed if it does not exist yet.
func (d *Directory) EnsureGlobal(ctx context.Context) (*message.Conversation, error) {
	return d.store.EnsureConversation(ctx, message.Conversation{
		ID:    message.GlobalConversationID,
		Kind:  message.KindGlobal,
		Title: "Global",
	})
}

// OpenCrewChannel returns the channel of crewID, creating it on first use.
// An empty channel opens #general. The first user to open a crew that has no
// members becomes its owner; everyone else must already be a member.
func (d *Directory) OpenCrewChannel(ctx context.Context, id identity.Identity, crewID, channel string) (*message.Conversation, error) {
	const op = "open crew channel"
	if channel == "" {
		channel = message.DefaultChannel
	}
	if err := message.ValidateSlug("crew", crewID); err != nil {
		return nil, err
	}
	if err := message.ValidateSlug("channel", channel); err != nil {
		return nil, err
	}
	if !id.Valid() {
		return nil, message.NotAuthorized(op, "no identity")
	}

	member, err := d.store.IsMember(ctx, crewID, id.UID)
	if err != nil {
		return nil, err
	}
	if !member {
		claimed, err := d.store.ClaimCrew(ctx, message.Member{
			CrewID:      crewID,
			UserID:      id.UID,
			DisplayName: id.Name(),
			Role:        RoleOwner,
		})
		if err != nil {
			return nil, err
		}
		if claimed {
			d.logger.Info("crew created", zap.String("crew_id", crewID), zap.String("user_id", id.UID))
		} else if member, err = d.store.IsMember(ctx, crewID, id.UID); err != nil {
			return nil, err
		} else if !member {
			return nil, message.NotAuthorized(op, "%s is not a member of crew %s", id.UID, crewID)
		}
	}

	if channel != message.DefaultChannel {
		if _, err := d.ensureChannel(ctx, crewID, message.DefaultChannel); err != nil {
			return nil, err
		}
	}
	return d.ensureChannel(ctx, crewID, channel)
}

func (d *Directory) ensureChannel(ctx context.Context, crewID, channel string) (*message.Conversation, error) {
	return d.store.EnsureConversation(ctx, message.Conversation{
		ID:     message.CrewChannelID(crewID, channel),
		Kind:   message.KindCrew,
		CrewID: crewID,
		Title:  "#" + channel,
	})
}

// OpenDirect returns the direct thread between id and otherUserID.
func (d *Directory) OpenDirect(ctx context.Context, id identity.Identity, otherUserID string) (*message.Conversation, error) {
	otherUserID = strings.TrimSpace(otherUserID)
	if !id.Valid() {
		return nil, message.NotAuthorized("open direct", "no identity")
	}
	if otherUserID == "" || strings.Contains(otherUserID, ":") {
		return nil, message.Validation("open direct", "invalid user id "+otherUserID)
	}
	if otherUserID == id.UID {
		return nil, message.Validation("open direct", "cannot open a direct thread with yourself")
	}
	return d.store.EnsureConversation(ctx, message.Conversation{
		ID:    message.DirectID(id.UID, otherUserID),
		Kind:  message.KindDirect,
		Title: otherUserID,
	})
}

// Conversations lists every conversation id can see.
func (d *Directory) Conversations(ctx context.Context, id identity.Identity) ([]message.Conversation, error) {
	if !id.Valid() {
		return nil, message.NotAuthorized("list conversations", "no identity")
	}
	return d.store.ListConversations(ctx, id.UID)
}

// CreateInvite issues a signed token that lets its holder join crewID.
func (d *Directory) CreateInvite(ctx context.Context, id identity.Identity, crewID string, ttl time.Duration) (string, time.Time, error) {
	if err := d.requireMember(ctx, "create invite", id, crewID); err != nil {
		return "", time.Time{}, err
	}
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	token, err := d.tokens.CreateInvite(crewID, id, ttl)
	if err != nil {
		return "", time.Time{}, message.E(message.KindUnknown, "create invite", err)
	}
	inv, err := d.tokens.ParseInvite(token)
	if err != nil {
		return "", time.Time{}, message.E(message.KindUnknown, "create invite", err)
	}
	return token, inv.ExpiresAt, nil
}

// Join adds id to the crew named by an invite token and returns the crew's
// #general channel.
func (d *Directory) Join(ctx context.Context, id identity.Identity, inviteToken string) (message.Member, *message.Conversation, error) {
	const op = "join crew"
	if !id.Valid() {
		return message.Member{}, nil, message.NotAuthorized(op, "no identity")
	}
	inv, err := d.tokens.ParseInvite(strings.TrimSpace(inviteToken))
	if err != nil {
		return message.Member{}, nil, message.E(message.KindNotAuthorized, op, err)
	}
	m := message.Member{
		CrewID:      inv.CrewID,
		UserID:      id.UID,
		DisplayName: id.Name(),
		Role:        RoleMember,
	}
	if err := d.store.AddMember(ctx, m); err != nil {
		return message.Member{}, nil, err
	}
	conv, err := d.ensureChannel(ctx, inv.CrewID, message.DefaultChannel)
	if err != nil {
		return message.Member{}, nil, err
	}
	d.logger.Info("crew joined",
		zap.String("crew_id", inv.CrewID), zap.String("user_id", id.UID), zap.String("invited_by", inv.InvitedBy))
	return m, conv, nil
}

// Members lists the members of crewID. Only members may list them.
func (d *Directory) Members(ctx context.Context, id identity.Identity, crewID string) ([]message.Member, error) {
	if err := d.requireMember(ctx, "list members", id, crewID); err != nil {
		return nil, err
	}
	return d.store.ListMembers(ctx, crewID)
}

// IsMember reports whether id belongs to crewID.
func (d *Directory) IsMember(ctx context.Context, id identity.Identity, crewID string) (bool, error) {
	return d.store.IsMember(ctx, crewID, id.UID)
}

func (d *Directory) requireMember(ctx context.Context, op string, id identity.Identity, crewID string) error {
	if err := message.ValidateSlug("crew", crewID); err != nil {
		return err
	}
	if !id.Valid() {
		return message.NotAuthorized(op, "no identity")
	}
	ok, err := d.store.IsMember(ctx, crewID, id.UID)
	if err != nil {
		return err
	}
	if !ok {
		return message.NotAuthorized(op, "%s is not a member of crew %s", id.UID, crewID)
	}
	return nil
}
