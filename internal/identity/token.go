package identity

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token purposes.
const (
	PurposeAccess = "access"
	PurposeInvite = "invite"
)

// ErrInvalidToken is returned for malformed, expired or mis-signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// TokenService wraps JWT creation and validation.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
}

// NewTokenService creates a token service signing with secret (HS256).
func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	if expiresIn <= 0 {
		expiresIn = 24 * time.Hour
	}
	return &TokenService{
		secret:    []byte(secret),
		expiresIn: expiresIn,
		now:       time.Now,
	}
}

// GenerateSecret returns a random hex secret suitable for NewTokenService.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateForUser creates an access token for id using the default TTL.
func (t *TokenService) CreateForUser(id Identity) (string, error) {
	return t.CreateWithTTL(id, t.expiresIn)
}

// CreateWithTTL creates an access token for id with an explicit TTL.
func (t *TokenService) CreateWithTTL(id Identity, ttl time.Duration) (string, error) {
	if !id.Valid() {
		return "", fmt.Errorf("create token: empty uid")
	}
	now := t.now()
	claims := jwt.MapClaims{
		"sub":     id.UID,
		"name":    id.DisplayName,
		"purpose": PurposeAccess,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	return t.sign(claims)
}

// Invite is the content of a crew invite token.
type Invite struct {
	CrewID    string
	InvitedBy string
	ExpiresAt time.Time
}

// CreateInvite creates a token that lets its holder join crewID.
func (t *TokenService) CreateInvite(crewID string, by Identity, ttl time.Duration) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"sub":     by.UID,
		"crew":    crewID,
		"purpose": PurposeInvite,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	return t.sign(claims)
}

// ParseInvite validates an invite token.
func (t *TokenService) ParseInvite(tokenStr string) (Invite, error) {
	claims, err := t.parse(tokenStr, PurposeInvite)
	if err != nil {
		return Invite{}, err
	}
	crew, _ := claims["crew"].(string)
	if crew == "" {
		return Invite{}, fmt.Errorf("%w: missing crew", ErrInvalidToken)
	}
	by, _ := claims["sub"].(string)
	inv := Invite{CrewID: crew, InvitedBy: by}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		inv.ExpiresAt = exp.Time
	}
	return inv, nil
}

// Parse validates an access token and returns the identity it carries.
func (t *TokenService) Parse(tokenStr string) (Identity, error) {
	claims, err := t.parse(tokenStr, PurposeAccess)
	if err != nil {
		return Identity{}, err
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	return Identity{UID: sub, DisplayName: name}, nil
}

func (t *TokenService) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

func (t *TokenService) parse(tokenStr, purpose string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if p, _ := claims["purpose"].(string); p != purpose {
		return nil, fmt.Errorf("%w: wrong purpose %q", ErrInvalidToken, p)
	}
	return claims, nil
}
