// Package tokens implements the signed, expiring bearer tokens used by
// invitation and password-reset flows. A token is the only state of the
// flow it drives: validity is fully determined by its signature, its
// expiry and a uniqueness check against durable user records performed
// by the caller.
package tokens

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "buildly-core"

// Purposes are part of the signed claim set and checked explicitly, so
// a token minted for one flow cannot be replayed in another.
const (
	PurposeInvite      = "invite"
	PurposeEventInvite = "event-invite"
	PurposeReset       = "reset"
)

// The three normalized rejection kinds. Decode failures collapse to
// ErrInvalid regardless of the underlying cause so callers cannot probe
// which part of validation failed.
var (
	ErrExpired     = errors.New("tokens: token is expired")
	ErrInvalid     = errors.New("tokens: token is not valid")
	ErrAlreadyUsed = errors.New("tokens: token has been used")
)

const (
	defaultInviteTTL = 24 * time.Hour
	defaultResetTTL  = 72 * time.Hour
)

// Claims is the claim set embedded in invitation and event-invitation
// tokens.
type Claims struct {
	Email            string `json:"email"`
	OrganizationUUID string `json:"org_uuid,omitempty"`
	OrganizationName string `json:"organization,omitempty"`
	RoomUUID         string `json:"room_uuid,omitempty"`
	EventUUID        string `json:"event_uuid,omitempty"`
	Purpose          string `json:"purpose"`
	jwt.RegisteredClaims
}

// Signer mints and validates tokens with one process-wide symmetric
// secret (HS256).
type Signer struct {
	secret    []byte
	now       func() time.Time
	inviteTTL time.Duration
	resetTTL  time.Duration
}

// SignerOption configures Signer behavior.
type SignerOption func(*Signer)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) SignerOption {
	return func(s *Signer) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithInviteTTL configures invitation token lifetime.
func WithInviteTTL(ttl time.Duration) SignerOption {
	return func(s *Signer) {
		if ttl > 0 {
			s.inviteTTL = ttl
		}
	}
}

// WithResetTTL configures reset token lifetime.
func WithResetTTL(ttl time.Duration) SignerOption {
	return func(s *Signer) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// NewSigner constructs a Signer.
func NewSigner(secret string, opts ...SignerOption) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token secret is not configured")
	}
	s := &Signer{
		secret:    []byte(secret),
		now:       time.Now,
		inviteTTL: defaultInviteTTL,
		resetTTL:  defaultResetTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MintInvitation issues a token binding an e-mail address to the
// inviting organization, so a redeeming signup lands in that tenant.
func (s *Signer) MintInvitation(email, orgUUID string) (string, error) {
	return s.mint(Claims{
		Email:            strings.TrimSpace(strings.ToLower(email)),
		OrganizationUUID: orgUUID,
		Purpose:          PurposeInvite,
	}, s.inviteTTL)
}

// MintEventInvitation issues a token additionally binding room and
// event identifiers.
func (s *Signer) MintEventInvitation(email, orgName, roomUUID, eventUUID string) (string, error) {
	return s.mint(Claims{
		Email:            strings.TrimSpace(strings.ToLower(email)),
		OrganizationName: orgName,
		RoomUUID:         roomUUID,
		EventUUID:        eventUUID,
		Purpose:          PurposeEventInvite,
	}, s.inviteTTL)
}

func (s *Signer) mint(claims Claims, ttl time.Duration) (string, error) {
	if claims.Email == "" {
		return "", errors.New("email is required")
	}
	now := s.now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Validate verifies signature, expiry and the claim set, and checks the
// token was minted for the given purpose. Rejections are one of
// ErrExpired or ErrInvalid and nothing else.
func (s *Signer) Validate(raw, purpose string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalid
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.Issuer != issuer || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrInvalid
	}
	if claims.Email == "" || claims.Purpose != purpose {
		return nil, ErrInvalid
	}
	return claims, nil
}
