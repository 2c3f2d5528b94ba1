package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
)

// TokenTTL is the lifetime of every issued bearer token.
const TokenTTL = time.Hour

var (
	// ErrSigningSecretMissing means no JWT secret is configured. It is a server
	// fault, not an authentication failure.
	ErrSigningSecretMissing = errors.New("token signing secret is not configured")

	// ErrTokenExpired is returned for a well-signed token past its exp claim.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMalformed is returned when the token cannot be decoded.
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenInvalid covers bad signatures, foreign secrets, algorithm
	// substitution and missing required claims.
	ErrTokenInvalid = errors.New("token invalid")
)

// signingMethod is the only algorithm accepted by VerifyClaims.
var signingMethod = jwt.SigningMethodHS256

// Claims is the verified payload of a bearer token.
type Claims struct {
	UserID  string `json:"userId"`
	BadgeID string `json:"badgeId"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into the request identity.
func (c *Claims) Identity() Identity {
	return Identity{UserID: c.UserID, BadgeID: c.BadgeID, IsAdmin: c.IsAdmin}
}

// UnverifiedClaims is what PeekClaims decodes. It deliberately has no
// conversion to Identity.
type UnverifiedClaims struct {
	UserID    string     `mapstructure:"userId"`
	BadgeID   string     `mapstructure:"badgeId"`
	IsAdmin   bool       `mapstructure:"isAdmin"`
	IssuedAt  *time.Time `mapstructure:"-"`
	ExpiresAt *time.Time `mapstructure:"-"`
}

// TokenService issues and verifies HS256 bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for iat, exp and validation.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService creates a token service. An empty secret is accepted here so
// the server can report the fault per request; Issue and VerifyClaims then
// return ErrSigningSecretMissing.
func NewTokenService(secret string, opts ...TokenOption) *TokenService {
	s := &TokenService{
		secret: []byte(strings.TrimSpace(secret)),
		ttl:    TokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a token carrying the identity with iat and exp claims.
func (s *TokenService) Issue(identity Identity) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrSigningSecretMissing
	}

	now := s.now()
	claims := Claims{
		UserID:  identity.UserID,
		BadgeID: identity.BadgeID,
		IsAdmin: identity.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyClaims checks the signature with the pinned algorithm and the expiry.
// This is the only path that may feed authorization decisions.
func (s *TokenService) VerifyClaims(tokenString string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ErrSigningSecretMissing
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
		}
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId claim", ErrTokenInvalid)
	}
	return claims, nil
}

// PeekClaims decodes a token's payload WITHOUT checking its signature or expiry.
// Use it for display and diagnostics only; never for access decisions.
func PeekClaims(tokenString string) (*UnverifiedClaims, error) {
	raw := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	peeked := &UnverifiedClaims{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           peeked,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create claims decoder: %w", err)
	}
	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %w", ErrTokenMalformed, err)
	}

	if iat, err := raw.GetIssuedAt(); err == nil && iat != nil {
		t := iat.Time
		peeked.IssuedAt = &t
	}
	if exp, err := raw.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		peeked.ExpiresAt = &t
	}
	return peeked, nil
}
