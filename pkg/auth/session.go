package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"epicshelf/internal/util"
)

const (
	defaultIssuer   = "epicshelf"
	defaultAudience = "epicshelf-api"
)

var defaultLeeway = 30 * time.Second

// ErrInvalidToken covers expired, malformed, mis-signed and revoked tokens.
var ErrInvalidToken = errors.New("invalid session token")

// TokenRevoker is an optional capability that blocks tokens by id until
// they would have expired anyway.
type TokenRevoker interface {
	Revoke(jti string, until time.Time) error
	IsRevoked(jti string) (bool, error)
}

// SessionStore issues and validates HS256 JWT session tokens.
type SessionStore struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	audience string
	leeway   time.Duration
	revoker  TokenRevoker
}

// SessionOptions tunes claim validation. Zero values select defaults.
type SessionOptions struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// NewSessionStore builds the store. The revoker may be nil, in which case
// sign-out only discards the token client-side.
func NewSessionStore(secret string, ttl time.Duration, revoker TokenRevoker, opts SessionOptions) (*SessionStore, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	issuer := opts.Issuer
	if issuer == "" {
		issuer = defaultIssuer
	}
	audience := opts.Audience
	if audience == "" {
		audience = defaultAudience
	}
	leeway := opts.Leeway
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	return &SessionStore{
		secret:   []byte(secret),
		ttl:      ttl,
		issuer:   issuer,
		audience: audience,
		leeway:   leeway,
		revoker:  revoker,
	}, nil
}

// NewSession issues a signed token whose subject is the user id.
func (s *SessionStore) NewSession(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		ID:        util.NewID(),
		Subject:   userID,
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// UserID validates the token and returns its subject.
func (s *SessionStore) UserID(token string) (string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", err
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(claims.ID)
		if err != nil {
			return "", fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return "", ErrInvalidToken
		}
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Revoke invalidates a token for the remainder of its lifetime.
func (s *SessionStore) Revoke(token string) error {
	claims, err := s.parse(token)
	if err != nil {
		// Already unusable.
		return nil
	}
	if s.revoker == nil || claims.ID == "" {
		return nil
	}
	until := time.Now().UTC().Add(s.ttl)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return s.revoker.Revoke(claims.ID, until)
}

func (s *SessionStore) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithLeeway(s.leeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
