package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"
)

var (
	errMissingToken = errors.New("missing authorization")
	errRevoked      = errors.New("session has been logged out")
)

// Session is the per-request authentication state. The zero value is anonymous.
type Session struct {
	Authenticated bool
	Username      string
	Role          string
	TokenID       string
	ExpiresAt     time.Time
}

// Anonymous returns the unauthenticated session.
func Anonymous() Session {
	return Session{}
}

type sessionKey struct{}

// WithSession stores the session in context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom retrieves the session from context, anonymous if none was set.
func SessionFrom(ctx context.Context) Session {
	s, _ := ctx.Value(sessionKey{}).(Session)
	return s
}

type sessionClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 session tokens and remembers logged-out ones.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // token id -> expiry
}

// NewTokenIssuer returns an issuer whose tokens live for ttl.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	return &TokenIssuer{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}, nil
}

// Issue signs a token for an authenticated user and returns it with the matching session.
func (i *TokenIssuer) Issue(username, role string) (string, Session, error) {
	now := i.now()
	s := Session{
		Authenticated: true,
		Username:      username,
		Role:          role,
		TokenID:       uuid.NewString(),
		ExpiresAt:     now.Add(i.ttl).Truncate(time.Second),
	}
	claims := sessionClaims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.TokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return tok, s, nil
}

// Parse validates a token string and returns the session it carries.
func (i *TokenIssuer) Parse(tokenStr string) (Session, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return Session{}, err
	}
	c, _ := tok.Claims.(*sessionClaims)
	if c == nil || c.Username == "" || c.Role == "" || c.ID == "" {
		return Session{}, errors.New("invalid claims")
	}
	if i.isRevoked(c.ID) {
		return Session{}, errRevoked
	}
	return Session{
		Authenticated: true,
		Username:      c.Username,
		Role:          c.Role,
		TokenID:       c.ID,
		ExpiresAt:     c.ExpiresAt.Time,
	}, nil
}

// Revoke invalidates the token behind s until it would have expired anyway.
func (i *TokenIssuer) Revoke(s Session) {
	if s.TokenID == "" {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	now := i.now()
	for id, exp := range i.revoked {
		if !exp.After(now) {
			delete(i.revoked, id)
		}
	}
	i.revoked[s.TokenID] = s.ExpiresAt
}

func (i *TokenIssuer) isRevoked(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.revoked[id]
	return ok
}

// ParseFromMD extracts and validates a Bearer token from gRPC metadata.
func ParseFromMD(ctx context.Context, issuer *TokenIssuer) (Session, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return Session{}, errMissingToken
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return Session{}, errMissingToken
	}
	parts := strings.SplitN(vals[0], " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Session{}, errors.New("invalid authorization header")
	}
	return issuer.Parse(strings.TrimSpace(parts[1]))
}
