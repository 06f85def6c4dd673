// Package auth resolves socket and HTTP credentials to an Identity.
package auth

import (
	"context"
	"fmt"
	"sparkchat/backend/internal/apperr"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "sparkchat"

// Identity is who a credential belongs to.
type Identity struct {
	ID          string `json:"id"`
	Username    string `json:"username,omitempty"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// Resolver turns a raw token into an Identity. Failures wrap
// apperr.ErrUnauthorized.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// Claims represents the JWT claims.
type Claims struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
	jwt.RegisteredClaims
}

// JWTResolver validates HS256 tokens signed with a shared secret.
type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

func (r *JWTResolver) Resolve(_ context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, fmt.Errorf("missing token: %w", apperr.ErrUnauthorized)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %v: %w", err, apperr.ErrUnauthorized)
	}
	if !parsed.Valid {
		return Identity{}, fmt.Errorf("invalid token: %w", apperr.ErrUnauthorized)
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return Identity{}, fmt.Errorf("token has no user: %w", apperr.ErrUnauthorized)
	}
	return Identity{ID: id, Username: claims.Username, IsAnonymous: claims.Anonymous}, nil
}

// IssueToken signs a token for id. It backs the admin CLI and tests; real
// clients get their tokens from the identity service.
func IssueToken(secret string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    id.ID,
		Username:  id.Username,
		Anonymous: id.IsAnonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
