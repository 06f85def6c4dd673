package auth_test

import (
	"context"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/auth"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestJWTResolver_RoundTrip(t *testing.T) {
	token, err := auth.IssueToken(secret, auth.Identity{ID: "u-1", Username: "ana"}, time.Hour)
	require.NoError(t, err)

	id, err := auth.NewJWTResolver(secret).Resolve(context.Background(), token)

	require.NoError(t, err)
	assert.Equal(t, auth.Identity{ID: "u-1", Username: "ana"}, id)
}

func TestJWTResolver_Rejects(t *testing.T) {
	expired, err := auth.IssueToken(secret, auth.Identity{ID: "u-1"}, -time.Minute)
	require.NoError(t, err)
	otherKey, err := auth.IssueToken("another-secret", auth.Identity{ID: "u-1"}, time.Hour)
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{}).SignedString([]byte(secret))
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.Claims{UserID: "u-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"expired":      expired,
		"wrong secret": otherKey,
		"no user":      noUser,
		"alg none":     none,
	}
	r := auth.NewJWTResolver(secret)
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), token)
			assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", auth.BearerToken("Bearer abc"))
	assert.Equal(t, "abc", auth.BearerToken("bearer  abc "))
	assert.Equal(t, "", auth.BearerToken("Basic abc"))
	assert.Equal(t, "", auth.BearerToken("abc"))
	assert.Equal(t, "", auth.BearerToken(""))
}
