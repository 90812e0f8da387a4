package auth

import (
	"context"
	"testing"
	"time"

	"campusrun/internal/config"
	"campusrun/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T) *JWTProvider {
	t.Helper()
	p, err := NewJWTProvider(config.APIAuthConfig{JWTSecret: "test-secret", Issuer: "campusrun", TokenTTL: "1h"})
	require.NoError(t, err)
	return p
}

func TestIssueAndResolve(t *testing.T) {
	p := newProvider(t)

	token, err := p.Issue("student-1", models.RoleStudent)
	require.NoError(t, err)

	id, err := p.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "student-1", id.UserID)
	assert.Equal(t, models.RoleStudent, id.Role)
}

func TestResolveRejects(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	t.Run("garbage", func(t *testing.T) {
		_, err := p.Resolve(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewJWTProvider(config.APIAuthConfig{JWTSecret: "other", Issuer: "campusrun"})
		require.NoError(t, err)
		token, err := other.Issue("runner-1", models.RoleRunner)
		require.NoError(t, err)

		_, err = p.Resolve(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := p.Issue("runner-1", models.RoleRunner)
		require.NoError(t, err)

		p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { p.now = time.Now }()

		_, err = p.Resolve(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewJWTProvider(config.APIAuthConfig{JWTSecret: "test-secret", Issuer: "someone-else"})
		require.NoError(t, err)
		token, err := other.Issue("runner-1", models.RoleRunner)
		require.NoError(t, err)

		_, err = p.Resolve(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown role", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
			Role: "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "u1",
				Issuer:    "campusrun",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = p.Resolve(ctx, signed)
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
			Role:             models.RoleStudent,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "campusrun"},
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = p.Resolve(ctx, signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestIssueValidation(t *testing.T) {
	p := newProvider(t)

	_, err := p.Issue("", models.RoleStudent)
	assert.Error(t, err)

	_, err = p.Issue("u1", "admin")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = NewJWTProvider(config.APIAuthConfig{})
	assert.Error(t, err)

	_, err = NewJWTProvider(config.APIAuthConfig{JWTSecret: "x", TokenTTL: "forever"})
	assert.Error(t, err)
}
