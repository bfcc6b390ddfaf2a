package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	actor := domain.Actor{ID: "s1", Role: domain.RoleStaff, Department: "it"}

	token, expires, err := tm.GenerateToken(actor)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expires, time.Minute)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, actor, claims.Actor())
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("one", 5).GenerateToken(domain.Actor{ID: "u1", Role: domain.RoleUser})
	require.NoError(t, err)

	_, err = NewTokenManager("two", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	tm.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := tm.GenerateToken(domain.Actor{ID: "u1", Role: domain.RoleUser})
	require.NoError(t, err)

	_, err = tm.ParseToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseTokenRejectsSystemRole(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, _, err := tm.GenerateToken(domain.SystemActor())
	require.NoError(t, err)

	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}
