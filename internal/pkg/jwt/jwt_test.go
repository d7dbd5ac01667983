package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionToken_RoundTrip(t *testing.T) {
	svc := NewService("secret", time.Hour)

	token, exp, err := svc.GenerateSessionToken("u-1", "alice", "alice@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := svc.ValidateSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID())
	assert.Equal(t, "alice", claims.Nickname)
}

func TestSessionToken_WrongSecret(t *testing.T) {
	token, _, err := NewService("a", time.Hour).GenerateSessionToken("u-1", "alice", "")
	require.NoError(t, err)

	_, err = NewService("b", time.Hour).ValidateSessionToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionToken_Expired(t *testing.T) {
	svc := NewService("secret", -time.Minute)
	token, _, err := svc.GenerateSessionToken("u-1", "alice", "")
	require.NoError(t, err)

	_, err = svc.ValidateSessionToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestSessionToken_Garbage(t *testing.T) {
	_, err := NewService("secret", time.Hour).ValidateSessionToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
