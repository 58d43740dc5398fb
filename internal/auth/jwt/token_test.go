package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewManager(TokenConfig{AccessSecret: []byte("secret")})
	player := Player{ID: uuid.New(), DisplayName: "Robin", IsGuest: true}

	token, err := m.GenerateAccessToken(player)
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, player.ID, claims.PlayerID)
	assert.Equal(t, "Robin", claims.DisplayName)
	assert.True(t, claims.IsGuest)

	_, err = m.ValidateRefreshToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "access tokens are not refresh tokens")
}

func TestExpiredToken(t *testing.T) {
	m := NewManager(TokenConfig{AccessSecret: []byte("secret"), AccessTTL: time.Minute})
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := m.GenerateAccessToken(Player{ID: uuid.New()})
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestForeignSecretRejected(t *testing.T) {
	a := NewManager(TokenConfig{AccessSecret: []byte("a")})
	b := NewManager(TokenConfig{AccessSecret: []byte("b")})

	token, err := a.GenerateAccessToken(Player{ID: uuid.New()})
	require.NoError(t, err)
	_, err = b.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
