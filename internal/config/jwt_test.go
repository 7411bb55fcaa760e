package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("rahasia")
	counterID := int64(3)

	token, err := issuer.GenerateToken(7, "Sari", "sari@loket.id", "counter", &counterID)
	require.NoError(t, err)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "counter", claims.Role)
	require.NotNil(t, claims.CounterID)
	assert.Equal(t, int64(3), *claims.CounterID)
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	token, err := NewTokenIssuer("a").GenerateToken(1, "Admin", "admin@loket.id", "super_user", nil)
	require.NoError(t, err)

	_, err = NewTokenIssuer("b").ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer("rahasia")
	issuer.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	token, err := issuer.GenerateToken(1, "Admin", "admin@loket.id", "super_user", nil)
	require.NoError(t, err)

	_, err = NewTokenIssuer("rahasia").ValidateToken(token)
	assert.Error(t, err)
}
