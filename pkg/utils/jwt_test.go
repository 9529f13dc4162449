package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManagerRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "match-intel")

	token, err := m.GenerateToken("u-1", "org-1", "coach", "team-7", time.Minute)
	require.NoError(t, err)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID())
	assert.Equal(t, "org-1", claims.OrgID)
	assert.Equal(t, "coach", claims.Role)
	assert.Equal(t, "team-7", claims.TeamID)
}

func TestJWTManagerRejects(t *testing.T) {
	m := NewJWTManager("secret", "match-intel")

	expired, err := m.GenerateToken("u-1", "org-1", "coach", "", -time.Minute)
	require.NoError(t, err)
	_, err = m.ParseToken(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	other := NewJWTManager("other-secret", "match-intel")
	forged, err := other.GenerateToken("u-1", "org-1", "admin", "", time.Minute)
	require.NoError(t, err)
	_, err = m.ParseToken(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noOrg, err := m.GenerateToken("u-1", "", "admin", "", time.Minute)
	require.NoError(t, err)
	_, err = m.ParseToken(noOrg)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
