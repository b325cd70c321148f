package security_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/security"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := security.NewTokenService("secret", time.Hour)

	token, err := svc.CreateForUser(42)
	require.NoError(t, err)

	userID, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := security.NewTokenService("secret-a", time.Hour).CreateForUser(42)
	require.NoError(t, err)

	_, err = security.NewTokenService("secret-b", time.Hour).Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	svc := security.NewTokenService("secret", -time.Minute)

	token, err := svc.CreateForUser(42)
	require.NoError(t, err)

	_, err = svc.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	svc := security.NewTokenService("secret", time.Hour)
	_, err := svc.Parse("not-a-token")
	assert.Error(t, err)
}
