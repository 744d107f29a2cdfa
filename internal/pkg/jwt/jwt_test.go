package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/notedex/notedex/internal/pkg/jwt"
)

func TestTokenRoundtrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := jwt.GenerateToken("user-1", secret, time.Hour)
	require.NoError(t, err)

	claims, err := jwt.ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := jwt.GenerateToken("user-1", []byte("secret-a"), time.Hour)
	require.NoError(t, err)

	_, err = jwt.ParseToken(token, []byte("secret-b"))
	require.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := jwt.GenerateToken("user-1", secret, -time.Minute)
	require.NoError(t, err)

	_, err = jwt.ParseToken(token, secret)
	require.Error(t, err)
}
