package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/parley/internal/store"
)

func TestTokenRoundTrip(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("s3cret"), Issuer: "parley", Audience: "parley-clients", TTL: time.Hour}

	token, err := GenerateToken(cfg, 7, store.RoleAdmin)
	require.NoError(t, err)

	claims, err := ValidateToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, int64(7), claims.UserID)
	require.Equal(t, string(store.RoleAdmin), claims.Role)
}

func TestValidateTokenRejectsExpiredAndWrongAudience(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("s3cret"), Issuer: "parley", Audience: "parley-clients", TTL: -time.Minute}

	expired, err := GenerateToken(cfg, 7, store.RoleUser)
	require.NoError(t, err)
	_, err = ValidateToken(cfg, expired)
	require.Error(t, err)

	cfg.TTL = time.Hour
	token, err := GenerateToken(cfg, 7, store.RoleUser)
	require.NoError(t, err)

	other := *cfg
	other.Audience = "someone-else"
	_, err = ValidateToken(&other, token)
	require.Error(t, err)
}
