package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roshankumar101/Portal-sub001/internal/config"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

func TestRedisRevoker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	r := NewRedisRevoker(client, "portal")
	ctx := context.Background()

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Minute))
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.Exists("portal:revoked:jti-1"))

	mr.FastForward(2 * time.Minute)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "entries expire with the token")

	require.NoError(t, r.Revoke(ctx, "jti-2", 0))
	assert.False(t, mr.Exists("portal:revoked:jti-2"), "already expired tokens are not stored")
}

func TestMemoryRevoker(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewMemoryRevoker()
	r.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "a", time.Minute))
	revoked, _ := r.IsRevoked(ctx, "a")
	assert.True(t, revoked)

	now = now.Add(time.Minute)
	revoked, _ = r.IsRevoked(ctx, "a")
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "b", time.Minute))
	assert.NotContains(t, r.revoked, "a", "expired entries are pruned")
}

func TestJWTService(t *testing.T) {
	svc := NewJWTService(&config.JWTConfig{Secret: "test-secret-at-least-16", ExpirationHours: 1})

	token, claims, err := svc.GenerateToken("u1", types.RoleAdmin)
	require.NoError(t, err)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, types.RoleAdmin, got.Role)
	assert.Equal(t, claims.ID, got.ID)

	other := NewJWTService(&config.JWTConfig{Secret: "another-secret-of-16", ExpirationHours: 1})
	_, err = other.ValidateToken(token)
	assert.ErrorContains(t, err, "invalid token signature")

	_, err = svc.ValidateToken("")
	assert.Error(t, err)
	_, err = svc.ValidateToken("abc")
	assert.ErrorContains(t, err, "malformed token")
}
