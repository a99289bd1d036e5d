package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roshankumar101/Portal-sub001/internal/config"
	"github.com/roshankumar101/Portal-sub001/internal/server/ratelimit"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Store:  config.StoreConfig{Driver: config.DriverMemory},
		Auth: config.AuthConfig{
			JWTSecret:          "cli-test-secret-0123",
			JWTExpirationHours: 1,
			BcryptCost:         10,
			ResetTokenTTL:      time.Hour,
		},
		Email: config.EmailConfig{
			Provider:      config.EmailProviderLog,
			From:          "placements@example.com",
			PublicBaseURL: "http://localhost:8080",
			BatchSize:     10,
			MaxAttempts:   3,
		},
		Blob:      config.BlobConfig{Provider: config.BlobProviderMemory, MaxUploadMB: 1},
		Logging:   config.LoggingConfig{Level: "info", Format: "console"},
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerMinute: 60, AuthRequestsPerMinute: 5},
	}
}

func TestNewApp_Memory(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.close()

	assert.Nil(t, a.redis)
	assert.NotNil(t, a.services.Auth)
	assert.NotNil(t, a.services.Resumes)
	assert.IsType(t, &ratelimit.Limiter{}, a.newLimiter())
	require.NoError(t, a.migrate(ctx))

	sent, err := a.dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestNewApp_RedisBackedComponents(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis = config.RedisConfig{Address: mr.Addr(), CacheTTL: time.Minute}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.close()

	require.NotNil(t, a.redis)
	assert.IsType(t, &ratelimit.RedisLimiter{}, a.newLimiter())

	resp, err := a.services.Auth.RegisterWithEmail(ctx, types.RegisterRequest{
		Name: "Asha", Email: "asha@example.com", Password: "correct-horse",
	})
	require.NoError(t, err)
	claims, err := a.services.Auth.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	require.NoError(t, a.services.Auth.Logout(ctx, claims))

	var revoked bool
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, redisPrefix+":revoked:") {
			revoked = true
		}
	}
	assert.True(t, revoked, "logout should record the token in redis")
}

func TestNewApp_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""
	_, err := newApp(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Redis.Address = "127.0.0.1:1"
	_, err = newApp(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestOneShotCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
auth:
  jwt_secret: cli-test-secret-0123
logging:
  level: warn
  format: console
`), 0o600))

	for _, tt := range []struct {
		args []string
		want string
	}{
		{args: []string{"--config", path, "dispatch"}, want: "sent 0 email(s)"},
		{args: []string{"--config", path, "reconcile"}, want: "corrected 0 student(s)"},
		{args: []string{"--config", path, "migrate"}},
	} {
		t.Run(tt.args[2], func(t *testing.T) {
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetArgs(tt.args)
			require.NoError(t, rootCmd.Execute())
			assert.Contains(t, out.String(), tt.want)
		})
	}
}
