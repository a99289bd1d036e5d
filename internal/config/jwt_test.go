package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTConfig(t *testing.T) {
	tests := []struct {
		name    string
		auth    AuthConfig
		wantErr string
	}{
		{"valid", AuthConfig{JWTSecret: "0123456789abcdef", JWTExpirationHours: 24}, ""},
		{"missing secret", AuthConfig{JWTExpirationHours: 24}, "required"},
		{"short secret", AuthConfig{JWTSecret: "short", JWTExpirationHours: 24}, "at least 16"},
		{"zero expiration", AuthConfig{JWTSecret: "0123456789abcdef"}, "at least 1 hour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewJWTConfig(tt.auth)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 24*time.Hour, cfg.Expiration())
		})
	}
}
