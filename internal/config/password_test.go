package config

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPasswordConfig(t *testing.T) {
	tests := []struct {
		name    string
		cost    int
		pepper  string
		wantErr bool
	}{
		{"valid cost", 12, "", false},
		{"min cost", 10, "", false},
		{"max cost", 14, "", false},
		{"cost too low", 9, "", true},
		{"cost too high", 15, "", true},
		{"with pepper", 10, "test-pepper", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewPasswordConfig(AuthConfig{BcryptCost: tt.cost, PasswordPepper: tt.pepper})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "bcrypt cost out of range")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cost, cfg.BcryptCost)
			assert.Equal(t, tt.pepper, cfg.Pepper)
		})
	}
}

func TestPasswordConfig_HashAndVerify(t *testing.T) {
	cfg := &PasswordConfig{BcryptCost: 10}

	hash, err := cfg.HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, strings.HasPrefix(hash, "$2a$10$"))

	assert.True(t, cfg.VerifyPassword("correct horse", hash))
	assert.False(t, cfg.VerifyPassword("wrong horse", hash))
}

func TestPasswordConfig_VerifyPassword_WithPepper(t *testing.T) {
	peppered := &PasswordConfig{BcryptCost: 10, Pepper: "pepper-1"}
	hash, err := peppered.HashPassword("secret123")
	require.NoError(t, err)

	assert.True(t, peppered.VerifyPassword("secret123", hash))

	// Pepper rotation invalidates existing hashes
	rotated := &PasswordConfig{BcryptCost: 10, Pepper: "pepper-2"}
	assert.False(t, rotated.VerifyPassword("secret123", hash))

	plain := &PasswordConfig{BcryptCost: 10}
	assert.False(t, plain.VerifyPassword("secret123", hash))
}

func TestPasswordConfig_SaltUniqueness(t *testing.T) {
	cfg := &PasswordConfig{BcryptCost: 10}
	h1, err := cfg.HashPassword("same")
	require.NoError(t, err)
	h2, err := cfg.HashPassword("same")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestPasswordConfig_PasswordExceeding72Bytes(t *testing.T) {
	cfg := &PasswordConfig{BcryptCost: 10}
	_, err := cfg.HashPassword(strings.Repeat("a", 100))
	assert.Error(t, err, "bcrypt rejects inputs over 72 bytes")
}

func TestPasswordConfig_ConcurrentAccess(t *testing.T) {
	cfg := &PasswordConfig{BcryptCost: 10}
	hash, err := cfg.HashPassword("shared")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, cfg.VerifyPassword("shared", hash))
		}()
	}
	wg.Wait()
}
