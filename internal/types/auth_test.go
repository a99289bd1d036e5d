//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRequest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		request RegisterRequest
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid request",
			request: RegisterRequest{
				Name:     "Priya Sharma",
				Email:    "priya@example.com",
				Password: "password123",
				Role:     RoleStudent,
			},
			wantErr: false,
		},
		{
			name: "valid request without role",
			request: RegisterRequest{
				Name:     "Priya Sharma",
				Email:    "priya@example.com",
				Password: "password123",
			},
			wantErr: false,
		},
		{
			name: "missing name",
			request: RegisterRequest{
				Email:    "priya@example.com",
				Password: "password123",
			},
			wantErr: true,
			errMsg:  "required",
		},
		{
			name: "invalid email",
			request: RegisterRequest{
				Name:     "Priya",
				Email:    "not-an-email",
				Password: "password123",
			},
			wantErr: true,
			errMsg:  "email",
		},
		{
			name: "short password",
			request: RegisterRequest{
				Name:     "Priya",
				Email:    "priya@example.com",
				Password: "short",
			},
			wantErr: true,
			errMsg:  "min",
		},
		{
			name: "unknown role",
			request: RegisterRequest{
				Name:     "Priya",
				Email:    "priya@example.com",
				Password: "password123",
				Role:     "superuser",
			},
			wantErr: true,
			errMsg:  "oneof",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoginRequest_Validation(t *testing.T) {
	assert.NoError(t, (&LoginRequest{Email: "a@example.com", Password: "x"}).Validate())
	assert.Error(t, (&LoginRequest{Email: "a@example.com"}).Validate())
	assert.Error(t, (&LoginRequest{Email: "bad", Password: "x"}).Validate())
}

func TestPasswordReset_Validation(t *testing.T) {
	assert.NoError(t, (&PasswordResetRequest{Email: "a@example.com"}).Validate())
	assert.Error(t, (&PasswordResetRequest{}).Validate())

	assert.NoError(t, (&PasswordResetConfirm{Token: "t", NewPassword: "longenough"}).Validate())
	assert.Error(t, (&PasswordResetConfirm{Token: "t", NewPassword: "short"}).Validate())
	assert.Error(t, (&PasswordResetConfirm{NewPassword: "longenough"}).Validate())
}

func TestLoginResponse_Serialization(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	resp := LoginResponse{
		User:  &User{ID: "u1", Name: "A", Email: "a@example.com", Role: RoleAdmin, CreatedAt: created},
		Token: "tok",
	}
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":{"id":"u1","name":"A","email":"a@example.com","role":"admin","created_at":"2025-01-01T00:00:00Z"},"token":"tok"}`, string(raw))
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleStudent.Valid())
	assert.True(t, RoleRecruiter.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("guest").Valid())
}
