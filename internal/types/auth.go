package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

var emailNamespace = uuid.MustParse("6f1c2a9e-3b47-4d8a-9e05-7c4b1d2e8f90")

// EmailIndexID is the id of the user_emails document reserving a normalized email.
func EmailIndexID(email string) string {
	return strings.ReplaceAll(uuid.NewSHA1(emailNamespace, []byte(email)).String(), "-", "")
}

// Role is a user's portal role
type Role string

const (
	RoleStudent   Role = "student"
	RoleRecruiter Role = "recruiter"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleRecruiter, RoleAdmin:
		return true
	}
	return false
}

// RegisterRequest represents the request to create a new user with password authentication.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=1"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     Role   `json:"role,omitempty" validate:"omitempty,oneof=student recruiter admin"`
}

// LoginRequest represents the login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PasswordResetRequest asks for a reset email.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirm sets a new password with a reset token.
type PasswordResetConfirm struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// User represents a user profile for API responses.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginResponse represents the login/register response with user data and authentication token.
type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// Validate validates the RegisterRequest using the validator.
func (r *RegisterRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the LoginRequest using the validator.
func (r *LoginRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the PasswordResetRequest using the validator.
func (r *PasswordResetRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the PasswordResetConfirm using the validator.
func (r *PasswordResetConfirm) Validate() error {
	return validate.Struct(r)
}
