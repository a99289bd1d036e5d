package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("failed to apply: %w", &DuplicateApplicationError{StudentID: "s", JobID: "j"})
	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))

	assert.True(t, IsNotFound(fmt.Errorf("x: %w", NotFound("job", "j1"))))
	assert.True(t, IsValidation(Invalid("status", "unknown")))
	assert.True(t, IsConflict(&EmailAlreadyExistsError{Email: "a@b.c"}))
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "job not found: j1", NotFound("job", "j1").Error())
	assert.Equal(t, "validation error: status - unknown", Invalid("status", "unknown").Error())
	assert.Equal(t, "unauthorized", (&UnauthorizedError{}).Error())
	assert.Equal(t, "invalid email or password", ErrInvalidCredentials.Error())
}

func TestFromValidator(t *testing.T) {
	type req struct {
		Email string `validate:"required,email"`
	}
	err := FromValidator(validator.New().Struct(req{Email: "nope"}))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "Email", ve.Field)
	assert.Equal(t, "email", ve.Message)

	plain := errors.New("boom")
	assert.Equal(t, plain, FromValidator(plain))
	assert.NoError(t, FromValidator(nil))
}
