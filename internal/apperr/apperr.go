// Package apperr defines the typed errors returned by portal services.
package apperr

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// NotFoundError indicates the requested entity does not exist
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ValidationError indicates request validation failure
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ConflictError indicates the write collides with existing state
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// DuplicateApplicationError indicates the student already applied to the job
type DuplicateApplicationError struct {
	StudentID string
	JobID     string
}

func (e *DuplicateApplicationError) Error() string {
	return fmt.Sprintf("duplicate application: student %s already applied to job %s", e.StudentID, e.JobID)
}

// EmailAlreadyExistsError indicates email is already registered
type EmailAlreadyExistsError struct {
	Email string
}

func (e *EmailAlreadyExistsError) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}

// UnauthorizedError indicates missing or invalid credentials
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return e.Message
}

// ErrInvalidCredentials is returned by login for an unknown email or a wrong password.
var ErrInvalidCredentials = &UnauthorizedError{Message: "invalid email or password"}

// ForbiddenError indicates the caller may not perform the action
type ForbiddenError struct {
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// NotFound builds a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// FromValidator converts a validator failure into a ValidationError naming the first
// failing field. Other errors are returned unchanged.
func FromValidator(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ValidationError{Field: verrs[0].Field(), Message: verrs[0].Tag()}
	}
	return err
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a conflict of any kind.
func IsConflict(err error) bool {
	var conflict *ConflictError
	var dup *DuplicateApplicationError
	var email *EmailAlreadyExistsError
	return errors.As(err, &conflict) || errors.As(err, &dup) || errors.As(err, &email)
}
