package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: apperr.NotFound("job", "j1"), want: http.StatusNotFound},
		{name: "wrapped not found", err: fmt.Errorf("failed to apply: %w", apperr.NotFound("job", "j1")), want: http.StatusNotFound},
		{name: "validation", err: apperr.Invalid("status", "unknown"), want: http.StatusBadRequest},
		{name: "duplicate application", err: &apperr.DuplicateApplicationError{StudentID: "s1", JobID: "j1"}, want: http.StatusConflict},
		{name: "email taken", err: &apperr.EmailAlreadyExistsError{Email: "a@b.c"}, want: http.StatusConflict},
		{name: "conflict", err: &apperr.ConflictError{Message: "job closed"}, want: http.StatusConflict},
		{name: "invalid credentials", err: apperr.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{name: "forbidden", err: &apperr.ForbiddenError{Action: "read"}, want: http.StatusForbidden},
		{name: "unexpected", err: errors.New("connection reset"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "job not found: j1", ErrorMessage(apperr.NotFound("job", "j1")))
	assert.Equal(t, genericErrorMessage, ErrorMessage(errors.New("pq: relation does not exist")))
}
