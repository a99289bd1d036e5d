package server

import (
	"errors"
	"net/http"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
)

// genericErrorMessage is shown for every unexpected failure.
const genericErrorMessage = "Something went wrong. Please try again."

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		notFound     *apperr.NotFoundError
		validation   *apperr.ValidationError
		unauthorized *apperr.UnauthorizedError
		forbidden    *apperr.ForbiddenError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case apperr.IsConflict(err):
		return http.StatusConflict
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage returns the client-facing message for err. Internal failures are
// not described to clients.
func ErrorMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return genericErrorMessage
	}
	return err.Error()
}
