package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/server/middleware"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// handleRegister creates an account and returns a session token.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	// Admin accounts are provisioned out of band.
	if req.Role == types.RoleAdmin {
		s.serviceError(w, r, &apperr.ForbiddenError{Action: "self-register as admin"})
		return
	}
	resp, err := s.svc.Auth.RegisterWithEmail(r.Context(), req)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, resp)
}

// handleLogin exchanges credentials for a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.svc.Auth.Login(r.Context(), req)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleLogout revokes the presented token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	if err := s.svc.Auth.Logout(r.Context(), claims); err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	user, err := s.svc.Auth.GetUser(r.Context(), claims.UserID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, user)
}

// handleRequestPasswordReset always answers 202 so callers cannot tell which
// addresses have accounts.
func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req types.PasswordResetRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.svc.Auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		if HTTPStatus(err) == http.StatusBadRequest {
			s.serviceError(w, r, err)
			return
		}
		s.logger.Error("password reset request failed", zap.Error(err))
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"message": "If an account exists for that email, a reset link has been sent.",
	})
}

func (s *Server) handleConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req types.PasswordResetConfirm
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.svc.Auth.ConfirmPasswordReset(r.Context(), req); err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Password updated"})
}
