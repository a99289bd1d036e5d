package server

import (
	"net/http"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/server/middleware"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// handleUnsubscribe serves the link in email footers. The address and token come
// from the query string or a form body.
func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Notifications.Unsubscribe(r.Context(), r.FormValue("email"), r.FormValue("token"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleResubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	result, err := s.svc.Notifications.Resubscribe(r.Context(), req.Email)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handleEmailEvent records a delivery tracking callback.
func (s *Server) handleEmailEvent(w http.ResponseWriter, r *http.Request) {
	var event types.EmailEvent
	if !s.decodeJSON(w, r, &event) {
		return
	}
	if err := event.Validate(); err != nil {
		s.serviceError(w, r, apperr.FromValidator(err))
		return
	}
	if err := s.svc.Notifications.MarkStatus(r.Context(), event.ID, types.EmailStatus(event.Status)); err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListNotifications returns the caller's inbox.
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	list, err := s.svc.Notifications.ListInbox(r.Context(), claims.UserID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"notifications": list,
		"unread":        unread,
	})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	if err := s.svc.Notifications.MarkRead(r.Context(), claims.UserID, r.PathValue("id")); err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
