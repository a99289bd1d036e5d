package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/server/middleware"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// handleApply submits the calling student's application to a job.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	// The body is optional.
	var req types.ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	claims, _ := middleware.ClaimsFrom(r.Context())

	app, err := s.svc.Applications.ApplyToJob(r.Context(), claims.UserID, r.PathValue("id"), req.CompanyID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, app)
}

func (s *Server) handleListJobApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := s.svc.Applications.ListByJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"applications": apps,
		"count":        len(apps),
	})
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	app, err := s.svc.Applications.Get(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if app == nil || !canRead(r, app.StudentID) {
		s.serviceError(w, r, apperr.NotFound("application", id))
		return
	}
	s.jsonResponse(w, http.StatusOK, app)
}

// handleUpdateApplicationStatus moves an application through the pipeline and
// drops a note in the student's inbox.
func (s *Server) handleUpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateStatusRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.serviceError(w, r, apperr.FromValidator(err))
		return
	}

	app, err := s.svc.Applications.UpdateApplicationStatus(r.Context(), r.PathValue("id"), req.Status, req.InterviewDate)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	var title string
	if job, err := s.svc.Jobs.GetJob(r.Context(), app.JobID); err == nil && job != nil {
		title = job.Title
	}
	if _, err := s.svc.Notifications.NotifyStatusChange(r.Context(), app, title); err != nil {
		s.logger.Warn("failed to notify status change",
			zap.String("application_id", app.ID),
			zap.Error(err),
		)
	}
	s.jsonResponse(w, http.StatusOK, app)
}

func (s *Server) handleListStudentApplications(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canRead)
	if !ok {
		return
	}
	views, err := s.svc.Applications.ListByStudent(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"applications": views,
		"count":        len(views),
	})
}

// handleStreamStudentApplications pushes the student's enriched application list
// as SSE "applications" events until the client disconnects.
func (s *Server) handleStreamStudentApplications(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canRead)
	if !ok {
		return
	}
	ctx := r.Context()

	updates, err := s.svc.Applications.WatchStudentApplications(ctx, id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ticker := time.NewTicker(s.cfg.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case views, ok := <-updates:
			if !ok {
				return
			}
			if err := sse.WriteEvent("applications", views); err != nil {
				s.logger.Debug("stream closed", zap.String("student_id", id), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := sse.WriteKeepAlive(); err != nil {
				return
			}
		}
	}
}

// handleReconcileStudent recomputes a student's counters from their applications.
func (s *Server) handleReconcileStudent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	corrected, err := s.svc.Applications.ReconcileStats(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"studentId": id,
		"corrected": corrected,
	})
}
