package server

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/server/middleware"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// parseQueryInt parses an integer query parameter with default and max values
func parseQueryInt(r *http.Request, key string, defaultValue, maxValue int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		return defaultValue
	}
	if maxValue > 0 && val > maxValue {
		return maxValue
	}
	return val
}

// handleListJobs lists jobs, newest first.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := types.JobFilter{
		CompanyID: q.Get("companyId"),
		Status:    types.JobStatus(q.Get("status")),
		Limit:     parseQueryInt(r, "limit", 50, 200),
	}
	jobs, err := s.svc.Jobs.List(r.Context(), filter)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// handleCreateJob posts a job and emails the students eligible for it.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var job types.Job
	if !s.decodeJSON(w, r, &job) {
		return
	}
	claims, _ := middleware.ClaimsFrom(r.Context())
	job.PostedBy = claims.UserID

	created, err := s.svc.Jobs.Create(r.Context(), job)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	// The job exists at this point; a failed announcement is logged, not returned.
	notified, err := s.svc.Notifications.NotifyEligibleStudents(r.Context(), created)
	if err != nil {
		s.logger.Error("failed to notify eligible students",
			zap.String("job_id", created.ID),
			zap.Error(err),
		)
	}
	s.jsonResponse(w, http.StatusCreated, map[string]any{
		"job":      created,
		"notified": notified,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.svc.Jobs.Get(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if job == nil {
		s.serviceError(w, r, apperr.NotFound("job", id))
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	var job types.Job
	if !s.decodeJSON(w, r, &job) {
		return
	}
	updated, err := s.svc.Jobs.Update(r.Context(), r.PathValue("id"), job)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, updated)
}

func (s *Server) handleCloseJob(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Jobs.Close(r.Context(), r.PathValue("id")); err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var company types.Company
	if !s.decodeJSON(w, r, &company) {
		return
	}
	created, err := s.svc.Jobs.CreateCompany(r.Context(), company)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, created)
}

// handleGetCompany retrieves a company by ID
func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	company, err := s.svc.Jobs.GetCompany(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if company == nil {
		s.serviceError(w, r, apperr.NotFound("company", id))
		return
	}
	s.jsonResponse(w, http.StatusOK, company)
}
