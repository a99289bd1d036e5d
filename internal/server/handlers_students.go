package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/server/middleware"
	"github.com/roshankumar101/Portal-sub001/internal/students"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// canRead reports whether the caller may read the student's data: the student
// themself or staff.
func canRead(r *http.Request, studentID string) bool {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		return false
	}
	return claims.UserID == studentID || claims.Role == types.RoleAdmin || claims.Role == types.RoleRecruiter
}

// canWrite reports whether the caller may modify the student's data.
func canWrite(r *http.Request, studentID string) bool {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		return false
	}
	return claims.UserID == studentID || claims.Role == types.RoleAdmin
}

// studentFor returns the path student id when the caller passes check, writing
// 403 otherwise.
func (s *Server) studentFor(w http.ResponseWriter, r *http.Request, check func(*http.Request, string) bool) (string, bool) {
	id := r.PathValue("id")
	if !check(r, id) {
		s.errorResponse(w, http.StatusForbidden, "forbidden")
		return "", false
	}
	return id, true
}

// handleListStudents lists student profiles with optional filters.
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := types.StudentFilter{
		Center: q.Get("center"),
		School: q.Get("school"),
	}
	if v := q.Get("minCgpa"); v != "" {
		cgpa, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid minCgpa")
			return
		}
		filter.MinCGPA = cgpa
	}
	list, err := s.svc.Students.List(r.Context(), filter)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"students": list,
		"count":    len(list),
	})
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canRead)
	if !ok {
		return
	}
	student, err := s.svc.Students.Get(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, student)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canWrite)
	if !ok {
		return
	}
	var update types.ProfileUpdate
	if !s.decodeJSON(w, r, &update) {
		return
	}
	student, err := s.svc.Students.UpdateProfile(r.Context(), id, update)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, student)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canRead)
	if !ok {
		return
	}
	stats, err := s.svc.Students.GetStats(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

// decodeEntry decodes a section entry body into T.
func decodeEntry[T any](s *Server, w http.ResponseWriter, r *http.Request) (T, bool) {
	var entry T
	ok := s.decodeJSON(w, r, &entry)
	return entry, ok
}

// handleAddSectionEntry appends an entry to an embedded profile section.
func (s *Server) handleAddSectionEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canWrite)
	if !ok {
		return
	}
	ctx := r.Context()

	var (
		out any
		err error
	)
	switch r.PathValue("section") {
	case "education":
		e, ok := decodeEntry[types.Education](s, w, r)
		if !ok {
			return
		}
		out, err = s.svc.Students.AddEducation(ctx, id, e)
	case "skills":
		e, ok := decodeEntry[types.Skill](s, w, r)
		if !ok {
			return
		}
		out, err = s.svc.Students.AddSkill(ctx, id, e)
	case "projects":
		e, ok := decodeEntry[types.Project](s, w, r)
		if !ok {
			return
		}
		out, err = s.svc.Students.AddProject(ctx, id, e)
	case "achievements":
		e, ok := decodeEntry[types.Achievement](s, w, r)
		if !ok {
			return
		}
		out, err = s.svc.Students.AddAchievement(ctx, id, e)
	default:
		s.errorResponse(w, http.StatusNotFound, "Unknown section")
		return
	}
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, out)
}

// handleUpdateSectionEntry replaces an entry. Only education and projects are
// editable; other sections are add and remove only.
func (s *Server) handleUpdateSectionEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canWrite)
	if !ok {
		return
	}
	ctx := r.Context()
	entryID := r.PathValue("entryId")

	var err error
	switch r.PathValue("section") {
	case "education":
		e, ok := decodeEntry[types.Education](s, w, r)
		if !ok {
			return
		}
		e.ID = entryID
		err = s.svc.Students.UpdateEducation(ctx, id, e)
	case "projects":
		e, ok := decodeEntry[types.Project](s, w, r)
		if !ok {
			return
		}
		e.ID = entryID
		err = s.svc.Students.UpdateProject(ctx, id, e)
	case "skills", "achievements":
		s.errorResponse(w, http.StatusMethodNotAllowed, "Section entries cannot be edited")
		return
	default:
		s.errorResponse(w, http.StatusNotFound, "Unknown section")
		return
	}
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveSectionEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canWrite)
	if !ok {
		return
	}
	ctx := r.Context()
	entryID := r.PathValue("entryId")

	var err error
	switch r.PathValue("section") {
	case "education":
		err = s.svc.Students.RemoveEducation(ctx, id, entryID)
	case "skills":
		err = s.svc.Students.RemoveSkill(ctx, id, entryID)
	case "projects":
		err = s.svc.Students.RemoveProject(ctx, id, entryID)
	case "achievements":
		err = s.svc.Students.RemoveAchievement(ctx, id, entryID)
	default:
		s.errorResponse(w, http.StatusNotFound, "Unknown section")
		return
	}
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canRead)
	if !ok {
		return
	}
	kind, err := students.ParseRecordKind(r.PathValue("kind"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	records, err := s.svc.Students.ListRecords(r.Context(), kind, id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canWrite)
	if !ok {
		return
	}
	kind, err := students.ParseRecordKind(r.PathValue("kind"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	var fields docstore.Data
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || fields == nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	recordID, err := s.svc.Students.CreateRecord(r.Context(), kind, id, fields)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, map[string]string{"id": recordID})
}

// handleDeleteRecord deletes a stand-alone record after checking its owner.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	kind, err := students.ParseRecordKind(r.PathValue("kind"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	id := r.PathValue("id")
	record, err := s.svc.Students.GetRecord(r.Context(), kind, id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if record == nil {
		s.serviceError(w, r, apperr.NotFound(string(kind), id))
		return
	}
	owner, _ := record["studentId"].(string)
	if !canWrite(r, owner) {
		s.errorResponse(w, http.StatusForbidden, "forbidden")
		return
	}
	if err := s.svc.Students.DeleteRecord(r.Context(), kind, id); err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
