package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
)

// multipartOverhead is the allowance for form boundaries and headers on top of
// the file size limit.
const multipartOverhead = 1 << 20

func (s *Server) handleGetResumeData(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canRead)
	if !ok {
		return
	}
	data, err := s.svc.Resumes.GetBuilderData(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if data == nil {
		s.serviceError(w, r, apperr.NotFound("resume data", id))
		return
	}
	s.jsonResponse(w, http.StatusOK, data)
}

// handleSaveResumeData stores the resume builder document sent as the raw body.
func (s *Server) handleSaveResumeData(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canWrite)
	if !ok {
		return
	}
	var body json.RawMessage
	if !s.decodeJSON(w, r, &body) {
		return
	}
	saved, err := s.svc.Resumes.SaveBuilderData(r.Context(), id, body)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, saved)
}

func (s *Server) handleGetResume(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canRead)
	if !ok {
		return
	}
	resume, err := s.svc.Resumes.Get(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if resume == nil {
		s.serviceError(w, r, apperr.NotFound("resume", id))
		return
	}
	s.jsonResponse(w, http.StatusOK, resume)
}

// handleUploadResume accepts a multipart form with the PDF in the "file" field.
func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canWrite)
	if !ok {
		return
	}
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.errorResponse(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "Missing file")
		return
	}
	defer file.Close()

	var reader io.Reader = file
	if s.cfg.MaxUploadBytes > 0 {
		// One byte past the limit is enough for the service to reject it.
		reader = io.LimitReader(file, s.cfg.MaxUploadBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	resume, err := s.svc.Resumes.Upload(r.Context(), id, header.Filename, data)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, resume)
}

func (s *Server) handleDeleteResume(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canWrite)
	if !ok {
		return
	}
	if err := s.svc.Resumes.Delete(r.Context(), id); err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadResume(w http.ResponseWriter, r *http.Request) {
	id, ok := s.studentFor(w, r, canRead)
	if !ok {
		return
	}
	data, resume, err := s.svc.Resumes.Download(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", resume.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+resume.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
