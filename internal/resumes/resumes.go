// Package resumes stores resume builder data and uploaded resume files.
package resumes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/blob"
	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/schemas"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// ContentTypePDF is the only accepted upload type.
const ContentTypePDF = "application/pdf"

var pdfMagic = []byte("%PDF-")

// Service implements resume operations.
type Service struct {
	store     docstore.Store
	bucket    blob.Bucket
	maxUpload int64
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. maxUploadBytes <= 0 disables the size check.
func NewService(store docstore.Store, bucket blob.Bucket, maxUploadBytes int64, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:     store,
		bucket:    bucket,
		maxUpload: maxUploadBytes,
		logger:    logger.Named("resumes"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveBuilderData validates data against the resume builder schema and stores it
// under the student id, replacing any previous version.
func (s *Service) SaveBuilderData(ctx context.Context, studentID string, data json.RawMessage) (*types.ResumeBuilderData, error) {
	if studentID == "" {
		return nil, apperr.Invalid("studentId", "is required")
	}
	if err := schemas.Validate(schemas.ResumeBuilder, data); err != nil {
		var ve *schemas.ValidationError
		if errors.As(err, &ve) {
			first := ve.First()
			return nil, apperr.Invalid(first.Field, first.Message)
		}
		return nil, fmt.Errorf("failed to validate resume data: %w", err)
	}

	var content map[string]any
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, apperr.Invalid("(root)", "resume data must be a JSON object")
	}
	now := s.now()
	err := s.store.Commit(ctx, docstore.Set(types.CollResumeBuilderData, studentID, docstore.Data{
		"studentId": studentID,
		"data":      content,
		"updatedAt": now,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to save resume data: %w", err)
	}
	return &types.ResumeBuilderData{StudentID: studentID, Data: data, UpdatedAt: now}, nil
}

// GetBuilderData returns the stored builder data, or nil when none was saved.
func (s *Service) GetBuilderData(ctx context.Context, studentID string) (*types.ResumeBuilderData, error) {
	doc, err := s.store.Get(ctx, types.CollResumeBuilderData, studentID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resume data: %w", err)
	}
	var out types.ResumeBuilderData
	if err := doc.DataTo(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload stores a PDF resume for the student. A previous file stored under a
// different key is removed once the new record is written.
func (s *Service) Upload(ctx context.Context, studentID, fileName string, data []byte) (*types.Resume, error) {
	if studentID == "" {
		return nil, apperr.Invalid("studentId", "is required")
	}
	if len(data) == 0 {
		return nil, apperr.Invalid("file", "is empty")
	}
	if s.maxUpload > 0 && int64(len(data)) > s.maxUpload {
		return nil, apperr.Invalid("file", fmt.Sprintf("exceeds the %d byte limit", s.maxUpload))
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, apperr.Invalid("file", "must be a PDF")
	}

	name := sanitizeFileName(fileName)
	key := path.Join("resumes", studentID, name)

	previous, err := s.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}

	if err := s.bucket.Put(ctx, key, data, ContentTypePDF); err != nil {
		return nil, fmt.Errorf("failed to upload resume: %w", err)
	}

	resume := &types.Resume{
		StudentID:   studentID,
		FileName:    name,
		Path:        key,
		URL:         s.bucket.URL(key),
		Size:        int64(len(data)),
		ContentType: ContentTypePDF,
		UploadedAt:  s.now(),
	}
	record, err := docstore.ToData(resume)
	if err != nil {
		return nil, err
	}
	if err := s.store.Commit(ctx, docstore.Set(types.CollResumes, studentID, record)); err != nil {
		return nil, fmt.Errorf("failed to record resume: %w", err)
	}

	if previous != nil && previous.Path != key {
		if err := s.bucket.Delete(ctx, previous.Path); err != nil {
			s.logger.Warn("failed to delete replaced resume",
				zap.String("student_id", studentID),
				zap.String("path", previous.Path),
				zap.Error(err),
			)
		}
	}
	return resume, nil
}

// Get returns the student's resume record, or nil when none was uploaded.
func (s *Service) Get(ctx context.Context, studentID string) (*types.Resume, error) {
	doc, err := s.store.Get(ctx, types.CollResumes, studentID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resume: %w", err)
	}
	var out types.Resume
	if err := doc.DataTo(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download returns the resume file and its record.
func (s *Service) Download(ctx context.Context, studentID string) ([]byte, *types.Resume, error) {
	resume, err := s.Get(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	if resume == nil {
		return nil, nil, apperr.NotFound("resume", studentID)
	}
	data, err := s.bucket.Get(ctx, resume.Path)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil, apperr.NotFound("resume file", resume.Path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download resume: %w", err)
	}
	return data, resume, nil
}

// Delete removes the resume record and its file.
func (s *Service) Delete(ctx context.Context, studentID string) error {
	resume, err := s.Get(ctx, studentID)
	if err != nil {
		return err
	}
	if resume == nil {
		return apperr.NotFound("resume", studentID)
	}
	if err := s.store.Commit(ctx, docstore.Delete(types.CollResumes, studentID)); err != nil {
		return fmt.Errorf("failed to delete resume record: %w", err)
	}
	if err := s.bucket.Delete(ctx, resume.Path); err != nil {
		return fmt.Errorf("failed to delete resume file: %w", err)
	}
	return nil
}

// sanitizeFileName keeps the base name and forces a .pdf extension.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		name = "resume.pdf"
	}
	if !strings.EqualFold(path.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
