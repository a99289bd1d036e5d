// Package applications manages job applications and keeps each student's
// denormalized stats counters in step with application status changes.
package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/metrics"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// applicationNamespace scopes deterministic application ids.
var applicationNamespace = uuid.MustParse("6f1c2b1e-8f0a-4c55-9a4e-2f4d3c1b7a90")

// Directory resolves job and company display data. Missing entities are returned
// as nil, nil.
type Directory interface {
	GetJob(ctx context.Context, id string) (*types.Job, error)
	GetCompany(ctx context.Context, id string) (*types.Company, error)
}

// Service implements the application operations.
type Service struct {
	store  docstore.Store
	dir    Directory
	logger *zap.Logger
	now    func() time.Time

	// enrichLimit bounds concurrent directory lookups per snapshot.
	enrichLimit int
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEnrichLimit sets the number of concurrent enrichment lookups.
func WithEnrichLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.enrichLimit = n
		}
	}
}

// NewService creates a Service.
func NewService(store docstore.Store, dir Directory, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:       store,
		dir:         dir,
		logger:      logger.Named("applications"),
		now:         func() time.Time { return time.Now().UTC() },
		enrichLimit: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplicationID derives the id of the application of a student to a job. Two
// applications for the same pair always collide, which the store rejects.
func ApplicationID(studentID, jobID string) string {
	id := uuid.NewSHA1(applicationNamespace, []byte(studentID+"\x00"+jobID))
	return strings.ReplaceAll(id.String(), "-", "")
}

// ApplyToJob creates an application in the applied state and increments the
// student's applied counter in the same atomic batch. A second application for the
// same student and job fails with a DuplicateApplicationError and writes nothing.
func (s *Service) ApplyToJob(ctx context.Context, studentID, jobID, companyID string) (*types.Application, error) {
	if studentID == "" {
		return nil, apperr.Invalid("studentId", "is required")
	}
	if jobID == "" {
		return nil, apperr.Invalid("jobId", "is required")
	}

	if s.dir != nil {
		job, err := s.dir.GetJob(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
		}
		if job == nil {
			return nil, apperr.NotFound("job", jobID)
		}
		if job.Status == types.JobClosed {
			return nil, &apperr.ConflictError{Message: fmt.Sprintf("job %s is closed for applications", jobID)}
		}
		if companyID == "" {
			companyID = job.CompanyID
		}
	}

	now := s.now()
	app := &types.Application{
		ID:          ApplicationID(studentID, jobID),
		StudentID:   studentID,
		JobID:       jobID,
		CompanyID:   companyID,
		Status:      types.StatusApplied,
		AppliedDate: now,
		UpdatedAt:   now,
	}
	data, err := docstore.ToData(app)
	if err != nil {
		return nil, err
	}

	err = s.store.Commit(ctx,
		docstore.Create(types.CollApplications, app.ID, data),
		docstore.Update(types.CollStudents, studentID, docstore.Data{"updatedAt": now}).
			Increment("stats.applied", 1),
	)
	switch {
	case errors.Is(err, docstore.ErrAlreadyExists):
		metrics.DuplicateApplications.Inc()
		return nil, &apperr.DuplicateApplicationError{StudentID: studentID, JobID: jobID}
	case errors.Is(err, docstore.ErrNotFound):
		return nil, apperr.NotFound("student", studentID)
	case err != nil:
		return nil, fmt.Errorf("failed to apply to job: %w", err)
	}

	metrics.ApplicationsCreated.Inc()
	s.logger.Info("application created",
		zap.String("application_id", app.ID),
		zap.String("student_id", studentID),
		zap.String("job_id", jobID))
	return app, nil
}

// UpdateApplicationStatus moves an application to newStatus and adjusts the owning
// student's counters in one transaction: the old status bucket is decremented
// (never below zero) and the new one incremented. Applied is never decremented and
// an unchanged status leaves the counters alone. Unknown statuses are rejected
// before anything is read or written.
func (s *Service) UpdateApplicationStatus(ctx context.Context, applicationID, newStatus string, interviewDate *time.Time) (*types.Application, error) {
	status, err := types.ParseApplicationStatus(newStatus)
	if err != nil {
		return nil, apperr.Invalid("status", err.Error())
	}
	if applicationID == "" {
		return nil, apperr.Invalid("applicationId", "is required")
	}

	var updated types.Application
	var oldStatus types.ApplicationStatus
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		doc, err := tx.Get(ctx, types.CollApplications, applicationID)
		if errors.Is(err, docstore.ErrNotFound) {
			return apperr.NotFound("application", applicationID)
		}
		if err != nil {
			return err
		}
		var app types.Application
		if err := doc.DataTo(&app); err != nil {
			return err
		}
		oldStatus = app.Status

		now := s.now()
		fields := docstore.Data{"status": string(status), "updatedAt": now}
		if interviewDate != nil {
			fields["interviewDate"] = interviewDate.UTC()
			app.InterviewDate = interviewDate
		}
		writes := []docstore.Write{docstore.Update(types.CollApplications, applicationID, fields)}

		if oldStatus != status {
			studentWrite, err := counterTransition(ctx, tx, app.StudentID, oldStatus, status, now)
			if err != nil {
				return err
			}
			if studentWrite != nil {
				writes = append(writes, *studentWrite)
			}
		}

		tx.Stage(writes...)
		app.Status = status
		app.UpdatedAt = now
		updated = app
		return nil
	})
	if err != nil {
		var nf *apperr.NotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update application status: %w", err)
	}

	if oldStatus != status {
		metrics.StatusTransitions.WithLabelValues(string(oldStatus), string(status)).Inc()
	}
	s.logger.Info("application status updated",
		zap.String("application_id", applicationID),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(status)))
	return &updated, nil
}

// counterTransition builds the student update for a status change, reading the
// current counters inside tx so the zero floor is applied to the committed value.
// It returns nil when neither status maps to a counter.
func counterTransition(ctx context.Context, tx docstore.Tx, studentID string, from, to types.ApplicationStatus, now time.Time) (*docstore.Write, error) {
	dec, inc := from.StatsField(), to.StatsField()
	if dec == "" && inc == "" {
		return nil, nil
	}

	doc, err := tx.Get(ctx, types.CollStudents, studentID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.NotFound("student", studentID)
	}
	if err != nil {
		return nil, err
	}

	w := docstore.Update(types.CollStudents, studentID, docstore.Data{"updatedAt": now})
	if dec != "" && counter(doc.Data, dec) > 0 {
		w = w.Increment("stats."+dec, -1)
	}
	if inc != "" {
		w = w.Increment("stats."+inc, 1)
	}
	return &w, nil
}

// counter reads stats.<field> as an int; missing or non-numeric values count as zero.
func counter(data docstore.Data, field string) int {
	v, ok := docstore.GetPath(data, "stats."+field)
	if !ok {
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return int(f)
}

// Get returns the application, or nil when it does not exist.
func (s *Service) Get(ctx context.Context, id string) (*types.Application, error) {
	doc, err := s.store.Get(ctx, types.CollApplications, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	var app types.Application
	if err := doc.DataTo(&app); err != nil {
		return nil, err
	}
	return &app, nil
}

// ListByStudent returns the student's applications, enriched and newest first.
// A permission-denied read yields an empty list.
func (s *Service) ListByStudent(ctx context.Context, studentID string) ([]types.ApplicationView, error) {
	docs, err := s.store.Query(ctx, studentQuery(studentID))
	if errors.Is(err, docstore.ErrPermissionDenied) {
		s.logger.Warn("permission denied listing applications", zap.String("student_id", studentID))
		return []types.ApplicationView{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return s.enrich(ctx, s.decode(docs)), nil
}

// ListByJob returns every application to a job, newest first.
func (s *Service) ListByJob(ctx context.Context, jobID string) ([]types.Application, error) {
	q := docstore.NewQuery(types.CollApplications).
		Where("jobId", docstore.OpEqual, jobID).
		OrderBy("appliedDate", true)
	docs, err := s.store.Query(ctx, q)
	if errors.Is(err, docstore.ErrPermissionDenied) {
		s.logger.Warn("permission denied listing applications", zap.String("job_id", jobID))
		return []types.Application{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return s.decode(docs), nil
}

func studentQuery(studentID string) docstore.Query {
	return docstore.NewQuery(types.CollApplications).
		Where("studentId", docstore.OpEqual, studentID).
		OrderBy("appliedDate", true)
}

// decode converts documents, skipping any that do not decode.
func (s *Service) decode(docs []docstore.Document) []types.Application {
	apps := make([]types.Application, 0, len(docs))
	for i := range docs {
		var app types.Application
		if err := docs[i].DataTo(&app); err != nil {
			s.logger.Warn("skipping undecodable application", zap.String("application_id", docs[i].ID), zap.Error(err))
			continue
		}
		apps = append(apps, app)
	}
	return apps
}
