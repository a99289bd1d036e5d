// Package jobs manages job postings and the companies that post them.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/cache"
	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// errMissing keeps absent entities out of the cache.
var errMissing = errors.New("entity missing")

// Service implements job and company operations.
type Service struct {
	store    docstore.Store
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache serves display lookups through c.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(store docstore.Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:  store,
		logger: logger.Named("jobs"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new open job. When the job names a company that exists, its
// name and logo are embedded for display.
func (s *Service) Create(ctx context.Context, job types.Job) (*types.Job, error) {
	job.Title = strings.TrimSpace(job.Title)
	if job.Status == "" {
		job.Status = types.JobOpen
	}
	if err := job.Validate(); err != nil {
		return nil, apperr.FromValidator(err)
	}
	if job.CompanyID != "" && job.Company == nil {
		company, err := s.GetCompany(ctx, job.CompanyID)
		if err != nil {
			return nil, err
		}
		if company == nil {
			return nil, apperr.NotFound("company", job.CompanyID)
		}
		job.Company = &types.CompanySummary{ID: company.ID, Name: company.Name, Logo: company.Logo}
	}

	now := s.now()
	job.ID = docstore.NewID()
	job.CreatedAt = now
	job.UpdatedAt = now
	data, err := docstore.ToData(job)
	if err != nil {
		return nil, err
	}
	if err := s.store.Commit(ctx, docstore.Create(types.CollJobs, job.ID, data)); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	s.logger.Info("job created", zap.String("job_id", job.ID), zap.String("company_id", job.CompanyID))
	return &job, nil
}

// Get returns the job, or nil when it does not exist.
func (s *Service) Get(ctx context.Context, id string) (*types.Job, error) {
	doc, err := s.store.Get(ctx, types.CollJobs, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	var job types.Job
	if err := doc.DataTo(&job); err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns jobs matching filter, newest first.
func (s *Service) List(ctx context.Context, filter types.JobFilter) ([]types.Job, error) {
	q := docstore.NewQuery(types.CollJobs).OrderBy("createdAt", true)
	if filter.CompanyID != "" {
		q = q.Where("companyId", docstore.OpEqual, filter.CompanyID)
	}
	if filter.Status != "" {
		q = q.Where("status", docstore.OpEqual, string(filter.Status))
	}
	if filter.Limit > 0 {
		q = q.WithLimit(filter.Limit)
	}

	docs, err := s.store.Query(ctx, q)
	if errors.Is(err, docstore.ErrPermissionDenied) {
		s.logger.Warn("permission denied listing jobs")
		return []types.Job{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	jobs := make([]types.Job, 0, len(docs))
	for i := range docs {
		var job types.Job
		if err := docs[i].DataTo(&job); err != nil {
			s.logger.Warn("skipping undecodable job", zap.String("job_id", docs[i].ID), zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Update replaces the editable fields of a job. Identity, author and creation time
// are kept from the stored document.
func (s *Service) Update(ctx context.Context, id string, job types.Job) (*types.Job, error) {
	if err := job.Validate(); err != nil {
		return nil, apperr.FromValidator(err)
	}

	var updated types.Job
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		doc, err := tx.Get(ctx, types.CollJobs, id)
		if errors.Is(err, docstore.ErrNotFound) {
			return apperr.NotFound("job", id)
		}
		if err != nil {
			return err
		}
		var current types.Job
		if err := doc.DataTo(&current); err != nil {
			return err
		}

		updated = job
		updated.ID = id
		updated.PostedBy = current.PostedBy
		updated.CreatedAt = current.CreatedAt
		updated.UpdatedAt = s.now()
		if updated.Status == "" {
			updated.Status = current.Status
		}
		if updated.CompanyID == current.CompanyID && updated.Company == nil {
			updated.Company = current.Company
		}
		data, err := docstore.ToData(updated)
		if err != nil {
			return err
		}
		tx.Stage(docstore.Set(types.CollJobs, id, data))
		return nil
	})
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	s.invalidate(ctx, jobKey(id))
	return &updated, nil
}

// Close stops a job from accepting applications.
func (s *Service) Close(ctx context.Context, id string) error {
	err := s.store.Commit(ctx, docstore.Update(types.CollJobs, id, docstore.Data{
		"status":    string(types.JobClosed),
		"updatedAt": s.now(),
	}))
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.NotFound("job", id)
	}
	if err != nil {
		return fmt.Errorf("failed to close job: %w", err)
	}
	s.invalidate(ctx, jobKey(id))
	s.logger.Info("job closed", zap.String("job_id", id))
	return nil
}

// CreateCompany stores a new company.
func (s *Service) CreateCompany(ctx context.Context, company types.Company) (*types.Company, error) {
	company.Name = strings.TrimSpace(company.Name)
	if err := company.Validate(); err != nil {
		return nil, apperr.FromValidator(err)
	}
	company.ID = docstore.NewID()
	company.CreatedAt = s.now()
	data, err := docstore.ToData(company)
	if err != nil {
		return nil, err
	}
	if err := s.store.Commit(ctx, docstore.Create(types.CollCompanies, company.ID, data)); err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	return &company, nil
}

// GetCompany returns the company, or nil when it does not exist. Reads go through
// the cache when one is configured.
func (s *Service) GetCompany(ctx context.Context, id string) (*types.Company, error) {
	company, err := cache.Fetch(ctx, s.cache, companyKey(id), s.cacheTTL, func(ctx context.Context) (*types.Company, error) {
		doc, err := s.store.Get(ctx, types.CollCompanies, id)
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, errMissing
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get company: %w", err)
		}
		var c types.Company
		if err := doc.DataTo(&c); err != nil {
			return nil, err
		}
		return &c, nil
	})
	if errors.Is(err, errMissing) {
		return nil, nil
	}
	return company, err
}

// GetJob is Get served through the cache when one is configured. It backs
// application enrichment.
func (s *Service) GetJob(ctx context.Context, id string) (*types.Job, error) {
	job, err := cache.Fetch(ctx, s.cache, jobKey(id), s.cacheTTL, func(ctx context.Context) (*types.Job, error) {
		job, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, errMissing
		}
		return job, nil
	})
	if errors.Is(err, errMissing) {
		return nil, nil
	}
	return job, err
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func jobKey(id string) string     { return "job:" + id }
func companyKey(id string) string { return "company:" + id }
