package applications

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roshankumar101/Portal-sub001/internal/metrics"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// WatchStudentApplications streams the student's applications, enriched with job and
// company display data, newest first. A fresh list is emitted after every change to
// the applications collection. Enrichment failures degrade to placeholder values and
// are never surfaced. The channel closes when ctx is done.
func (s *Service) WatchStudentApplications(ctx context.Context, studentID string) (<-chan []types.ApplicationView, error) {
	if studentID == "" {
		return nil, fmt.Errorf("student id is required")
	}
	snaps, err := s.store.Listen(ctx, studentQuery(studentID))
	if err != nil {
		return nil, fmt.Errorf("failed to watch applications: %w", err)
	}

	out := make(chan []types.ApplicationView, 1)
	metrics.ActiveStreams.Inc()
	go func() {
		defer metrics.ActiveStreams.Dec()
		defer close(out)
		for snap := range snaps {
			views := s.enrich(ctx, s.decode(snap.Docs))
			select {
			case out <- views:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// enrich joins each application with its job and company. Lookups run concurrently,
// bounded by enrichLimit, and never fail the whole result.
func (s *Service) enrich(ctx context.Context, apps []types.Application) []types.ApplicationView {
	views := make([]types.ApplicationView, len(apps))
	lookups := newLookupCache(s.dir)

	g := new(errgroup.Group)
	g.SetLimit(s.enrichLimit)
	for i := range apps {
		g.Go(func() error {
			views[i] = s.enrichOne(ctx, lookups, apps[i])
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].AppliedDate.After(views[j].AppliedDate)
	})
	return views
}

func (s *Service) enrichOne(ctx context.Context, lookups *lookupCache, app types.Application) types.ApplicationView {
	view := types.ApplicationView{
		Application: app,
		Company:     types.CompanySummary{ID: app.CompanyID, Name: types.UnknownCompany},
		Job:         types.JobSummary{ID: app.JobID, Title: types.UnknownPosition},
	}

	job, err := lookups.job(ctx, app.JobID)
	if err != nil {
		s.logger.Warn("job lookup failed", zap.String("job_id", app.JobID), zap.Error(err))
	}
	if job != nil {
		if job.Title != "" {
			view.Job.Title = job.Title
		}
		view.Job.Salary = job.Salary
		view.Job.Location = job.Location
		if job.Company != nil && job.Company.Name != "" {
			view.Company.Name = job.Company.Name
			view.Company.Logo = job.Company.Logo
			return view
		}
	}

	companyID := app.CompanyID
	if companyID == "" && job != nil {
		companyID = job.CompanyID
	}
	if companyID == "" {
		return view
	}
	view.Company.ID = companyID
	company, err := lookups.company(ctx, companyID)
	if err != nil {
		s.logger.Warn("company lookup failed", zap.String("company_id", companyID), zap.Error(err))
	}
	if company != nil && company.Name != "" {
		view.Company.Name = company.Name
		view.Company.Logo = company.Logo
	}
	return view
}
