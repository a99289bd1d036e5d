package applications

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/metrics"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// reconcileLimit bounds concurrent students in ReconcileAll.
const reconcileLimit = 4

// ExpectedStats computes the counters implied by a student's applications.
func ExpectedStats(apps []types.Application) types.Stats {
	stats := types.Stats{Applied: len(apps)}
	for _, app := range apps {
		switch app.Status.StatsField() {
		case "shortlisted":
			stats.Shortlisted++
		case "interviewed":
			stats.Interviewed++
		case "offers":
			stats.Offers++
		}
	}
	return stats
}

// ReconcileStats recomputes a student's counters from their applications and writes
// any that drifted. It reports whether the student document was changed.
func (s *Service) ReconcileStats(ctx context.Context, studentID string) (bool, error) {
	if studentID == "" {
		return false, apperr.Invalid("studentId", "is required")
	}

	var drift map[string]int
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		drift = nil
		doc, err := tx.Get(ctx, types.CollStudents, studentID)
		if errors.Is(err, docstore.ErrNotFound) {
			return apperr.NotFound("student", studentID)
		}
		if err != nil {
			return err
		}
		docs, err := tx.Query(ctx, studentQuery(studentID))
		if err != nil {
			return err
		}
		expected := ExpectedStats(s.decode(docs))

		want := map[string]int{
			"applied":     expected.Applied,
			"shortlisted": expected.Shortlisted,
			"interviewed": expected.Interviewed,
			"offers":      expected.Offers,
		}
		fields := docstore.Data{}
		for field, n := range want {
			if v, ok := docstore.GetPath(doc.Data, "stats."+field); ok {
				if f, ok := v.(float64); ok && int(f) == n {
					continue
				}
			}
			fields["stats."+field] = n
			if drift == nil {
				drift = make(map[string]int)
			}
			drift[field] = n - counter(doc.Data, field)
		}
		if len(fields) == 0 {
			return nil
		}
		fields["updatedAt"] = s.now()
		tx.Stage(docstore.Update(types.CollStudents, studentID, fields))
		return nil
	})
	if err != nil {
		var nf *apperr.NotFoundError
		if errors.As(err, &nf) {
			return false, err
		}
		return false, fmt.Errorf("failed to reconcile stats for %s: %w", studentID, err)
	}

	for field, delta := range drift {
		metrics.StatsDriftCorrected.WithLabelValues(field).Inc()
		s.logger.Info("stats counter corrected",
			zap.String("student_id", studentID),
			zap.String("field", field),
			zap.Int("delta", delta))
	}
	return len(drift) > 0, nil
}

// ReconcileAll reconciles every student. Failures for individual students are logged
// and joined into the returned error; the remaining students are still processed.
func (s *Service) ReconcileAll(ctx context.Context) (int, error) {
	docs, err := s.store.Query(ctx, docstore.NewQuery(types.CollStudents))
	if err != nil {
		return 0, fmt.Errorf("failed to list students: %w", err)
	}

	var corrected atomic.Int64
	errs := make([]error, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileLimit)
	for i := range docs {
		id := docs[i].ID
		g.Go(func() error {
			changed, err := s.ReconcileStats(gctx, id)
			if err != nil {
				s.logger.Warn("reconcile failed", zap.String("student_id", id), zap.Error(err))
				errs[i] = err
				return nil
			}
			if changed {
				corrected.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("reconcile finished",
		zap.Int("students", len(docs)),
		zap.Int64("corrected", corrected.Load()))
	return int(corrected.Load()), errors.Join(errs...)
}

// RunReconcileLoop calls ReconcileAll every interval until ctx is done.
func (s *Service) RunReconcileLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ReconcileAll(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("periodic reconcile finished with errors", zap.Error(err))
			}
		}
	}
}
