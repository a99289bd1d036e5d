// Package notifications queues outbound email, tracks delivery, manages the
// unsubscribe list and keeps the in-app inbox.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/jobs"
	"github.com/roshankumar101/Portal-sub001/internal/metrics"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// Unsubscribe result messages.
const (
	MsgUnsubscribed        = "Successfully unsubscribed"
	MsgAlreadyUnsubscribed = "Email already unsubscribed"
	MsgResubscribed        = "Successfully resubscribed"
)

// Service implements the notification operations.
type Service struct {
	store   docstore.Store
	logger  *zap.Logger
	now     func() time.Time
	baseURL string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. baseURL prefixes unsubscribe links.
func NewService(store docstore.Store, baseURL string, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:   store,
		logger:  logger.Named("notifications"),
		now:     func() time.Time { return time.Now().UTC() },
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueueEmail stores a pending email with an unsubscribe footer. Recipients on the
// unsubscribe list are skipped: the result is nil with no error. Transactional
// requests bypass the list and carry no footer.
func (s *Service) QueueEmail(ctx context.Context, req types.EmailRequest) (*types.EmailNotification, error) {
	req.To = normalizeEmail(req.To)
	if err := req.Validate(); err != nil {
		return nil, apperr.FromValidator(err)
	}

	now := s.now()
	token := newToken()
	body := req.HTML
	if !req.Transactional {
		unsubscribed, err := s.IsUnsubscribed(ctx, req.To)
		if err != nil {
			return nil, err
		}
		if unsubscribed {
			s.logger.Info("skipping unsubscribed recipient", zap.String("to", req.To))
			return nil, nil
		}
		body += s.unsubscribeFooter(req.To, token)
	}

	email := types.EmailNotification{
		To:               req.To,
		StudentID:        req.StudentID,
		JobID:            req.JobID,
		Subject:          req.Subject,
		HTML:             body,
		Status:           types.EmailPending,
		UnsubscribeToken: token,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	data, err := docstore.ToData(email)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Add(ctx, types.CollEmailNotifications, data)
	if err != nil {
		return nil, fmt.Errorf("failed to queue email: %w", err)
	}
	email.ID = id
	metrics.EmailsQueued.Inc()
	return &email, nil
}

// UnsubscribeURL builds the link embedded in every email.
func (s *Service) UnsubscribeURL(email, token string) string {
	return s.baseURL + "/unsubscribe?token=" + url.QueryEscape(token) + "&email=" + url.QueryEscape(email)
}

func (s *Service) unsubscribeFooter(email, token string) string {
	link := html.EscapeString(s.UnsubscribeURL(email, token))
	return `<hr><p style="font-size:12px;color:#888">You are receiving this email from the placement portal. ` +
		`<a href="` + link + `">Unsubscribe</a></p>`
}

// NotifyEligibleStudents queues an announcement of job to every student whose CGPA
// meets its eligibility criteria. It returns the number of emails queued.
func (s *Service) NotifyEligibleStudents(ctx context.Context, job *types.Job) (int, error) {
	if job == nil {
		return 0, apperr.Invalid("job", "is required")
	}
	docs, err := s.store.Query(ctx, docstore.NewQuery(types.CollStudents))
	if err != nil {
		return 0, fmt.Errorf("failed to list students: %w", err)
	}

	subject, body := jobAnnouncement(job)
	queued := 0
	for i := range docs {
		var student types.Student
		if err := docs[i].DataTo(&student); err != nil {
			s.logger.Warn("skipping undecodable student", zap.String("student_id", docs[i].ID), zap.Error(err))
			continue
		}
		if student.Email == "" || !jobs.IsEligible(&student, job) {
			continue
		}
		email, err := s.QueueEmail(ctx, types.EmailRequest{
			To:        student.Email,
			StudentID: student.ID,
			JobID:     job.ID,
			Subject:   subject,
			HTML:      body,
		})
		if err != nil {
			s.logger.Warn("failed to queue job announcement",
				zap.String("student_id", student.ID),
				zap.String("job_id", job.ID),
				zap.Error(err))
			continue
		}
		if email != nil {
			queued++
		}
	}
	s.logger.Info("job announcement queued", zap.String("job_id", job.ID), zap.Int("emails", queued))
	return queued, nil
}

func jobAnnouncement(job *types.Job) (string, string) {
	company := ""
	if job.Company != nil {
		company = job.Company.Name
	}
	subject := "New opportunity: " + job.Title
	if company != "" {
		subject += " at " + company
	}

	var b strings.Builder
	b.WriteString("<h2>" + html.EscapeString(job.Title) + "</h2>")
	if company != "" {
		b.WriteString("<p><strong>Company:</strong> " + html.EscapeString(company) + "</p>")
	}
	if job.Location != "" {
		b.WriteString("<p><strong>Location:</strong> " + html.EscapeString(job.Location) + "</p>")
	}
	if job.Salary != "" {
		b.WriteString("<p><strong>Salary:</strong> " + html.EscapeString(job.Salary) + "</p>")
	}
	if job.DriveDate != nil {
		b.WriteString("<p><strong>Drive date:</strong> " + job.DriveDate.Format("02 Jan 2006") + "</p>")
	}
	if job.EligibilityCriteria != "" {
		b.WriteString("<p><strong>Eligibility:</strong> " + html.EscapeString(job.EligibilityCriteria) + "</p>")
	}
	b.WriteString("<p>Log in to the portal to apply.</p>")
	return subject, b.String()
}

// MarkStatus records a delivery tracking event for an email.
func (s *Service) MarkStatus(ctx context.Context, id string, status types.EmailStatus) error {
	if !status.Valid() {
		return apperr.Invalid("status", fmt.Sprintf("unknown email status %q", status))
	}
	now := s.now()
	fields := docstore.Data{"status": string(status), "updatedAt": now}
	if status == types.EmailSent {
		fields["sentAt"] = now
	}
	err := s.store.Commit(ctx, docstore.Update(types.CollEmailNotifications, id, fields))
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.NotFound("email", id)
	}
	if err != nil {
		return fmt.Errorf("failed to mark email %s: %w", id, err)
	}
	return nil
}

// GetEmail returns a queued email, or nil when it does not exist.
func (s *Service) GetEmail(ctx context.Context, id string) (*types.EmailNotification, error) {
	doc, err := s.store.Get(ctx, types.CollEmailNotifications, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	var email types.EmailNotification
	if err := doc.DataTo(&email); err != nil {
		return nil, err
	}
	return &email, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
