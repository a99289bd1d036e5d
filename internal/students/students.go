// Package students manages student profiles, their embedded profile sections and
// the stand-alone record collections.
package students

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// Service implements the student operations.
type Service struct {
	store  docstore.Store
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

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
		logger: logger.Named("students"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the student, or nil when the profile does not exist.
func (s *Service) Get(ctx context.Context, id string) (*types.Student, error) {
	doc, err := s.store.Get(ctx, types.CollStudents, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	var student types.Student
	if err := doc.DataTo(&student); err != nil {
		return nil, err
	}
	return &student, nil
}

// GetStats returns the student's application counters.
func (s *Service) GetStats(ctx context.Context, id string) (*types.Stats, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, apperr.NotFound("student", id)
	}
	return &student.Stats, nil
}

// List returns students matching filter ordered by name.
func (s *Service) List(ctx context.Context, filter types.StudentFilter) ([]types.Student, error) {
	q := docstore.NewQuery(types.CollStudents).OrderBy("name", false)
	if filter.Center != "" {
		q = q.Where("center", docstore.OpEqual, filter.Center)
	}
	if filter.School != "" {
		q = q.Where("school", docstore.OpEqual, filter.School)
	}
	if filter.MinCGPA > 0 {
		q = q.Where("cgpa", docstore.OpGreaterEqual, filter.MinCGPA)
	}

	docs, err := s.store.Query(ctx, q)
	if errors.Is(err, docstore.ErrPermissionDenied) {
		s.logger.Warn("permission denied listing students")
		return []types.Student{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	students := make([]types.Student, 0, len(docs))
	for i := range docs {
		var st types.Student
		if err := docs[i].DataTo(&st); err != nil {
			s.logger.Warn("skipping undecodable student", zap.String("student_id", docs[i].ID), zap.Error(err))
			continue
		}
		students = append(students, st)
	}
	return students, nil
}

// Create stores a new profile with zeroed counters. It fails with a ConflictError
// when the id is taken.
func (s *Service) Create(ctx context.Context, student types.Student) (*types.Student, error) {
	w, err := s.CreateWrite(student)
	if err != nil {
		return nil, err
	}
	err = s.store.Commit(ctx, w)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return nil, &apperr.ConflictError{Message: fmt.Sprintf("student %s already exists", student.ID)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}
	return s.Get(ctx, student.ID)
}

// CreateWrite returns the create write for a new profile so callers can commit it
// together with other documents.
func (s *Service) CreateWrite(student types.Student) (docstore.Write, error) {
	if student.ID == "" {
		return docstore.Write{}, apperr.Invalid("id", "is required")
	}
	now := s.now()
	student.Email = normalizeEmail(student.Email)
	student.Stats = types.Stats{}
	student.CreatedAt = now
	student.UpdatedAt = now
	data, err := docstore.ToData(student)
	if err != nil {
		return docstore.Write{}, err
	}
	return docstore.Create(types.CollStudents, student.ID, data), nil
}

// UpdateProfile merges the non-nil fields of update into the profile. Emails are
// lowercased and trimmed; profile links without a scheme get https://. An email
// change moves the account's login address and its user_emails reservation in the
// same transaction.
func (s *Service) UpdateProfile(ctx context.Context, id string, update types.ProfileUpdate) (*types.Student, error) {
	normalize := func(v **string, norm func(string) string) {
		if *v == nil {
			return
		}
		val := strings.TrimSpace(**v)
		if norm != nil {
			val = norm(val)
		}
		*v = &val
	}
	normalize(&update.Name, nil)
	normalize(&update.Email, normalizeEmail)
	normalize(&update.Phone, nil)
	normalize(&update.Center, nil)
	normalize(&update.School, nil)
	normalize(&update.Bio, nil)
	normalize(&update.LinkedIn, NormalizeURL)
	normalize(&update.GitHub, NormalizeURL)
	normalize(&update.Portfolio, NormalizeURL)

	if update.Email != nil && *update.Email == "" {
		return nil, apperr.Invalid("email", "is required")
	}
	if err := update.Validate(); err != nil {
		return nil, apperr.FromValidator(err)
	}

	now := s.now()
	fields := docstore.Data{"updatedAt": now}
	setString := func(key string, v *string) {
		if v != nil {
			fields[key] = *v
		}
	}
	setString("name", update.Name)
	setString("email", update.Email)
	setString("phone", update.Phone)
	setString("center", update.Center)
	setString("school", update.School)
	setString("bio", update.Bio)
	setString("linkedin", update.LinkedIn)
	setString("github", update.GitHub)
	setString("portfolio", update.Portfolio)
	if update.CGPA != nil {
		fields["cgpa"] = *update.CGPA
	}

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		doc, err := tx.Get(ctx, types.CollStudents, id)
		if err != nil {
			return err
		}
		tx.Stage(docstore.Update(types.CollStudents, id, fields))

		if update.Email == nil {
			return nil
		}
		oldEmail, _ := doc.Data["email"].(string)
		if oldEmail == *update.Email {
			return nil
		}
		return s.moveAccountEmail(ctx, tx, id, oldEmail, *update.Email, now)
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.NotFound("student", id)
	}
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return nil, &apperr.EmailAlreadyExistsError{Email: *update.Email}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.Get(ctx, id)
}

// moveAccountEmail stages the users and user_emails writes for an email change.
// Profiles without an account only change the profile document.
func (s *Service) moveAccountEmail(ctx context.Context, tx docstore.Tx, id, oldEmail, newEmail string, now time.Time) error {
	if _, err := tx.Get(ctx, types.CollUsers, id); errors.Is(err, docstore.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}

	tx.Stage(
		docstore.Create(types.CollUserEmails, types.EmailIndexID(newEmail), docstore.Data{
			"userId": id,
			"email":  newEmail,
		}),
		docstore.Update(types.CollUsers, id, docstore.Data{
			"email":     newEmail,
			"updatedAt": now,
		}),
	)

	if oldEmail == "" {
		return nil
	}
	oldID := types.EmailIndexID(oldEmail)
	index, err := tx.Get(ctx, types.CollUserEmails, oldID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if owner, _ := index.Data["userId"].(string); owner == id {
		tx.Stage(docstore.Delete(types.CollUserEmails, oldID))
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeURL prefixes https:// when no scheme is present. Empty input stays empty.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	return "https://" + strings.TrimPrefix(raw, "//")
}
