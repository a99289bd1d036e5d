package students

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// section describes one array of entries embedded in the student document.
type section[T any] struct {
	field string
	kind  string
	id    func(*T) *string
	owner func(*T) *string
}

var (
	educationSection = section[types.Education]{
		field: "education", kind: "education",
		id:    func(e *types.Education) *string { return &e.ID },
		owner: func(e *types.Education) *string { return &e.StudentID },
	}
	skillSection = section[types.Skill]{
		field: "skills", kind: "skill",
		id:    func(e *types.Skill) *string { return &e.ID },
		owner: func(e *types.Skill) *string { return &e.StudentID },
	}
	projectSection = section[types.Project]{
		field: "projects", kind: "project",
		id:    func(e *types.Project) *string { return &e.ID },
		owner: func(e *types.Project) *string { return &e.StudentID },
	}
	achievementSection = section[types.Achievement]{
		field: "achievements", kind: "achievement",
		id:    func(e *types.Achievement) *string { return &e.ID },
		owner: func(e *types.Achievement) *string { return &e.StudentID },
	}
)

// modifySection reads the section inside a transaction, applies fn and writes the
// whole array back.
func modifySection[T any](ctx context.Context, s *Service, studentID string, sec section[T], fn func([]T) ([]T, error)) error {
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		doc, err := tx.Get(ctx, types.CollStudents, studentID)
		if errors.Is(err, docstore.ErrNotFound) {
			return apperr.NotFound("student", studentID)
		}
		if err != nil {
			return err
		}

		var entries []T
		if raw, ok := doc.Data[sec.field]; ok && raw != nil {
			encoded, err := json.Marshal(raw)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", sec.field, err)
			}
			if err := json.Unmarshal(encoded, &entries); err != nil {
				return fmt.Errorf("failed to decode %s: %w", sec.field, err)
			}
		}

		entries, err = fn(entries)
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []T{}
		}
		tx.Stage(docstore.Update(types.CollStudents, studentID, docstore.Data{
			sec.field:   entries,
			"updatedAt": s.now(),
		}))
		return nil
	})
	if err != nil {
		var nf *apperr.NotFoundError
		if errors.As(err, &nf) {
			return err
		}
		return fmt.Errorf("failed to update %s: %w", sec.field, err)
	}
	return nil
}

func addEntry[T any](ctx context.Context, s *Service, studentID string, sec section[T], entry T) (*T, error) {
	*sec.id(&entry) = docstore.NewID()
	*sec.owner(&entry) = studentID
	err := modifySection(ctx, s, studentID, sec, func(entries []T) ([]T, error) {
		return append(entries, entry), nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("entry added", zap.String("student_id", studentID), zap.String("section", sec.field))
	return &entry, nil
}

func updateEntry[T any](ctx context.Context, s *Service, studentID string, sec section[T], entry T) error {
	id := *sec.id(&entry)
	if id == "" {
		return apperr.Invalid("id", "is required")
	}
	*sec.owner(&entry) = studentID
	return modifySection(ctx, s, studentID, sec, func(entries []T) ([]T, error) {
		for i := range entries {
			if *sec.id(&entries[i]) == id {
				entries[i] = entry
				return entries, nil
			}
		}
		return nil, apperr.NotFound(sec.kind, id)
	})
}

func removeEntry[T any](ctx context.Context, s *Service, studentID string, sec section[T], entryID string) error {
	return modifySection(ctx, s, studentID, sec, func(entries []T) ([]T, error) {
		for i := range entries {
			if *sec.id(&entries[i]) == entryID {
				return append(entries[:i], entries[i+1:]...), nil
			}
		}
		return nil, apperr.NotFound(sec.kind, entryID)
	})
}

// AddEducation appends an education entry and returns it with its new id.
func (s *Service) AddEducation(ctx context.Context, studentID string, e types.Education) (*types.Education, error) {
	if err := e.Validate(); err != nil {
		return nil, apperr.FromValidator(err)
	}
	return addEntry(ctx, s, studentID, educationSection, e)
}

// UpdateEducation replaces the education entry with e.ID.
func (s *Service) UpdateEducation(ctx context.Context, studentID string, e types.Education) error {
	if err := e.Validate(); err != nil {
		return apperr.FromValidator(err)
	}
	return updateEntry(ctx, s, studentID, educationSection, e)
}

// RemoveEducation deletes an education entry.
func (s *Service) RemoveEducation(ctx context.Context, studentID, entryID string) error {
	return removeEntry(ctx, s, studentID, educationSection, entryID)
}

// AddSkill appends a skill.
func (s *Service) AddSkill(ctx context.Context, studentID string, sk types.Skill) (*types.Skill, error) {
	if err := sk.Validate(); err != nil {
		return nil, apperr.FromValidator(err)
	}
	return addEntry(ctx, s, studentID, skillSection, sk)
}

// RemoveSkill deletes a skill.
func (s *Service) RemoveSkill(ctx context.Context, studentID, entryID string) error {
	return removeEntry(ctx, s, studentID, skillSection, entryID)
}

// AddProject appends a project. Its link is normalized like profile links.
func (s *Service) AddProject(ctx context.Context, studentID string, p types.Project) (*types.Project, error) {
	if err := p.Validate(); err != nil {
		return nil, apperr.FromValidator(err)
	}
	p.URL = NormalizeURL(p.URL)
	return addEntry(ctx, s, studentID, projectSection, p)
}

// UpdateProject replaces the project with p.ID.
func (s *Service) UpdateProject(ctx context.Context, studentID string, p types.Project) error {
	if err := p.Validate(); err != nil {
		return apperr.FromValidator(err)
	}
	p.URL = NormalizeURL(p.URL)
	return updateEntry(ctx, s, studentID, projectSection, p)
}

// RemoveProject deletes a project.
func (s *Service) RemoveProject(ctx context.Context, studentID, entryID string) error {
	return removeEntry(ctx, s, studentID, projectSection, entryID)
}

// AddAchievement appends an achievement.
func (s *Service) AddAchievement(ctx context.Context, studentID string, a types.Achievement) (*types.Achievement, error) {
	if err := a.Validate(); err != nil {
		return nil, apperr.FromValidator(err)
	}
	return addEntry(ctx, s, studentID, achievementSection, a)
}

// RemoveAchievement deletes an achievement.
func (s *Service) RemoveAchievement(ctx context.Context, studentID, entryID string) error {
	return removeEntry(ctx, s, studentID, achievementSection, entryID)
}
