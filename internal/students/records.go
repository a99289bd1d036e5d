package students

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// RecordKind names a stand-alone record collection.
type RecordKind string

const (
	RecordSkills       RecordKind = "skills"
	RecordAchievements RecordKind = "achievements"
	RecordProjects     RecordKind = "projects"
	RecordEducation    RecordKind = "education"
)

var recordCollections = map[RecordKind]string{
	RecordSkills:       types.CollSkills,
	RecordAchievements: types.CollAchievements,
	RecordProjects:     types.CollProjects,
	RecordEducation:    types.CollEducationalBackground,
}

// ParseRecordKind validates a record kind from a request path.
func ParseRecordKind(s string) (RecordKind, error) {
	k := RecordKind(s)
	if _, ok := recordCollections[k]; !ok {
		return "", apperr.Invalid("kind", fmt.Sprintf("unknown record kind %q", s))
	}
	return k, nil
}

// CreateRecord stores a record owned by the student and returns its id.
func (s *Service) CreateRecord(ctx context.Context, kind RecordKind, studentID string, fields docstore.Data) (string, error) {
	coll, ok := recordCollections[kind]
	if !ok {
		return "", apperr.Invalid("kind", fmt.Sprintf("unknown record kind %q", kind))
	}
	if studentID == "" {
		return "", apperr.Invalid("studentId", "is required")
	}
	data := make(docstore.Data, len(fields)+2)
	for k, v := range fields {
		if k == "id" {
			continue
		}
		data[k] = v
	}
	data["studentId"] = studentID
	data["createdAt"] = s.now()

	id, err := s.store.Add(ctx, coll, data)
	if err != nil {
		return "", fmt.Errorf("failed to create %s record: %w", kind, err)
	}
	return id, nil
}

// ListRecords returns the student's records of a kind, newest first, each with its
// id under "id". A permission-denied read yields an empty list.
func (s *Service) ListRecords(ctx context.Context, kind RecordKind, studentID string) ([]docstore.Data, error) {
	coll, ok := recordCollections[kind]
	if !ok {
		return nil, apperr.Invalid("kind", fmt.Sprintf("unknown record kind %q", kind))
	}
	q := docstore.NewQuery(coll).
		Where("studentId", docstore.OpEqual, studentID).
		OrderBy("createdAt", true)
	docs, err := s.store.Query(ctx, q)
	if errors.Is(err, docstore.ErrPermissionDenied) {
		s.logger.Warn("permission denied listing records", zap.String("kind", string(kind)), zap.String("student_id", studentID))
		return []docstore.Data{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", kind, err)
	}
	out := make([]docstore.Data, 0, len(docs))
	for _, doc := range docs {
		rec := doc.Data
		rec["id"] = doc.ID
		out = append(out, rec)
	}
	return out, nil
}

// GetRecord returns a record, or nil when it does not exist.
func (s *Service) GetRecord(ctx context.Context, kind RecordKind, id string) (docstore.Data, error) {
	coll, ok := recordCollections[kind]
	if !ok {
		return nil, apperr.Invalid("kind", fmt.Sprintf("unknown record kind %q", kind))
	}
	doc, err := s.store.Get(ctx, coll, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s record: %w", kind, err)
	}
	rec := doc.Data
	rec["id"] = doc.ID
	return rec, nil
}

// DeleteRecord removes a record. Deleting a missing record is not an error.
func (s *Service) DeleteRecord(ctx context.Context, kind RecordKind, id string) error {
	coll, ok := recordCollections[kind]
	if !ok {
		return apperr.Invalid("kind", fmt.Sprintf("unknown record kind %q", kind))
	}
	if err := s.store.Commit(ctx, docstore.Delete(coll, id)); err != nil {
		return fmt.Errorf("failed to delete %s record: %w", kind, err)
	}
	return nil
}
