package notifications

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// Inbox notification types.
const (
	TypeApplicationStatus = "application_status"
	TypeJobPosted         = "job_posted"
)

// Notify adds an unread entry to the user's inbox.
func (s *Service) Notify(ctx context.Context, userID, title, message, typ string) (*types.Notification, error) {
	if userID == "" {
		return nil, apperr.Invalid("userId", "is required")
	}
	n := types.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		CreatedAt: s.now(),
	}
	data, err := docstore.ToData(n)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Add(ctx, types.CollNotifications, data)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	n.ID = id
	return &n, nil
}

// NotifyStatusChange tells the student their application moved to a new status.
func (s *Service) NotifyStatusChange(ctx context.Context, app *types.Application, jobTitle string) (*types.Notification, error) {
	if jobTitle == "" {
		jobTitle = types.UnknownPosition
	}
	msg := fmt.Sprintf("Your application for %s is now %s.", jobTitle, app.Status)
	if app.InterviewDate != nil && app.Status == types.StatusShortlisted {
		msg += " Interview scheduled for " + app.InterviewDate.Format("02 Jan 2006 15:04") + "."
	}
	return s.Notify(ctx, app.StudentID, "Application update", msg, TypeApplicationStatus)
}

// ListInbox returns the user's notifications, newest first. A permission-denied
// read yields an empty list.
func (s *Service) ListInbox(ctx context.Context, userID string) ([]types.Notification, error) {
	q := docstore.NewQuery(types.CollNotifications).
		Where("userId", docstore.OpEqual, userID).
		OrderBy("createdAt", true)
	docs, err := s.store.Query(ctx, q)
	if errors.Is(err, docstore.ErrPermissionDenied) {
		s.logger.Warn("permission denied listing notifications", zap.String("user_id", userID))
		return []types.Notification{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	out := make([]types.Notification, 0, len(docs))
	for i := range docs {
		var n types.Notification
		if err := docs[i].DataTo(&n); err != nil {
			s.logger.Warn("skipping undecodable notification", zap.String("notification_id", docs[i].ID), zap.Error(err))
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		doc, err := tx.Get(ctx, types.CollNotifications, id)
		if errors.Is(err, docstore.ErrNotFound) {
			return apperr.NotFound("notification", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get notification: %w", err)
		}
		if owner, _ := doc.Data["userId"].(string); owner != userID {
			return &apperr.ForbiddenError{Action: "mark another user's notification read"}
		}
		tx.Stage(docstore.Update(types.CollNotifications, id, docstore.Data{"read": true}))
		return nil
	})
}
