package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// unsubscribeNamespace scopes the per-email unsubscribe record id.
var unsubscribeNamespace = uuid.MustParse("0b7d4f3c-5a61-4e2b-8c9d-1e2f3a4b5c6d")

func unsubscribeID(email string) string {
	return strings.ReplaceAll(uuid.NewSHA1(unsubscribeNamespace, []byte(email)).String(), "-", "")
}

func unsubscribedQuery(email string) docstore.Query {
	return docstore.NewQuery(types.CollUnsubscribedUsers).Where("email", docstore.OpEqual, email)
}

// Unsubscribe adds email to the unsubscribe list. Repeat calls succeed with an
// "already unsubscribed" message and never add a second record. The token is kept
// for audit only.
func (s *Service) Unsubscribe(ctx context.Context, email, token string) (*types.UnsubscribeResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.Invalid("email", "is required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, apperr.Invalid("token", "is required")
	}

	existing, err := s.store.Query(ctx, unsubscribedQuery(email).WithLimit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to check unsubscribe list: %w", err)
	}
	if len(existing) > 0 {
		return &types.UnsubscribeResult{Success: true, Message: MsgAlreadyUnsubscribed}, nil
	}

	data, err := docstore.ToData(types.UnsubscribedUser{Email: email, Token: token, UnsubscribedAt: s.now()})
	if err != nil {
		return nil, err
	}
	err = s.store.Commit(ctx, docstore.Create(types.CollUnsubscribedUsers, unsubscribeID(email), data))
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return &types.UnsubscribeResult{Success: true, Message: MsgAlreadyUnsubscribed}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unsubscribe: %w", err)
	}
	s.logger.Info("email unsubscribed", zap.String("email", email))
	return &types.UnsubscribeResult{Success: true, Message: MsgUnsubscribed}, nil
}

// Resubscribe removes every unsubscribe record for email.
func (s *Service) Resubscribe(ctx context.Context, email string) (*types.UnsubscribeResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.Invalid("email", "is required")
	}
	docs, err := s.store.Query(ctx, unsubscribedQuery(email))
	if err != nil {
		return nil, fmt.Errorf("failed to read unsubscribe list: %w", err)
	}
	if len(docs) > 0 {
		writes := make([]docstore.Write, 0, len(docs))
		for _, doc := range docs {
			writes = append(writes, docstore.Delete(types.CollUnsubscribedUsers, doc.ID))
		}
		if err := s.store.Commit(ctx, writes...); err != nil {
			return nil, fmt.Errorf("failed to resubscribe: %w", err)
		}
		s.logger.Info("email resubscribed", zap.String("email", email), zap.Int("records", len(docs)))
	}
	return &types.UnsubscribeResult{Success: true, Message: MsgResubscribed}, nil
}

// IsUnsubscribed reports whether email is on the unsubscribe list.
func (s *Service) IsUnsubscribed(ctx context.Context, email string) (bool, error) {
	docs, err := s.store.Query(ctx, unsubscribedQuery(normalizeEmail(email)).WithLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check unsubscribe list: %w", err)
	}
	return len(docs) > 0, nil
}
