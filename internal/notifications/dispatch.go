package notifications

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/metrics"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// Dispatcher sends pending emails. A failed send leaves the email pending until it
// has been attempted maxAttempts times, after which it is marked failed.
type Dispatcher struct {
	store       docstore.Store
	sender      Sender
	logger      *zap.Logger
	now         func() time.Time
	batchSize   int
	maxAttempts int
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(store docstore.Store, sender Sender, batchSize, maxAttempts int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Dispatcher{
		store:       store,
		sender:      sender,
		logger:      logger.Named("dispatcher"),
		now:         func() time.Time { return time.Now().UTC() },
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// RunOnce sends up to one batch of pending emails, oldest first, and returns how
// many were sent.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	q := docstore.NewQuery(types.CollEmailNotifications).
		Where("status", docstore.OpEqual, string(types.EmailPending)).
		OrderBy("createdAt", false).
		WithLimit(d.batchSize)
	docs, err := d.store.Query(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending emails: %w", err)
	}

	sent := 0
	for i := range docs {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		var email types.EmailNotification
		if err := docs[i].DataTo(&email); err != nil {
			d.logger.Warn("skipping undecodable email", zap.String("email_id", docs[i].ID), zap.Error(err))
			continue
		}
		if d.deliver(ctx, &email) {
			sent++
		}
	}
	if len(docs) > 0 {
		d.logger.Info("dispatch finished", zap.Int("pending", len(docs)), zap.Int("sent", sent))
	}
	return sent, nil
}

func (d *Dispatcher) deliver(ctx context.Context, email *types.EmailNotification) bool {
	text, err := PlainText(email.HTML)
	if err != nil {
		d.logger.Warn("plain text rendering failed", zap.String("email_id", email.ID), zap.Error(err))
		text = ""
	}

	msgID, sendErr := d.sender.Send(ctx, Message{
		To:      email.To,
		Subject: email.Subject,
		HTML:    email.HTML,
		Text:    text,
	})

	now := d.now()
	fields := docstore.Data{"updatedAt": now}
	outcome := "sent"
	if sendErr == nil {
		fields["status"] = string(types.EmailSent)
		fields["sentAt"] = now
		fields["providerMessageId"] = msgID
		fields["error"] = docstore.DeleteField
	} else {
		fields["error"] = sendErr.Error()
		outcome = "retry"
		if email.Attempts+1 >= d.maxAttempts {
			fields["status"] = string(types.EmailFailed)
			outcome = "failed"
		}
	}
	metrics.EmailsSent.WithLabelValues(outcome).Inc()

	w := docstore.Update(types.CollEmailNotifications, email.ID, fields).Increment("attempts", 1)
	if err := d.store.Commit(ctx, w); err != nil {
		d.logger.Error("failed to record email outcome",
			zap.String("email_id", email.ID),
			zap.String("outcome", outcome),
			zap.Error(err))
	}
	if sendErr != nil {
		d.logger.Warn("email send failed",
			zap.String("email_id", email.ID),
			zap.String("to", email.To),
			zap.Int("attempt", email.Attempts+1),
			zap.Error(sendErr))
		return false
	}
	return true
}

// Run calls RunOnce every interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn("dispatch failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
