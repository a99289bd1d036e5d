package types

import "time"

// EmailStatus is the delivery state of a queued email
type EmailStatus string

const (
	EmailPending   EmailStatus = "pending"
	EmailSent      EmailStatus = "sent"
	EmailDelivered EmailStatus = "delivered"
	EmailOpened    EmailStatus = "opened"
	EmailClicked   EmailStatus = "clicked"
	EmailFailed    EmailStatus = "failed"
)

// Valid reports whether s is a known delivery status.
func (s EmailStatus) Valid() bool {
	switch s {
	case EmailPending, EmailSent, EmailDelivered, EmailOpened, EmailClicked, EmailFailed:
		return true
	}
	return false
}

// EmailNotification is a queued outbound email
type EmailNotification struct {
	ID                string      `json:"id"`
	To                string      `json:"to"`
	StudentID         string      `json:"studentId,omitempty"`
	JobID             string      `json:"jobId,omitempty"`
	Subject           string      `json:"subject"`
	HTML              string      `json:"html"`
	Status            EmailStatus `json:"status"`
	UnsubscribeToken  string      `json:"unsubscribeToken"`
	Attempts          int         `json:"attempts"`
	Error             string      `json:"error,omitempty"`
	ProviderMessageID string      `json:"providerMessageId,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	SentAt            *time.Time  `json:"sentAt,omitempty"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// EmailRequest asks for an email to be queued
type EmailRequest struct {
	To        string `json:"to" validate:"required,email"`
	StudentID string `json:"studentId,omitempty"`
	JobID     string `json:"jobId,omitempty"`
	Subject   string `json:"subject" validate:"required"`
	HTML      string `json:"html" validate:"required"`
	// Transactional emails such as password resets ignore the unsubscribe list.
	Transactional bool `json:"-"`
}

// Validate validates the EmailRequest using the validator.
func (r *EmailRequest) Validate() error {
	return validate.Struct(r)
}

// EmailEvent is a delivery tracking callback
type EmailEvent struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required"`
}

// Validate validates the EmailEvent using the validator.
func (r *EmailEvent) Validate() error {
	return validate.Struct(r)
}

// UnsubscribedUser records an opted-out email address
type UnsubscribedUser struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Token          string    `json:"token"`
	UnsubscribedAt time.Time `json:"unsubscribedAt"`
}

// UnsubscribeResult is returned by unsubscribe calls
type UnsubscribeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Notification is an in-app inbox entry
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
