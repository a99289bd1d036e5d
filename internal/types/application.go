// Package types provides type definitions for the documents and requests used throughout the placement portal.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"strings"
	"time"
)

// ApplicationStatus is the lifecycle state of an application
type ApplicationStatus string

const (
	StatusApplied     ApplicationStatus = "applied"
	StatusShortlisted ApplicationStatus = "shortlisted"
	StatusInterviewed ApplicationStatus = "interviewed"
	StatusOffered     ApplicationStatus = "offered"
	StatusRejected    ApplicationStatus = "rejected"
)

// ApplicationStatuses lists every known status in lifecycle order.
var ApplicationStatuses = []ApplicationStatus{
	StatusApplied, StatusShortlisted, StatusInterviewed, StatusOffered, StatusRejected,
}

// ParseApplicationStatus accepts a known status name, ignoring case and surrounding space.
func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	status := ApplicationStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown application status %q", s)
	}
	return status, nil
}

// Valid reports whether s is one of the known statuses.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusApplied, StatusShortlisted, StatusInterviewed, StatusOffered, StatusRejected:
		return true
	}
	return false
}

// StatsField returns the student stats counter that tracks applications currently in
// this status, or "" when no counter follows transitions into or out of it.
// Applied is counted once at creation and never moves.
func (s ApplicationStatus) StatsField() string {
	switch s {
	case StatusShortlisted:
		return "shortlisted"
	case StatusInterviewed:
		return "interviewed"
	case StatusOffered:
		return "offers"
	}
	return ""
}

// Stats are the denormalized per-student application counters
type Stats struct {
	Applied     int `json:"applied"`
	Shortlisted int `json:"shortlisted"`
	Interviewed int `json:"interviewed"`
	Offers      int `json:"offers"`
}

// Application links a student to a job
type Application struct {
	ID            string            `json:"id"`
	StudentID     string            `json:"studentId"`
	JobID         string            `json:"jobId"`
	CompanyID     string            `json:"companyId,omitempty"`
	Status        ApplicationStatus `json:"status"`
	AppliedDate   time.Time         `json:"appliedDate"`
	InterviewDate *time.Time        `json:"interviewDate,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// CompanySummary is the company display data embedded in views
type CompanySummary struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

// JobSummary is the job display data embedded in views
type JobSummary struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Salary   string `json:"salary,omitempty"`
	Location string `json:"location,omitempty"`
}

// Placeholders used when enrichment data is unavailable.
const (
	UnknownCompany  = "Unknown Company"
	UnknownPosition = "Unknown Position"
)

// ApplicationView is an application enriched with company and job display data
type ApplicationView struct {
	Application
	Company CompanySummary `json:"company"`
	Job     JobSummary     `json:"job"`
}

// UpdateStatusRequest is the body of a status change
type UpdateStatusRequest struct {
	Status        string     `json:"status" validate:"required"`
	InterviewDate *time.Time `json:"interviewDate,omitempty"`
}

// Validate validates the UpdateStatusRequest using the validator.
func (r *UpdateStatusRequest) Validate() error {
	return validate.Struct(r)
}

// ApplyRequest is the body of an apply call
type ApplyRequest struct {
	CompanyID string `json:"companyId,omitempty"`
}
