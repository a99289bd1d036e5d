package types

import "time"

// JobStatus is whether a job accepts applications
type JobStatus string

const (
	JobOpen   JobStatus = "open"
	JobClosed JobStatus = "closed"
)

// Job is a job posting
type Job struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title" validate:"required"`
	CompanyID           string          `json:"companyId,omitempty"`
	Company             *CompanySummary `json:"company,omitempty"`
	Salary              string          `json:"salary,omitempty"`
	Location            string          `json:"location,omitempty"`
	DriveDate           *time.Time      `json:"driveDate,omitempty"`
	InterviewDate       *time.Time      `json:"interviewDate,omitempty"`
	EligibilityCriteria string          `json:"eligibilityCriteria,omitempty"`
	Description         string          `json:"description,omitempty"`
	PostedBy            string          `json:"postedBy,omitempty"`
	Status              JobStatus       `json:"status,omitempty" validate:"omitempty,oneof=open closed"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Validate validates the Job using the validator.
func (j *Job) Validate() error {
	return validate.Struct(j)
}

// JobFilter narrows job listings
type JobFilter struct {
	CompanyID string
	Status    JobStatus
	Limit     int
}

// Company is a hiring company
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required"`
	Logo      string    `json:"logo,omitempty"`
	Website   string    `json:"website,omitempty" validate:"omitempty,url"`
	Industry  string    `json:"industry,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate validates the Company using the validator.
func (c *Company) Validate() error {
	return validate.Struct(c)
}
