package types

import (
	"encoding/json"
	"time"
)

// ResumeBuilderData is the structured resume a student edits in the builder
type ResumeBuilderData struct {
	StudentID string          `json:"studentId"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Resume is an uploaded resume file
type Resume struct {
	StudentID   string    `json:"studentId"`
	FileName    string    `json:"fileName"`
	Path        string    `json:"path"`
	URL         string    `json:"url"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	UploadedAt  time.Time `json:"uploadedAt"`
}
