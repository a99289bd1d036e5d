package types

import "time"

// Student is a student profile document
type Student struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Phone        string        `json:"phone,omitempty"`
	Center       string        `json:"center,omitempty"`
	School       string        `json:"school,omitempty"`
	CGPA         float64       `json:"cgpa,omitempty"`
	Bio          string        `json:"bio,omitempty"`
	LinkedIn     string        `json:"linkedin,omitempty"`
	GitHub       string        `json:"github,omitempty"`
	Portfolio    string        `json:"portfolio,omitempty"`
	Stats        Stats         `json:"stats"`
	Education    []Education   `json:"education,omitempty"`
	Skills       []Skill       `json:"skills,omitempty"`
	Projects     []Project     `json:"projects,omitempty"`
	Achievements []Achievement `json:"achievements,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Education is one education entry
type Education struct {
	ID          string `json:"id"`
	StudentID   string `json:"studentId,omitempty"`
	Institution string `json:"institution" validate:"required"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	StartYear   int    `json:"startYear,omitempty"`
	EndYear     int    `json:"endYear,omitempty" validate:"omitempty,gtefield=StartYear"`
	Grade       string `json:"grade,omitempty"`
}

// Skill is one skill entry
type Skill struct {
	ID        string `json:"id"`
	StudentID string `json:"studentId,omitempty"`
	Name      string `json:"name" validate:"required"`
	Level     string `json:"level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced expert"`
}

// Project is one project entry
type Project struct {
	ID           string   `json:"id"`
	StudentID    string   `json:"studentId,omitempty"`
	Title        string   `json:"title" validate:"required"`
	Description  string   `json:"description,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	URL          string   `json:"url,omitempty"`
}

// Achievement is one achievement entry
type Achievement struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"studentId,omitempty"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
}

// ProfileUpdate carries the editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name      *string  `json:"name,omitempty" validate:"omitempty,min=1"`
	Email     *string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone     *string  `json:"phone,omitempty"`
	Center    *string  `json:"center,omitempty"`
	School    *string  `json:"school,omitempty"`
	CGPA      *float64 `json:"cgpa,omitempty" validate:"omitempty,gte=0,lte=10"`
	Bio       *string  `json:"bio,omitempty"`
	LinkedIn  *string  `json:"linkedin,omitempty"`
	GitHub    *string  `json:"github,omitempty"`
	Portfolio *string  `json:"portfolio,omitempty"`
}

// Validate validates the ProfileUpdate using the validator.
func (r *ProfileUpdate) Validate() error {
	return validate.Struct(r)
}

// StudentFilter narrows student listings
type StudentFilter struct {
	Center  string
	School  string
	MinCGPA float64
}

// Validate validates the Education using the validator.
func (e *Education) Validate() error {
	return validate.Struct(e)
}

// Validate validates the Skill using the validator.
func (s *Skill) Validate() error {
	return validate.Struct(s)
}

// Validate validates the Project using the validator.
func (p *Project) Validate() error {
	return validate.Struct(p)
}

// Validate validates the Achievement using the validator.
func (a *Achievement) Validate() error {
	return validate.Struct(a)
}
