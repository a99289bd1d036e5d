package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ResumeBuilder(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantField string
	}{
		{
			name: "minimal",
			doc:  `{"personalInfo":{"name":"Asha"}}`,
		},
		{
			name: "full",
			doc: `{
				"personalInfo":{"name":"Asha","email":"asha@example.com"},
				"summary":"Backend developer",
				"education":[{"institution":"IIT","startYear":2021,"endYear":"2025"}],
				"experience":[{"company":"Acme","role":"Intern","bullets":["Built APIs"]}],
				"projects":[{"title":"Portal","technologies":["Go"]}],
				"skills":["Go","SQL"],
				"certifications":[{"name":"AWS CCP","year":2024}]
			}`,
		},
		{
			name:      "missing personal info",
			doc:       `{"summary":"x"}`,
			wantField: "(root)",
		},
		{
			name:      "empty name",
			doc:       `{"personalInfo":{"name":""}}`,
			wantField: "personalInfo.name",
		},
		{
			name:      "bad email",
			doc:       `{"personalInfo":{"name":"A","email":"nope"}}`,
			wantField: "personalInfo.email",
		},
		{
			name:      "duplicate skills",
			doc:       `{"personalInfo":{"name":"A"},"skills":["Go","Go"]}`,
			wantField: "skills",
		},
		{
			name:      "experience without role",
			doc:       `{"personalInfo":{"name":"A"},"experience":[{"company":"Acme"}]}`,
			wantField: "experience.0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(ResumeBuilder, []byte(tt.doc))
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.wantField, ve.First().Field)
		})
	}
}

func TestValidate_MalformedJSON(t *testing.T) {
	err := Validate(ResumeBuilder, []byte(`{ invalid json }`))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "(root)", ve.First().Field)
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("nope", []byte(`{}`))
	var le *SchemaLoadError
	require.True(t, errors.As(err, &le))
	assert.Contains(t, err.Error(), "schema not found")
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type":"object","required":["id"],"properties":{"id":{"type":"string"}}}`
	assert.NoError(t, ValidateJSONString(schema, `{"id":"x"}`))

	err := ValidateJSONString(schema, `{"id":1}`)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "id", ve.First().Field)
	assert.Contains(t, ve.Error(), "validation failed")
}

func TestValidationError_FirstOnEmpty(t *testing.T) {
	ve := &ValidationError{}
	assert.Equal(t, "(root)", ve.First().Field)
}
