//nolint:revive // types is a standard Go package name pattern
package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseApplicationStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    ApplicationStatus
		wantErr bool
	}{
		{"applied", StatusApplied, false},
		{" Shortlisted ", StatusShortlisted, false},
		{"OFFERED", StatusOffered, false},
		{"rejected", StatusRejected, false},
		{"offers", "", true},
		{"", "", true},
		{"hired", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseApplicationStatus(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplicationStatus_StatsField(t *testing.T) {
	assert.Equal(t, "", StatusApplied.StatsField())
	assert.Equal(t, "shortlisted", StatusShortlisted.StatsField())
	assert.Equal(t, "interviewed", StatusInterviewed.StatsField())
	assert.Equal(t, "offers", StatusOffered.StatsField())
	assert.Equal(t, "", StatusRejected.StatsField())
	assert.Equal(t, "", ApplicationStatus("bogus").StatsField())
}

func TestApplicationStatuses_AllValid(t *testing.T) {
	for _, s := range ApplicationStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, ApplicationStatus("bogus").Valid())
}

func TestEmailStatus_Valid(t *testing.T) {
	assert.True(t, EmailClicked.Valid())
	assert.False(t, EmailStatus("bounced").Valid())
}

func TestProfileUpdate_Validate(t *testing.T) {
	cgpa := 11.0
	assert.Error(t, (&ProfileUpdate{CGPA: &cgpa}).Validate())
	email := "bad"
	assert.Error(t, (&ProfileUpdate{Email: &email}).Validate())
	assert.NoError(t, (&ProfileUpdate{}).Validate())
}
