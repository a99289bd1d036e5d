package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roshankumar101/Portal-sub001/internal/types"
)

func TestMinCGPA(t *testing.T) {
	tests := []struct {
		criteria string
		want     float64
		ok       bool
	}{
		{"Minimum CGPA: 7.5", 7.5, true},
		{"CGPA >= 8", 8, true},
		{"7 CGPA and above", 7, true},
		{"B.Tech 2025 batch, CGPA of at least 6.5, no active backlogs", 6.5, true},
		{"8.0+ CGPA required", 8, true},
		{"cgpa-7", 7, true},
		{"Open to all branches", 0, false},
		{"", 0, false},
		{"CGPA 75", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.criteria, func(t *testing.T) {
			got, ok := MinCGPA(tt.criteria)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestIsEligible(t *testing.T) {
	job := &types.Job{EligibilityCriteria: "Minimum CGPA: 7.5"}
	assert.True(t, IsEligible(&types.Student{CGPA: 7.5}, job))
	assert.True(t, IsEligible(&types.Student{CGPA: 9.1}, job))
	assert.False(t, IsEligible(&types.Student{CGPA: 7.4}, job))
	assert.True(t, IsEligible(&types.Student{}, &types.Job{EligibilityCriteria: "All welcome"}))
	assert.False(t, IsEligible(nil, job))
}
