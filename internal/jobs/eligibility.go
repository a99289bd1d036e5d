package jobs

import (
	"regexp"
	"strconv"

	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// maxCGPA is the top of the grading scale.
const maxCGPA = 10

var cgpaPatterns = []*regexp.Regexp{
	// "Minimum CGPA: 7.5", "CGPA >= 8", "CGPA of at least 6.5"
	regexp.MustCompile(`(?i)c\.?g\.?p\.?a\.?\s*(?:of\s*)?(?:>=|≥|=|:|-|at\s+least|minimum|min\.?|above)?\s*(\d{1,2}(?:\.\d+)?)`),
	// "7 CGPA and above", "8.0+ CGPA"
	regexp.MustCompile(`(?i)(\d{1,2}(?:\.\d+)?)\s*\+?\s*c\.?g\.?p\.?a`),
}

// MinCGPA extracts a CGPA threshold from free-text eligibility criteria.
func MinCGPA(criteria string) (float64, bool) {
	for _, re := range cgpaPatterns {
		m := re.FindStringSubmatch(criteria)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v <= 0 || v > maxCGPA {
			continue
		}
		return v, true
	}
	return 0, false
}

// IsEligible reports whether the student meets the job's CGPA threshold. Jobs
// without a parseable threshold are open to everyone.
func IsEligible(student *types.Student, job *types.Job) bool {
	if student == nil || job == nil {
		return false
	}
	threshold, ok := MinCGPA(job.EligibilityCriteria)
	if !ok {
		return true
	}
	return student.CGPA >= threshold
}
