package extractor

import (
	"fmt"

	"github.com/driveline/driveline-backend/internal/record/domain"
)

// validate computes the record age and fills the validation outputs:
// isValid, the ordered issue list and the confidence grade. A gap is an
// issue, not an error; only staleness and missing structural fields
// (check code, holder name, generation date) make the record invalid.
func (e *Extractor) validate(rec *domain.DrivingRecordExtract) {
	rec.AgeInDays = e.ageInDays(rec)

	if rec.CheckCode == "" {
		rec.Issues = append(rec.Issues, "check code not found")
	}
	if rec.HolderName == "" {
		rec.Issues = append(rec.Issues, "holder name not found")
	}
	if rec.GeneratedOn == nil {
		rec.Issues = append(rec.Issues, "generation date not found")
	} else if rec.AgeInDays > e.maxAgeDays {
		rec.Issues = append(rec.Issues,
			fmt.Sprintf("record generated %d days ago exceeds %d day limit", rec.AgeInDays, e.maxAgeDays))
	}
	if rec.LicenseFragment == "" {
		rec.Issues = append(rec.Issues, "licence number fragment not found")
	}

	rec.IsValid = rec.CheckCode != "" &&
		rec.HolderName != "" &&
		rec.GeneratedOn != nil &&
		rec.AgeInDays <= e.maxAgeDays

	rec.Confidence = gradeConfidence(rec)
}

func (e *Extractor) ageInDays(rec *domain.DrivingRecordExtract) int {
	if rec.GeneratedOn == nil {
		return domain.UnknownAgeDays
	}
	days := int(e.now().Sub(*rec.GeneratedOn).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// gradeConfidence maps the issue count to a grade. A missing check code
// means we cannot even be sure this was a driving record, so the grade
// drops straight to failed.
func gradeConfidence(rec *domain.DrivingRecordExtract) domain.Confidence {
	if rec.CheckCode == "" {
		return domain.ConfidenceFailed
	}
	switch n := len(rec.Issues); {
	case n == 0:
		return domain.ConfidenceHigh
	case n <= 2:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}
