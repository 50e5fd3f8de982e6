package classifier

import (
	"fmt"
	"time"

	"github.com/driveline/driveline-backend/internal/onboarding/domain"
)

// Classifier turns a driver's persisted document dates into a validity
// snapshot. It fails closed: a missing date never passes as valid.
type Classifier struct {
	maxRecordAgeDays int
}

func New(maxRecordAgeDays int) *Classifier {
	return &Classifier{maxRecordAgeDays: maxRecordAgeDays}
}

// Classify evaluates every document class against today. A document is
// valid only when its expiry or check-due date is present and strictly
// in the future.
func (c *Classifier) Classify(today time.Time, fields *domain.DriverFields) domain.DocumentValiditySnapshot {
	snap := domain.DocumentValiditySnapshot{
		License:                 classifyDate(today, fields.LicenseExpiry),
		ProofOfAddress1:         classifyDate(today, fields.ProofOfAddress1Due),
		ProofOfAddress2:         classifyDate(today, fields.ProofOfAddress2Due),
		IsDomesticLicenseHolder: fields.IsDomesticLicense(),
	}

	if snap.IsDomesticLicenseHolder {
		snap.DrivingRecordOrPassport = classifyDate(today, fields.RecordCheckDue)
	} else {
		snap.DrivingRecordOrPassport = classifyDate(today, fields.PassportExpiry)
	}

	// A nominally current record that was generated too long ago is
	// flagged, not invalidated; underwriting applies the same cutoff.
	if fields.RecordGeneratedOn != nil {
		age := int(today.Sub(*fields.RecordGeneratedOn).Hours() / 24)
		if age > c.maxRecordAgeDays {
			snap.Issues = append(snap.Issues,
				fmt.Sprintf("driving record was generated %d days ago, over the %d day limit", age, c.maxRecordAgeDays))
		}
	}

	return snap
}

func classifyDate(today time.Time, date *time.Time) domain.DocumentStatus {
	if date == nil {
		return domain.DocumentStatus{Valid: false}
	}
	return domain.DocumentStatus{
		Valid:            date.After(today),
		ExpiryOrCheckDue: date,
	}
}
