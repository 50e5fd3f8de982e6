package watch

import (
	"time"

	"github.com/driveline/driveline-backend/internal/onboarding/classifier"
	"github.com/driveline/driveline-backend/internal/onboarding/domain"
)

// Field names a driver field whose change signals webhook completion
type Field string

const (
	FieldLicenseExpiry      Field = "license_expiry"
	FieldProofOfAddress1Due Field = "proof_of_address_1_due"
	FieldProofOfAddress2Due Field = "proof_of_address_2_due"
	FieldRecordCheckDue     Field = "record_check_due"
	FieldPassportExpiry     Field = "passport_expiry"
)

// KYCCompletionFields is the allow-list watched while waiting for the
// identity vendor's webhook to land on the board.
var KYCCompletionFields = []Field{
	FieldLicenseExpiry,
	FieldProofOfAddress1Due,
	FieldProofOfAddress2Due,
}

// Outcome is either pending or completed with the validity snapshot
// classified from the changed fields.
type Outcome struct {
	completed bool
	snapshot  domain.DocumentValiditySnapshot
}

func Pending() Outcome {
	return Outcome{}
}

func Completed(snap domain.DocumentValiditySnapshot) Outcome {
	return Outcome{completed: true, snapshot: snap}
}

// Snapshot returns the classified snapshot and whether the watch
// completed. The snapshot is meaningful only when ok is true.
func (o Outcome) Snapshot() (domain.DocumentValiditySnapshot, bool) {
	return o.snapshot, o.completed
}

func (o Outcome) IsPending() bool { return !o.completed }

// Detector compares successive reads of a driver's board fields and
// reports completion only when a watched field changed.
type Detector struct {
	classify *classifier.Classifier
	watched  []Field
}

func NewDetector(c *classifier.Classifier, watched []Field) *Detector {
	return &Detector{classify: c, watched: watched}
}

// Detect compares before and after over the watched allow-list.
// Changes to fields outside the list never complete the watch.
func (d *Detector) Detect(today time.Time, before, after *domain.DriverFields) Outcome {
	for _, field := range d.watched {
		if !datesEqual(fieldValue(before, field), fieldValue(after, field)) {
			return Completed(d.classify.Classify(today, after))
		}
	}
	return Pending()
}

func fieldValue(f *domain.DriverFields, field Field) *time.Time {
	switch field {
	case FieldLicenseExpiry:
		return f.LicenseExpiry
	case FieldProofOfAddress1Due:
		return f.ProofOfAddress1Due
	case FieldProofOfAddress2Due:
		return f.ProofOfAddress2Due
	case FieldRecordCheckDue:
		return f.RecordCheckDue
	case FieldPassportExpiry:
		return f.PassportExpiry
	}
	return nil
}

func datesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
