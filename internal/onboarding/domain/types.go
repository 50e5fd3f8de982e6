package domain

import (
	"strings"
	"time"
)

// Step is a workflow step the driver must complete next
type Step string

const (
	StepFullVerification      Step = "full-verification"
	StepSelectiveVerification Step = "selective-verification"
	StepProofOfAddress        Step = "proof-of-address-validation"
	StepDomesticRecordCheck   Step = "domestic-record-check"
	StepPassportCheck         Step = "passport-check"
	StepSignature             Step = "signature"
)

// Completed-step markers are self-reported by the caller; the routing
// machine computes the target, the client is responsible for getting there.
const (
	MarkerInsuranceQuestionnaire      = "insurance-questionnaire"
	MarkerKYCComplete                 = "kyc-complete"
	MarkerProcessingHub               = "processing-hub"
	MarkerProofOfAddressComplete      = "proof-of-address-validation-complete"
	MarkerDomesticRecordCheckComplete = "domestic-record-check-complete"
	MarkerPassportCheckComplete       = "passport-check-complete"
)

// RoutingStep is the computed next step. It is derived fresh on every
// request and never persisted.
type RoutingStep struct {
	Step   Step   `json:"step"`
	Reason string `json:"reason"`
}

// DocumentStatus is the validity of one document class
type DocumentStatus struct {
	Valid            bool       `json:"valid"`
	ExpiryOrCheckDue *time.Time `json:"expiry_or_check_due,omitempty"`
}

// DocumentValiditySnapshot is the per-driver validity of all four
// document classes at a point in time.
type DocumentValiditySnapshot struct {
	License                 DocumentStatus `json:"license"`
	ProofOfAddress1         DocumentStatus `json:"proof_of_address_1"`
	ProofOfAddress2         DocumentStatus `json:"proof_of_address_2"`
	DrivingRecordOrPassport DocumentStatus `json:"driving_record_or_passport"`

	// IsDomesticLicenseHolder is derived from the issuing authority of
	// the licence, never from nationality; the two are allowed to differ
	// and only the issuer governs which fourth document class applies.
	IsDomesticLicenseHolder bool `json:"is_domestic_license_holder"`

	Issues []string `json:"issues,omitempty"`
}

// AllValid reports whether all four document classes are valid
func (s *DocumentValiditySnapshot) AllValid() bool {
	return s.License.Valid &&
		s.ProofOfAddress1.Valid &&
		s.ProofOfAddress2.Valid &&
		s.DrivingRecordOrPassport.Valid
}

// MissingCoreDocuments names the invalid documents among the three core
// classes (licence and both proofs of address), in a fixed order.
func (s *DocumentValiditySnapshot) MissingCoreDocuments() []string {
	var missing []string
	if !s.License.Valid {
		missing = append(missing, "license")
	}
	if !s.ProofOfAddress1.Valid {
		missing = append(missing, "proof-of-address-1")
	}
	if !s.ProofOfAddress2.Valid {
		missing = append(missing, "proof-of-address-2")
	}
	return missing
}

// DriverFields is the flat per-driver record persisted on the external
// board. Field names on the board are column IDs; this is the semantic
// shape the core consumes.
type DriverFields struct {
	DriverID      string `json:"driver_id"`
	Email         string `json:"email,omitempty"`
	FullName      string `json:"full_name,omitempty"`
	LicenseNumber string `json:"license_number,omitempty"`

	// LicenseIssuer is the authority that issued the licence; it alone
	// decides whether the fourth document class is the domestic driving
	// record or a passport.
	LicenseIssuer string `json:"license_issuer,omitempty"`

	// Nationality is informational only and never governs routing
	Nationality string `json:"nationality,omitempty"`

	LicenseExpiry      *time.Time `json:"license_expiry,omitempty"`
	ProofOfAddress1Due *time.Time `json:"proof_of_address_1_due,omitempty"`
	ProofOfAddress2Due *time.Time `json:"proof_of_address_2_due,omitempty"`
	RecordCheckDue     *time.Time `json:"record_check_due,omitempty"`
	PassportExpiry     *time.Time `json:"passport_expiry,omitempty"`
	RecordGeneratedOn  *time.Time `json:"record_generated_on,omitempty"`
}

// domesticIssuers are the authority names the board stores for
// domestically issued licences.
var domesticIssuers = map[string]bool{
	"dvla": true,
	"dva":  true,
}

// IsDomesticLicense reports whether the licence was issued by the
// national driving authority.
func (f *DriverFields) IsDomesticLicense() bool {
	return domesticIssuers[strings.ToLower(strings.TrimSpace(f.LicenseIssuer))]
}
