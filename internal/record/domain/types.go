package domain

import (
	"strings"
	"time"
)

// Confidence grades how complete the extraction was
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceFailed Confidence = "failed"
)

// UnknownAgeDays is the sentinel age for a record whose generation date
// could not be parsed. It is always beyond the freshness cutoff.
const UnknownAgeDays = 999

// Endorsement is a single penalty-point-bearing offence on a driving record.
// Codes are two letters and two digits (e.g. SP30). Within one extract the
// code is unique; repeated printings of the same offence are collapsed.
type Endorsement struct {
	Code        string     `json:"code"`
	Points      int        `json:"points"`
	Description string     `json:"description"`
	OffenceDate *time.Time `json:"offence_date,omitempty"`
}

// DrivingRecordExtract is the structured result of parsing one
// government driving-record document from OCR text.
type DrivingRecordExtract struct {
	// LicenseFragment holds only the trailing characters of the licence
	// number. The source document masks the leading characters, so this
	// is a fragment for fuzzy matching, never a full identifier.
	LicenseFragment string `json:"license_fragment,omitempty"`

	HolderName string `json:"holder_name,omitempty"`

	// CheckCode is the vendor-issued share code printed on the record.
	// Its presence is the strongest signal that the document really is
	// a driving record and not some other upload.
	CheckCode string `json:"check_code,omitempty"`

	GeneratedOn *time.Time `json:"generated_on,omitempty"`
	AgeInDays   int        `json:"age_in_days"`

	Endorsements []Endorsement `json:"endorsements"`
	TotalPoints  int           `json:"total_points"`
	Categories   []string      `json:"categories"`

	IsValid    bool       `json:"is_valid"`
	Issues     []string   `json:"issues,omitempty"`
	Confidence Confidence `json:"confidence"`

	// RawText keeps the flattened OCR text for keyword scans
	// (disqualification wording). Never serialized.
	RawText string `json:"-"`
}

// HasEndorsement reports whether the extract contains the given code
func (r *DrivingRecordExtract) HasEndorsement(code string) bool {
	for _, e := range r.Endorsements {
		if e.Code == code {
			return true
		}
	}
	return false
}

// MatchesFragment compares a previously known licence number against an
// extracted fragment. Only suffixes are compared because the document
// masks leading characters.
func MatchesFragment(known, fragment string) bool {
	known = strings.ToUpper(strings.TrimSpace(known))
	fragment = strings.ToUpper(strings.TrimSpace(fragment))
	if len(fragment) < 6 {
		return false
	}
	return strings.HasSuffix(known, fragment)
}
