package extractor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/driveline-backend/internal/record/domain"
)

// fixed "today" for age calculations
var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testExtractor() *Extractor {
	return NewWithClock(30, func() time.Time { return testNow })
}

const sampleRecord = `Driving record summary
Check your driving licence information

Driver name: JANE ELIZABETH MORGAN
Licence number: XXXXXXXX 657054SM
Check code: Kd 4x Tf 2m
Date generated: 14 February 2026 09:41

Categories: B, BE, C1

Endorsements
SP30 Exceeding statutory speed limit on a public road 3 points 12 May 2025
`

func TestExtract_FullRecord(t *testing.T) {
	rec := testExtractor().Extract(sampleRecord)

	assert.Equal(t, "657054SM", rec.LicenseFragment)
	assert.Equal(t, "JANE ELIZABETH MORGAN", rec.HolderName)
	assert.Equal(t, "Kd 4x Tf 2m", rec.CheckCode)
	require.NotNil(t, rec.GeneratedOn)
	assert.Equal(t, time.Date(2026, 2, 14, 9, 41, 0, 0, time.UTC), *rec.GeneratedOn)
	assert.Equal(t, 15, rec.AgeInDays)
	assert.Equal(t, []string{"B", "BE", "C1"}, rec.Categories)

	require.Len(t, rec.Endorsements, 1)
	e := rec.Endorsements[0]
	assert.Equal(t, "SP30", e.Code)
	assert.Equal(t, 3, e.Points)
	assert.Equal(t, "Exceeding statutory speed limit on a public road", e.Description)
	require.NotNil(t, e.OffenceDate)
	assert.Equal(t, time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC), *e.OffenceDate)

	assert.Equal(t, 3, rec.TotalPoints)
	assert.True(t, rec.IsValid)
	assert.Empty(t, rec.Issues)
	assert.Equal(t, domain.ConfidenceHigh, rec.Confidence)
}

func TestExtract_SingleEndorsementNoExplicitTotal(t *testing.T) {
	text := "Check code: Ab 3d Qz 71\nSP30 Speeding\n"

	rec := testExtractor().Extract(text)

	require.Len(t, rec.Endorsements, 1)
	assert.Equal(t, "SP30", rec.Endorsements[0].Code)
	assert.Equal(t, 3, rec.Endorsements[0].Points)
	assert.Equal(t, 3, rec.TotalPoints)
}

func TestExtract_DuplicateCodeCollapsed(t *testing.T) {
	// The same offence printed twice: narrative summary plus detail table
	text := `You have one endorsement for SP30 on your record.
Endorsement detail
SP30 Exceeding statutory speed limit 3 points 12 May 2025
`

	rec := testExtractor().Extract(text)

	require.Len(t, rec.Endorsements, 1)
	assert.Equal(t, 3, rec.TotalPoints)
}

func TestExtract_DedupInvariant(t *testing.T) {
	text := `SP30 Speeding 3 points
MS90 Failure to give information 6 points
SP30 Speeding 3 points
CU80 Using a mobile phone 6 points
MS90 Failure to give information 6 points
`

	rec := testExtractor().Extract(text)

	codes := make(map[string]int)
	for _, e := range rec.Endorsements {
		codes[e.Code]++
	}
	for code, n := range codes {
		assert.Equal(t, 1, n, "code %s appears %d times", code, n)
	}
	assert.Len(t, rec.Endorsements, 3)
	assert.Equal(t, 15, rec.TotalPoints)
}

func TestExtract_ExplicitTotalWins(t *testing.T) {
	// Narrative totals can cover offences not individually itemized
	text := `You have a total of 9 penalty points.
SP30 Exceeding statutory speed limit 3 points
`

	rec := testExtractor().Extract(text)

	assert.Equal(t, 9, rec.TotalPoints)
	assert.Len(t, rec.Endorsements, 1)
}

func TestExtract_PointsFallBackToTable(t *testing.T) {
	rec := testExtractor().Extract("MS90 Failure to give information as to identity of driver\n")

	require.Len(t, rec.Endorsements, 1)
	assert.Equal(t, 6, rec.Endorsements[0].Points)
}

func TestExtract_UnknownCodeDefaultsToThreePoints(t *testing.T) {
	rec := testExtractor().Extract("SP99 Some new speeding variant\n")

	require.Len(t, rec.Endorsements, 1)
	assert.Equal(t, 3, rec.Endorsements[0].Points)
}

func TestExtract_WhitelistedPrefixesOnly(t *testing.T) {
	rec := testExtractor().Extract("Ref AB12 is not an offence code, neither is ZZ99.\n")

	assert.Empty(t, rec.Endorsements)
	assert.Equal(t, 0, rec.TotalPoints)
}

func TestExtract_HolderNameLengthBounds(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"too short rejected", "Name: AB C\n", ""},
		{"too long rejected", "Name: " + strings.Repeat("A", 60) + "\n", ""},
		{"valid name accepted", "Name: JOHN SMITH\n", "JOHN SMITH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testExtractor().Extract(tt.text)
			assert.Equal(t, tt.want, rec.HolderName)
		})
	}
}

func TestExtract_MissingFieldsAreIssuesNotErrors(t *testing.T) {
	rec := testExtractor().Extract("completely unrelated text")

	assert.False(t, rec.IsValid)
	assert.NotEmpty(t, rec.Issues)
	assert.Equal(t, domain.ConfidenceFailed, rec.Confidence)
	assert.Equal(t, domain.UnknownAgeDays, rec.AgeInDays)
}

func TestExtract_StaleRecordInvalid(t *testing.T) {
	text := `Driver name: JANE ELIZABETH MORGAN
Licence number: XXXXXXXX 657054SM
Check code: Kd 4x Tf 2m
Date generated: 1 December 2025
`

	rec := testExtractor().Extract(text)

	assert.Equal(t, 90, rec.AgeInDays)
	assert.False(t, rec.IsValid)
	assert.Contains(t, rec.Issues[0], "exceeds 30 day limit")
}

func TestExtract_BareCheckCodeRequiresDigit(t *testing.T) {
	// Four short words must not be mistaken for a check code
	rec := testExtractor().Extract("it is on th at on we go\n")
	assert.Equal(t, "", rec.CheckCode)

	rec = testExtractor().Extract("Your code is shown below\nKd 4x Tf 2m\n")
	assert.Equal(t, "Kd 4x Tf 2m", rec.CheckCode)
}

func TestParseRecordDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *time.Time
	}{
		{"day month year", "14 February 2026", timePtr(2026, 2, 14, 0, 0)},
		{"with time", "14 February 2026 09:41", timePtr(2026, 2, 14, 9, 41)},
		{"case insensitive month", "3 JULY 2025", timePtr(2025, 7, 3, 0, 0)},
		{"numeric fallback", "14/02/2026", timePtr(2026, 2, 14, 0, 0)},
		{"unknown month", "14 Febtember 2026", nil},
		{"impossible day", "31 February 2026", nil},
		{"garbage", "not a date", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseRecordDate(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestMatchesFragment(t *testing.T) {
	assert.True(t, domain.MatchesFragment("MORGA657054SM9IJ", "054SM9IJ"))
	assert.True(t, domain.MatchesFragment("morga657054sm9ij", "054SM9IJ"))
	assert.False(t, domain.MatchesFragment("MORGA657054SM9IJ", "MORGA6"))
	assert.False(t, domain.MatchesFragment("MORGA657054SM9IJ", "9IJ")) // too short to trust
}

func timePtr(year int, month time.Month, day, hour, min int) *time.Time {
	t := time.Date(year, month, day, hour, min, 0, 0, time.UTC)
	return &t
}
