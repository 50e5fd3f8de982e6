package underwriting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/driveline-backend/internal/record/domain"
	"github.com/driveline/driveline-backend/pkg/config"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testPolicy() *Policy {
	return NewPolicy(config.UnderwritingConfig{
		MaxRecordAgeDays:           30,
		SeriousOffenceCodes:        []string{"DR10", "DR80", "MS90", "DD80", "BA10", "TT99"},
		DisqualificationKeywords:   []string{"disqualif", "banned from driving"},
		ModerateSingleOffenceCodes: []string{"SP30", "SP50", "CU80"},
		MediumRiskExcess:           1000,
		HighRiskExcess:             1500,
		RecentOffenceExcess:        1250,
		RecentOffenceMonths:        12,
		DeclinePointsThreshold:     9,
	})
}

func testEngine() *Engine {
	return NewEngineWithClock(testPolicy(), func() time.Time { return testNow })
}

// validRecord builds a structurally valid extract with the given endorsements
func validRecord(endorsements ...domain.Endorsement) *domain.DrivingRecordExtract {
	gen := testNow.AddDate(0, 0, -10)
	total := 0
	for _, e := range endorsements {
		total += e.Points
	}
	return &domain.DrivingRecordExtract{
		HolderName:      "JANE ELIZABETH MORGAN",
		LicenseFragment: "657054SM",
		CheckCode:       "Kd 4x Tf 2m",
		GeneratedOn:     &gen,
		AgeInDays:       10,
		Endorsements:    endorsements,
		TotalPoints:     total,
		IsValid:         true,
		Confidence:      domain.ConfidenceHigh,
	}
}

func end(code string, points int) domain.Endorsement {
	return domain.Endorsement{Code: code, Points: points}
}

func TestDecide_CleanRecordApprovedLowRisk(t *testing.T) {
	d := testEngine().Decide(validRecord())

	assert.Equal(t, OutcomeApproved, d.Outcome)
	assert.Equal(t, RiskLow, d.RiskTier)
	assert.Equal(t, 0, d.Excess)
}

func TestDecide_InvalidRecordReferred(t *testing.T) {
	rec := validRecord()
	rec.IsValid = false

	d := testEngine().Decide(rec)

	assert.Equal(t, OutcomeReferred, d.Outcome)
	assert.Contains(t, d.Reasons[0], "could not be validated")
}

func TestDecide_StaleRecordReferred(t *testing.T) {
	rec := validRecord()
	rec.AgeInDays = 45

	d := testEngine().Decide(rec)

	assert.Equal(t, OutcomeReferred, d.Outcome)
}

func TestDecide_SeriousOffenceOverridesPoints(t *testing.T) {
	// The override must win at zero points and at decline-level points alike
	tests := []struct {
		name string
		rec  *domain.DrivingRecordExtract
	}{
		{"serious with zero points", validRecord(end("TT99", 0))},
		{"serious with twelve points", validRecord(end("DR80", 10), end("SP30", 3))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testEngine().Decide(tt.rec)
			assert.Equal(t, OutcomeReferred, d.Outcome)
			assert.Equal(t, RiskHigh, d.RiskTier)
			assert.Contains(t, d.Reasons[0], "serious offence")
		})
	}
}

func TestDecide_DisqualificationKeywordForcesReview(t *testing.T) {
	rec := validRecord(end("SP30", 3))
	rec.RawText = "The holder was disqualified from driving until June 2024."

	d := testEngine().Decide(rec)

	assert.Equal(t, OutcomeReferred, d.Outcome)
	assert.Contains(t, d.Reasons[0], "manual review")
}

func TestDecide_ThreePointsApprovedMedium(t *testing.T) {
	d := testEngine().Decide(validRecord(end("SP30", 3)))

	assert.Equal(t, OutcomeApproved, d.Outcome)
	assert.Equal(t, RiskMedium, d.RiskTier)
	assert.Equal(t, 1000, d.Excess)
}

func TestDecide_SingleModerateSixPointsApproved(t *testing.T) {
	d := testEngine().Decide(validRecord(end("CU80", 6)))

	assert.Equal(t, OutcomeApproved, d.Outcome)
	assert.Equal(t, RiskMedium, d.RiskTier)
	assert.Equal(t, 1000, d.Excess)
}

func TestDecide_SingleSixPointsOffListReferred(t *testing.T) {
	d := testEngine().Decide(validRecord(end("IN10", 6)))

	assert.Equal(t, OutcomeReferred, d.Outcome)
}

func TestDecide_MixedFourToSixPointsReferred(t *testing.T) {
	d := testEngine().Decide(validRecord(end("SP30", 3), end("SP50", 3)))

	assert.Equal(t, OutcomeReferred, d.Outcome)
	assert.Equal(t, RiskMedium, d.RiskTier)
}

func TestDecide_NineFromThreeThreesApprovedHigh(t *testing.T) {
	d := testEngine().Decide(validRecord(end("SP30", 3), end("SP40", 3), end("SP50", 3)))

	assert.Equal(t, OutcomeApproved, d.Outcome)
	assert.Equal(t, RiskHigh, d.RiskTier)
	assert.Equal(t, 1500, d.Excess)
	assert.NotZero(t, d.Excess)
}

func TestDecide_NineFromSingleCodeReferred(t *testing.T) {
	d := testEngine().Decide(validRecord(end("DD90", 9)))

	assert.Equal(t, OutcomeReferred, d.Outcome)
}

func TestDecide_AboveThresholdDeclined(t *testing.T) {
	d := testEngine().Decide(validRecord(end("SP30", 3), end("SP40", 3), end("CU80", 6)))

	require.Equal(t, 12, 3+3+6)
	assert.Equal(t, OutcomeDeclined, d.Outcome)
	assert.False(t, d.Approved())
	assert.False(t, d.ManualReview())
	assert.Contains(t, d.Reasons[0], "exceed insurable limits")
}

func TestDecide_RecentOffenceRaisesExcessOnly(t *testing.T) {
	recent := testNow.AddDate(0, -3, 0)
	e := end("SP30", 3)
	e.OffenceDate = &recent

	d := testEngine().Decide(validRecord(e))

	assert.Equal(t, OutcomeApproved, d.Outcome, "the floor must not change the outcome")
	assert.Equal(t, 1250, d.Excess)
	require.Len(t, d.Reasons, 2)
	assert.Contains(t, d.Reasons[1], "raises the minimum excess")
}

func TestDecide_OldOffenceLeavesExcessAlone(t *testing.T) {
	old := testNow.AddDate(-2, 0, 0)
	e := end("SP30", 3)
	e.OffenceDate = &old

	d := testEngine().Decide(validRecord(e))

	assert.Equal(t, 1000, d.Excess)
	assert.Len(t, d.Reasons, 1)
}

// The tagged outcome makes approved-and-review unrepresentable; this
// pins the DTO derivation across every rule path.
func TestDecide_DTONeverApprovedAndReview(t *testing.T) {
	records := []*domain.DrivingRecordExtract{
		validRecord(),
		validRecord(end("SP30", 3)),
		validRecord(end("IN10", 6)),
		validRecord(end("CU80", 6)),
		validRecord(end("SP30", 3), end("SP40", 3), end("SP50", 3)),
		validRecord(end("DD90", 9)),
		validRecord(end("DR80", 10), end("SP30", 3)),
		validRecord(end("SP30", 3), end("SP40", 3), end("CU80", 6)),
	}
	inv := validRecord()
	inv.IsValid = false
	records = append(records, inv)

	for _, rec := range records {
		dto := testEngine().Decide(rec).DTO()
		assert.False(t, dto.Approved && dto.ManualReview,
			"decision for %v is both approved and under review", rec.Endorsements)
	}
}

func TestDecide_Deterministic(t *testing.T) {
	rec := validRecord(end("SP30", 3), end("SP40", 3))

	first := testEngine().Decide(rec)
	second := testEngine().Decide(rec)

	assert.Equal(t, first, second)
}
