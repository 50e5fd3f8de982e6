package underwriting

import (
	"fmt"
	"time"

	"github.com/driveline/driveline-backend/internal/record/domain"
)

// Engine evaluates a driving-record extract against the underwriting
// policy. Decide is a pure function: no I/O, deterministic for a fixed
// clock, safe to call repeatedly with the same input.
type Engine struct {
	policy *Policy
	now    func() time.Time
}

// NewEngine creates an engine over the given policy
func NewEngine(policy *Policy) *Engine {
	return &Engine{policy: policy, now: time.Now}
}

// NewEngineWithClock creates an engine with an injected clock for tests
func NewEngineWithClock(policy *Policy, now func() time.Time) *Engine {
	return &Engine{policy: policy, now: now}
}

// Decide applies the decision rules in order; the first matching rule
// wins. The recent-offence excess floor is the one exception: it stacks
// on top of an approved result without ever changing the outcome.
func (e *Engine) Decide(rec *domain.DrivingRecordExtract) Decision {
	if d, done := e.checkValidity(rec); done {
		return d
	}
	if d, done := e.checkSeriousOffences(rec); done {
		return d
	}

	d := e.decideOnPoints(rec)

	if d.Outcome == OutcomeApproved {
		e.applyRecentOffenceFloor(rec, &d)
	}

	return d
}

// checkValidity refers any record that failed structural extraction or
// is older than the freshness cutoff.
func (e *Engine) checkValidity(rec *domain.DrivingRecordExtract) (Decision, bool) {
	if !rec.IsValid || rec.AgeInDays > e.policy.MaxRecordAgeDays {
		return Decision{
			Outcome:  OutcomeReferred,
			RiskTier: RiskStandard,
			Reasons:  []string{"driving record could not be validated"},
		}, true
	}
	return Decision{}, false
}

// checkSeriousOffences hard-stops on any serious code or on
// disqualification wording anywhere in the raw text. Serious offences
// always override the points tiers regardless of the total.
func (e *Engine) checkSeriousOffences(rec *domain.DrivingRecordExtract) (Decision, bool) {
	for _, end := range rec.Endorsements {
		if e.policy.IsSerious(end.Code) {
			return Decision{
				Outcome:  OutcomeReferred,
				RiskTier: RiskHigh,
				Reasons:  []string{fmt.Sprintf("serious offence %s requires manual review", end.Code)},
			}, true
		}
	}

	if kw := e.policy.DisqualificationKeyword(rec.RawText); kw != "" {
		return Decision{
			Outcome:  OutcomeReferred,
			RiskTier: RiskHigh,
			Reasons:  []string{fmt.Sprintf("record mentions %q and requires manual review", kw)},
		}, true
	}

	return Decision{}, false
}

func (e *Engine) decideOnPoints(rec *domain.DrivingRecordExtract) Decision {
	tp := rec.TotalPoints

	switch {
	case tp == 0:
		return Decision{
			Outcome:  OutcomeApproved,
			RiskTier: RiskLow,
			Reasons:  []string{"clean driving record"},
		}

	case tp <= 3:
		return Decision{
			Outcome:  OutcomeApproved,
			RiskTier: RiskMedium,
			Excess:   e.policy.MediumRiskExcess,
			Reasons:  []string{fmt.Sprintf("%d penalty points within moderate band", tp)},
		}

	case tp <= 6 && e.singleModerateEndorsement(rec):
		return Decision{
			Outcome:  OutcomeApproved,
			RiskTier: RiskMedium,
			Excess:   e.policy.MediumRiskExcess,
			Reasons:  []string{fmt.Sprintf("single moderate offence %s approved with raised excess", rec.Endorsements[0].Code)},
		}

	case tp <= 6:
		return Decision{
			Outcome:  OutcomeReferred,
			RiskTier: RiskMedium,
			Reasons:  []string{fmt.Sprintf("%d penalty points across mixed offences require manual review", tp)},
		}

	case tp == 9 && e.threeThreePointEndorsements(rec):
		return Decision{
			Outcome:  OutcomeApproved,
			RiskTier: RiskHigh,
			Excess:   e.policy.HighRiskExcess,
			Reasons:  []string{"nine points from three minor offences approved with raised excess"},
		}

	case tp > e.policy.DeclinePointsThreshold:
		return Decision{
			Outcome:  OutcomeDeclined,
			RiskTier: RiskHigh,
			Reasons:  []string{fmt.Sprintf("%d penalty points exceed insurable limits", tp)},
		}

	default:
		return Decision{
			Outcome:  OutcomeReferred,
			RiskTier: RiskHigh,
			Reasons:  []string{fmt.Sprintf("%d penalty points require manual review", tp)},
		}
	}
}

// singleModerateEndorsement is the 4-6 point concession: exactly one
// endorsement carrying the whole total, with a code on the moderate
// allow-list.
func (e *Engine) singleModerateEndorsement(rec *domain.DrivingRecordExtract) bool {
	if len(rec.Endorsements) != 1 {
		return false
	}
	end := rec.Endorsements[0]
	return end.Points == rec.TotalPoints && e.policy.IsModerateSingle(end.Code)
}

// threeThreePointEndorsements: nine points qualify only when they
// decompose into exactly three 3-point endorsements.
func (e *Engine) threeThreePointEndorsements(rec *domain.DrivingRecordExtract) bool {
	if len(rec.Endorsements) != 3 {
		return false
	}
	for _, end := range rec.Endorsements {
		if end.Points != 3 {
			return false
		}
	}
	return true
}

// applyRecentOffenceFloor raises the excess to at least the configured
// minimum when any offence falls in the trailing window. It never
// changes the outcome, only the excess figure.
func (e *Engine) applyRecentOffenceFloor(rec *domain.DrivingRecordExtract, d *Decision) {
	cutoff := e.now().AddDate(0, -e.policy.RecentOffenceMonths, 0)

	for _, end := range rec.Endorsements {
		if end.OffenceDate != nil && end.OffenceDate.After(cutoff) {
			if d.Excess < e.policy.RecentOffenceExcess {
				d.Excess = e.policy.RecentOffenceExcess
			}
			d.Reasons = append(d.Reasons,
				fmt.Sprintf("offence within the last %d months raises the minimum excess", e.policy.RecentOffenceMonths))
			return
		}
	}
}
