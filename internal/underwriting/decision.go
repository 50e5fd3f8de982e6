package underwriting

// Outcome is the tagged decision variant. Exactly one of the three holds
// for any evaluation, which makes "approved and under review at the same
// time" unrepresentable rather than merely discouraged.
type Outcome string

const (
	// OutcomeApproved means cover can be offered at the stated excess
	OutcomeApproved Outcome = "approved"
	// OutcomeReferred routes the driver to manual underwriting review
	OutcomeReferred Outcome = "referred"
	// OutcomeDeclined is a terminal rejection
	OutcomeDeclined Outcome = "declined"
)

// RiskTier grades an approved (or referred) driver
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskStandard RiskTier = "standard"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
)

// Decision is the result of evaluating one driving record
type Decision struct {
	Outcome  Outcome
	RiskTier RiskTier
	Excess   int // whole pounds
	Reasons  []string
}

// Approved reports whether cover was offered
func (d Decision) Approved() bool { return d.Outcome == OutcomeApproved }

// ManualReview reports whether the driver was referred
func (d Decision) ManualReview() bool { return d.Outcome == OutcomeReferred }

// Declined reports whether the driver was terminally rejected
func (d Decision) Declined() bool { return d.Outcome == OutcomeDeclined }

// DTO is the wire shape consumed by the onboarding UI. The booleans are
// derived from the outcome, so they can never contradict each other.
type DTO struct {
	Approved     bool     `json:"approved"`
	ManualReview bool     `json:"manualReview"`
	Excess       int      `json:"excess"`
	RiskTier     RiskTier `json:"riskTier"`
	Reasons      []string `json:"reasons"`
	Outcome      Outcome  `json:"outcome"`
}

// DTO converts the decision to its wire shape
func (d Decision) DTO() DTO {
	return DTO{
		Approved:     d.Approved(),
		ManualReview: d.ManualReview(),
		Excess:       d.Excess,
		RiskTier:     d.RiskTier,
		Reasons:      d.Reasons,
		Outcome:      d.Outcome,
	}
}
