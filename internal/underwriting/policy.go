package underwriting

import (
	"strings"

	"github.com/driveline/driveline-backend/pkg/config"
)

// Policy holds the underwriting tables in a form the engine can query.
// All values are policy-owned and arrive via configuration; nothing in
// this package hard-codes a points cutoff or an offence list.
type Policy struct {
	MaxRecordAgeDays       int
	MediumRiskExcess       int
	HighRiskExcess         int
	RecentOffenceExcess    int
	RecentOffenceMonths    int
	DeclinePointsThreshold int

	seriousCodes             map[string]bool
	moderateSingleCodes      map[string]bool
	disqualificationKeywords []string
}

// NewPolicy builds a Policy from the underwriting configuration
func NewPolicy(cfg config.UnderwritingConfig) *Policy {
	p := &Policy{
		MaxRecordAgeDays:       cfg.MaxRecordAgeDays,
		MediumRiskExcess:       cfg.MediumRiskExcess,
		HighRiskExcess:         cfg.HighRiskExcess,
		RecentOffenceExcess:    cfg.RecentOffenceExcess,
		RecentOffenceMonths:    cfg.RecentOffenceMonths,
		DeclinePointsThreshold: cfg.DeclinePointsThreshold,
		seriousCodes:           make(map[string]bool),
		moderateSingleCodes:    make(map[string]bool),
	}

	for _, code := range cfg.SeriousOffenceCodes {
		p.seriousCodes[strings.ToUpper(code)] = true
	}
	for _, code := range cfg.ModerateSingleOffenceCodes {
		p.moderateSingleCodes[strings.ToUpper(code)] = true
	}
	for _, kw := range cfg.DisqualificationKeywords {
		p.disqualificationKeywords = append(p.disqualificationKeywords, strings.ToLower(kw))
	}

	return p
}

// IsSerious reports whether a code is in the serious-offence list
func (p *Policy) IsSerious(code string) bool {
	return p.seriousCodes[strings.ToUpper(code)]
}

// IsModerateSingle reports whether a code qualifies for approval as a
// single moderate endorsement.
func (p *Policy) IsModerateSingle(code string) bool {
	return p.moderateSingleCodes[strings.ToUpper(code)]
}

// DisqualificationKeyword returns the first disqualification keyword
// found anywhere in the raw record text, or "" when none is present.
func (p *Policy) DisqualificationKeyword(rawText string) string {
	lower := strings.ToLower(rawText)
	for _, kw := range p.disqualificationKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}
