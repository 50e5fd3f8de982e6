package routing

import (
	"fmt"
	"strings"

	"github.com/driveline/driveline-backend/internal/onboarding/domain"
	"github.com/driveline/driveline-backend/pkg/logger"
)

// Machine computes the next workflow step from a document-validity
// snapshot and the caller's self-reported last completed step. It holds
// no state between calls.
type Machine struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Machine {
	return &Machine{log: log}
}

// NextStep evaluates the routing table top to bottom and returns the
// first match. The result is a pure function of its inputs.
func (m *Machine) NextStep(snap *domain.DocumentValiditySnapshot, justCompleted string) domain.RoutingStep {
	if snap.AllValid() {
		return domain.RoutingStep{
			Step:   domain.StepSignature,
			Reason: "all documents are valid",
		}
	}

	switch justCompleted {
	case domain.MarkerInsuranceQuestionnaire:
		missing := snap.MissingCoreDocuments()
		switch len(missing) {
		case 0:
			return m.fourthDocumentStep(snap)
		case 3:
			return domain.RoutingStep{
				Step:   domain.StepFullVerification,
				Reason: "licence and both proofs of address require verification",
			}
		default:
			return domain.RoutingStep{
				Step:   domain.StepSelectiveVerification,
				Reason: fmt.Sprintf("verification required for: %s", strings.Join(missing, ", ")),
			}
		}

	case domain.MarkerKYCComplete, domain.MarkerProcessingHub:
		if !snap.ProofOfAddress1.Valid || !snap.ProofOfAddress2.Valid {
			return domain.RoutingStep{
				Step:   domain.StepProofOfAddress,
				Reason: "proof of address requires validation",
			}
		}
		if !snap.DrivingRecordOrPassport.Valid {
			return m.fourthDocumentStep(snap)
		}

	case domain.MarkerProofOfAddressComplete:
		if !snap.DrivingRecordOrPassport.Valid {
			return m.fourthDocumentStep(snap)
		}

	case domain.MarkerDomesticRecordCheckComplete, domain.MarkerPassportCheckComplete:
		return domain.RoutingStep{
			Step:   domain.StepSignature,
			Reason: "verification checks are complete",
		}
	}

	return m.fallback(snap, justCompleted)
}

// fourthDocumentStep routes to the fourth document class check; which
// class applies is governed by the licence issuer alone.
func (m *Machine) fourthDocumentStep(snap *domain.DocumentValiditySnapshot) domain.RoutingStep {
	if snap.IsDomesticLicenseHolder {
		return domain.RoutingStep{
			Step:   domain.StepDomesticRecordCheck,
			Reason: "domestic driving record check required",
		}
	}
	return domain.RoutingStep{
		Step:   domain.StepPassportCheck,
		Reason: "passport check required",
	}
}

var knownMarkers = map[string]bool{
	domain.MarkerInsuranceQuestionnaire:      true,
	domain.MarkerKYCComplete:                 true,
	domain.MarkerProcessingHub:               true,
	domain.MarkerProofOfAddressComplete:      true,
	domain.MarkerDomesticRecordCheckComplete: true,
	domain.MarkerPassportCheckComplete:       true,
}

// fallback recomputes a safe default from the raw validity booleans.
// Known markers land here too when none of their conditions held, so
// only a marker the table has never heard of is worth a warning.
func (m *Machine) fallback(snap *domain.DocumentValiditySnapshot, justCompleted string) domain.RoutingStep {
	if m.log != nil && justCompleted != "" && !knownMarkers[justCompleted] {
		m.log.Warn().
			Str("just_completed", justCompleted).
			Msg("unrecognized completed step, routing from document validity")
	}

	missing := snap.MissingCoreDocuments()
	switch {
	case len(missing) == 3:
		return domain.RoutingStep{
			Step:   domain.StepFullVerification,
			Reason: "licence and both proofs of address require verification",
		}
	case len(missing) > 0:
		return domain.RoutingStep{
			Step:   domain.StepSelectiveVerification,
			Reason: fmt.Sprintf("verification required for: %s", strings.Join(missing, ", ")),
		}
	default:
		return domain.RoutingStep{
			Step:   domain.StepSignature,
			Reason: "core documents are valid",
		}
	}
}
