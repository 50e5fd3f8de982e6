package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Driving record events
	EventRecordProcessed = "record.processed"
	EventRecordApproved  = "record.decision.approved"
	EventRecordReferred  = "record.decision.referred"
	EventRecordDeclined  = "record.decision.declined"

	// Onboarding flow events
	EventOnboardingStarted = "onboarding.started"
	EventStepRouted        = "onboarding.step.routed"
	EventKYCCompleted      = "onboarding.kyc.completed"
	EventSignatureReady    = "onboarding.signature.ready"
)

// Exchange names
const (
	ExchangeRecordEvents     = "record.events"
	ExchangeOnboardingEvents = "onboarding.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// GenerateEventID creates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// RecordProcessedEvent is published once extraction has produced a
// structured record, before the underwriting decision.
type RecordProcessedEvent struct {
	DriverID    string   `json:"driver_id"`
	TotalPoints int      `json:"total_points"`
	Valid       bool     `json:"valid"`
	Issues      []string `json:"issues,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// RecordDecisionEvent is published after a driving record has been
// processed and an underwriting decision produced.
type RecordDecisionEvent struct {
	DriverID    string   `json:"driver_id"`
	DriverEmail string   `json:"driver_email,omitempty"`
	Outcome     string   `json:"outcome"`
	RiskTier    string   `json:"risk_tier"`
	Excess      int      `json:"excess"`
	TotalPoints int      `json:"total_points"`
	Reasons     []string `json:"reasons"`
}

// StepRoutedEvent is published when the routing machine resolves a next step
type StepRoutedEvent struct {
	DriverID      string `json:"driver_id"`
	CompletedStep string `json:"completed_step,omitempty"`
	NextStep      string `json:"next_step"`
	Reason        string `json:"reason"`
}

// KYCCompletedEvent is published when the KYC vendor webhook lands
type KYCCompletedEvent struct {
	DriverID  string `json:"driver_id"`
	SessionID string `json:"session_id"`
	Verified  bool   `json:"verified"`
}

// SignatureReadyEvent is published when routing resolves the signature
// step, meaning every required document has been verified.
type SignatureReadyEvent struct {
	DriverID string `json:"driver_id"`
	Reason   string `json:"reason"`
}
