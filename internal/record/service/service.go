package service

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/driveline/driveline-backend/internal/board"
	"github.com/driveline/driveline-backend/internal/ocr"
	"github.com/driveline/driveline-backend/internal/onboarding/domain"
	recorddomain "github.com/driveline/driveline-backend/internal/record/domain"
	"github.com/driveline/driveline-backend/internal/record/extractor"
	"github.com/driveline/driveline-backend/internal/record/repository"
	"github.com/driveline/driveline-backend/internal/underwriting"
	"github.com/driveline/driveline-backend/pkg/logger"
	"github.com/driveline/driveline-backend/pkg/messaging"
)

// DriverStore reads and writes driver fields on the board
type DriverStore interface {
	GetDriver(ctx context.Context, driverID string) (*domain.DriverFields, error)
	UpdateFields(ctx context.Context, driverID string, fields map[string]interface{}) error
}

// Recognizer turns an uploaded document into OCR text
type Recognizer interface {
	Recognize(ctx context.Context, fileURL string) (*ocr.Result, error)
}

// AuditStore persists decision audit rows
type AuditStore interface {
	Create(ctx context.Context, audit *repository.DecisionAudit) error
	LatestByDriver(ctx context.Context, driverID string) (*repository.DecisionAudit, error)
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Service processes driving-record uploads end to end: recognize,
// extract, decide, audit, publish, write back to the board.
type Service struct {
	store      DriverStore
	recognizer Recognizer
	extractor  *extractor.Extractor
	engine     *underwriting.Engine
	audits     AuditStore
	publisher  EventPublisher
	logger     *logger.Logger
	now        func() time.Time
}

func New(
	store DriverStore,
	recognizer Recognizer,
	ext *extractor.Extractor,
	engine *underwriting.Engine,
	audits AuditStore,
	publisher EventPublisher,
	log *logger.Logger,
) *Service {
	return &Service{
		store:      store,
		recognizer: recognizer,
		extractor:  ext,
		engine:     engine,
		audits:     audits,
		publisher:  publisher,
		logger:     log,
		now:        time.Now,
	}
}

// ProcessResult is returned to the caller after a record is processed
type ProcessResult struct {
	Extract  *recorddomain.DrivingRecordExtract `json:"extract"`
	Decision underwriting.DTO                   `json:"decision"`
}

// ProcessDrivingRecord runs the full pipeline for one uploaded record
func (s *Service) ProcessDrivingRecord(ctx context.Context, driverID, fileURL string) (*ProcessResult, error) {
	log := s.logger.WithDriverID(driverID)

	fields, err := s.store.GetDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	ocrResult, err := s.recognizer.Recognize(ctx, fileURL)
	if err != nil {
		return nil, err
	}

	rec := s.extractor.Extract(ocrResult.Text)

	// The board holds the licence number the driver entered; the
	// document masks its leading characters, so only the extracted
	// trailing fragment can be compared.
	if fields.LicenseNumber != "" && rec.LicenseFragment != "" {
		if !recorddomain.MatchesFragment(fields.LicenseNumber, rec.LicenseFragment) {
			rec.Issues = append(rec.Issues, "licence number on record does not match the registered licence")
			rec.IsValid = false
		}
	}

	s.publishProcessed(ctx, driverID, rec, ocrResult.Confidence)

	decision := s.engine.Decide(rec)

	log.Info().
		Str("outcome", string(decision.Outcome)).
		Str("risk_tier", string(decision.RiskTier)).
		Int("total_points", rec.TotalPoints).
		Str("confidence", string(rec.Confidence)).
		Msg("driving record processed")

	audit := &repository.DecisionAudit{
		DriverID:      driverID,
		Outcome:       string(decision.Outcome),
		RiskTier:      string(decision.RiskTier),
		Excess:        decision.Excess,
		TotalPoints:   rec.TotalPoints,
		Confidence:    string(rec.Confidence),
		RecordAgeDays: rec.AgeInDays,
		Reasons:       pq.StringArray(decision.Reasons),
		Issues:        pq.StringArray(rec.Issues),
	}
	if rec.LicenseFragment != "" {
		fragment := rec.LicenseFragment
		audit.LicenseFragment = &fragment
	}
	if err := s.audits.Create(ctx, audit); err != nil {
		// An audit failure must not lose the decision, it is logged
		// and the pipeline continues.
		log.Error().Err(err).Msg("failed to persist decision audit")
	}

	s.publishDecision(ctx, fields, rec, decision)

	if err := s.writeBack(ctx, driverID, decision); err != nil {
		log.Error().Err(err).Msg("failed to write decision back to board")
	}

	return &ProcessResult{
		Extract:  rec,
		Decision: decision.DTO(),
	}, nil
}

// LatestDecision returns a driver's most recent audit row
func (s *Service) LatestDecision(ctx context.Context, driverID string) (*repository.DecisionAudit, error) {
	return s.audits.LatestByDriver(ctx, driverID)
}

func (s *Service) publishProcessed(ctx context.Context, driverID string, rec *recorddomain.DrivingRecordExtract, confidence float64) {
	event := &messaging.RecordProcessedEvent{
		DriverID:    driverID,
		TotalPoints: rec.TotalPoints,
		Valid:       rec.IsValid,
		Issues:      rec.Issues,
		Confidence:  confidence,
	}
	if err := s.publisher.Publish(ctx, messaging.EventRecordProcessed, event); err != nil {
		s.logger.WithDriverID(driverID).Error().Err(err).Msg("failed to publish record processed event")
	}
}

func (s *Service) publishDecision(ctx context.Context, fields *domain.DriverFields, rec *recorddomain.DrivingRecordExtract, decision underwriting.Decision) {
	eventType := messaging.EventRecordReferred
	switch decision.Outcome {
	case underwriting.OutcomeApproved:
		eventType = messaging.EventRecordApproved
	case underwriting.OutcomeDeclined:
		eventType = messaging.EventRecordDeclined
	}

	event := &messaging.RecordDecisionEvent{
		DriverID:    fields.DriverID,
		DriverEmail: fields.Email,
		Outcome:     string(decision.Outcome),
		RiskTier:    string(decision.RiskTier),
		Excess:      decision.Excess,
		TotalPoints: rec.TotalPoints,
		Reasons:     decision.Reasons,
	}
	if err := s.publisher.Publish(ctx, eventType, event); err != nil {
		s.logger.WithDriverID(fields.DriverID).Error().Err(err).Msg("failed to publish decision event")
	}
}

// writeBack updates the board so the routing machine sees the result of
// this check on the next request.
func (s *Service) writeBack(ctx context.Context, driverID string, decision underwriting.Decision) error {
	fields := map[string]interface{}{
		"record_outcome": string(decision.Outcome),
	}
	if decision.Approved() {
		fields["record_check_due"] = board.RecordCheckDueDate(s.now()).Format("2006-01-02")
	}
	return s.store.UpdateFields(ctx, driverID, fields)
}
