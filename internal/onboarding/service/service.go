package service

import (
	"context"
	"time"

	"github.com/driveline/driveline-backend/internal/board"
	"github.com/driveline/driveline-backend/internal/kyc"
	"github.com/driveline/driveline-backend/internal/onboarding/classifier"
	"github.com/driveline/driveline-backend/internal/onboarding/domain"
	"github.com/driveline/driveline-backend/internal/onboarding/routing"
	"github.com/driveline/driveline-backend/internal/onboarding/watch"
	"github.com/driveline/driveline-backend/internal/session"
	"github.com/driveline/driveline-backend/pkg/logger"
	"github.com/driveline/driveline-backend/pkg/messaging"
)

// DriverStore reads and writes driver fields on the board
type DriverStore interface {
	CreateDriver(ctx context.Context, req *board.CreateDriverRequest) (*domain.DriverFields, error)
	GetDriver(ctx context.Context, driverID string) (*domain.DriverFields, error)
	UpdateFields(ctx context.Context, driverID string, fields map[string]interface{}) error
}

// KYCVendor starts verification sessions and validates webhooks
type KYCVendor interface {
	CreateSession(ctx context.Context, driverID, email string) (*kyc.Session, error)
	VerifyWebhook(body []byte, signature string) (*kyc.WebhookEvent, error)
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Service drives the onboarding workflow: session issue, document
// validity classification, step routing, and webhook waiting.
type Service struct {
	store      DriverStore
	vendor     KYCVendor
	sessions   *session.Manager
	classifier *classifier.Classifier
	machine    *routing.Machine
	detector   *watch.Detector
	publisher  EventPublisher
	logger     *logger.Logger
	now        func() time.Time

	pollInterval time.Duration
	maxAttempts  int
}

func New(
	store DriverStore,
	vendor KYCVendor,
	sessions *session.Manager,
	cls *classifier.Classifier,
	machine *routing.Machine,
	detector *watch.Detector,
	publisher EventPublisher,
	log *logger.Logger,
) *Service {
	return &Service{
		store:        store,
		vendor:       vendor,
		sessions:     sessions,
		classifier:   cls,
		machine:      machine,
		detector:     detector,
		publisher:    publisher,
		logger:       log,
		now:          time.Now,
		pollInterval: 2 * time.Second,
		maxAttempts:  20,
	}
}

// StartResult is returned when a driver begins onboarding
type StartResult struct {
	DriverID       string         `json:"driver_id"`
	Session        *session.Token `json:"session"`
	KYCRedirectURL string         `json:"kyc_redirect_url,omitempty"`
}

// Start creates the driver on the board, opens a KYC session and
// issues an onboarding session token.
func (s *Service) Start(ctx context.Context, email, fullName string) (*StartResult, error) {
	fields, err := s.store.CreateDriver(ctx, &board.CreateDriverRequest{
		Email:    email,
		FullName: fullName,
	})
	if err != nil {
		return nil, err
	}
	log := s.logger.WithDriverID(fields.DriverID)

	kycSession, err := s.vendor.CreateSession(ctx, fields.DriverID, email)
	if err != nil {
		// Onboarding can continue without KYC; the routing machine will
		// keep the driver on verification steps until it lands.
		log.Error().Err(err).Msg("failed to create KYC session")
	}

	token, err := s.sessions.Generate(fields.DriverID, email)
	if err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, messaging.EventOnboardingStarted, map[string]string{
		"driver_id": fields.DriverID,
		"email":     email,
	}); err != nil {
		log.Error().Err(err).Msg("failed to publish onboarding started event")
	}

	result := &StartResult{
		DriverID: fields.DriverID,
		Session:  token,
	}
	if kycSession != nil {
		result.KYCRedirectURL = kycSession.RedirectURL
	}
	return result, nil
}

// StepResult pairs the routed step with the snapshot it was derived from
type StepResult struct {
	Step     domain.RoutingStep              `json:"step"`
	Snapshot domain.DocumentValiditySnapshot `json:"snapshot"`
}

// NextStep classifies the driver's documents and routes the next step
func (s *Service) NextStep(ctx context.Context, driverID, justCompleted string) (*StepResult, error) {
	fields, err := s.store.GetDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	snap := s.classifier.Classify(s.now(), fields)
	step := s.machine.NextStep(&snap, justCompleted)

	s.logger.WithDriverID(driverID).Info().
		Str("just_completed", justCompleted).
		Str("next_step", string(step.Step)).
		Msg("routed onboarding step")

	if err := s.publisher.Publish(ctx, messaging.EventStepRouted, &messaging.StepRoutedEvent{
		DriverID:      driverID,
		CompletedStep: justCompleted,
		NextStep:      string(step.Step),
		Reason:        step.Reason,
	}); err != nil {
		s.logger.WithDriverID(driverID).Error().Err(err).Msg("failed to publish step routed event")
	}

	if step.Step == domain.StepSignature {
		if err := s.publisher.Publish(ctx, messaging.EventSignatureReady, &messaging.SignatureReadyEvent{
			DriverID: driverID,
			Reason:   step.Reason,
		}); err != nil {
			s.logger.WithDriverID(driverID).Error().Err(err).Msg("failed to publish signature ready event")
		}
	}

	return &StepResult{Step: step, Snapshot: snap}, nil
}

// VerificationStatus is the result of waiting for the KYC webhook
type VerificationStatus struct {
	Completed bool                             `json:"completed"`
	Snapshot  *domain.DocumentValiditySnapshot `json:"snapshot,omitempty"`
}

// AwaitVerification polls the board until a watched field changes,
// the attempt budget runs out, or ctx is cancelled. The caller may
// retry with identical inputs; polling holds no server-side state.
func (s *Service) AwaitVerification(ctx context.Context, driverID string) (*VerificationStatus, error) {
	baseline, err := s.store.GetDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		current, err := s.store.GetDriver(ctx, driverID)
		if err != nil {
			return nil, err
		}

		if snap, ok := s.detector.Detect(s.now(), baseline, current).Snapshot(); ok {
			s.logger.WithDriverID(driverID).Info().
				Int("attempts", attempt+1).
				Msg("verification webhook landed")
			return &VerificationStatus{Completed: true, Snapshot: &snap}, nil
		}
	}

	return &VerificationStatus{Completed: false}, nil
}

// ProcessKYCWebhook validates and applies the vendor's callback
func (s *Service) ProcessKYCWebhook(ctx context.Context, body []byte, signature string) (*kyc.WebhookEvent, error) {
	event, err := s.vendor.VerifyWebhook(body, signature)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithDriverID(event.Reference)
	log.Info().
		Str("session_id", event.SessionID).
		Str("status", event.Status).
		Msg("KYC webhook received")

	if err := s.publisher.Publish(ctx, messaging.EventKYCCompleted, &messaging.KYCCompletedEvent{
		DriverID:  event.Reference,
		SessionID: event.SessionID,
		Verified:  event.Status == kyc.WebhookStatusApproved,
	}); err != nil {
		log.Error().Err(err).Msg("failed to publish KYC completed event")
	}

	return event, nil
}
