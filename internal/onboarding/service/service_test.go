package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/driveline-backend/internal/board"
	"github.com/driveline/driveline-backend/internal/kyc"
	"github.com/driveline/driveline-backend/internal/onboarding/classifier"
	"github.com/driveline/driveline-backend/internal/onboarding/domain"
	"github.com/driveline/driveline-backend/internal/onboarding/routing"
	"github.com/driveline/driveline-backend/internal/onboarding/watch"
	"github.com/driveline/driveline-backend/internal/session"
	"github.com/driveline/driveline-backend/pkg/config"
	"github.com/driveline/driveline-backend/pkg/logger"
	"github.com/driveline/driveline-backend/pkg/messaging"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

type fakeStore struct {
	mu     sync.Mutex
	fields *domain.DriverFields
	reads  int
	// swapAfter replaces fields once this many reads have happened
	swapAfter int
	swapTo    *domain.DriverFields
}

func (f *fakeStore) CreateDriver(ctx context.Context, req *board.CreateDriverRequest) (*domain.DriverFields, error) {
	return &domain.DriverFields{DriverID: "drv-new", Email: req.Email, FullName: req.FullName}, nil
}

func (f *fakeStore) GetDriver(ctx context.Context, driverID string) (*domain.DriverFields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.swapTo != nil && f.reads > f.swapAfter {
		return f.swapTo, nil
	}
	return f.fields, nil
}

func (f *fakeStore) UpdateFields(ctx context.Context, driverID string, fields map[string]interface{}) error {
	return nil
}

type fakeVendor struct {
	session    *kyc.Session
	sessionErr error
	event      *kyc.WebhookEvent
	verifyErr  error
}

func (f *fakeVendor) CreateSession(ctx context.Context, driverID, email string) (*kyc.Session, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return f.session, nil
}

func (f *fakeVendor) VerifyWebhook(body []byte, signature string) (*kyc.WebhookEvent, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.event, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

func validFields() *domain.DriverFields {
	return &domain.DriverFields{
		DriverID:           "drv-100",
		Email:              "driver@example.com",
		LicenseIssuer:      "DVLA",
		LicenseExpiry:      timePtr(testNow.AddDate(1, 0, 0)),
		ProofOfAddress1Due: timePtr(testNow.AddDate(0, 2, 0)),
		ProofOfAddress2Due: timePtr(testNow.AddDate(0, 2, 0)),
		RecordCheckDue:     timePtr(testNow.AddDate(0, 6, 0)),
	}
}

func setupService(store *fakeStore, vendor *fakeVendor) (*Service, *fakePublisher) {
	log := logger.New("onboarding-test", "test")
	cls := classifier.New(30)
	publisher := &fakePublisher{}

	svc := New(
		store,
		vendor,
		session.NewManager(&config.SessionConfig{Secret: "test", Expiry: time.Hour, Issuer: "test"}),
		cls,
		routing.New(log),
		watch.NewDetector(cls, watch.KYCCompletionFields),
		publisher,
		log,
	)
	svc.now = func() time.Time { return testNow }
	svc.pollInterval = 5 * time.Millisecond
	svc.maxAttempts = 5
	return svc, publisher
}

func TestStart(t *testing.T) {
	vendor := &fakeVendor{session: &kyc.Session{ID: "sess-1", RedirectURL: "https://verify.example.com/sess-1"}}
	svc, publisher := setupService(&fakeStore{}, vendor)

	result, err := svc.Start(context.Background(), "driver@example.com", "Jane Morgan")
	require.NoError(t, err)

	assert.Equal(t, "drv-new", result.DriverID)
	assert.NotEmpty(t, result.Session.Value)
	assert.Equal(t, "https://verify.example.com/sess-1", result.KYCRedirectURL)
	assert.Contains(t, publisher.events, messaging.EventOnboardingStarted)
}

func TestStart_KYCFailureDoesNotBlock(t *testing.T) {
	vendor := &fakeVendor{sessionErr: assert.AnError}
	svc, _ := setupService(&fakeStore{}, vendor)

	result, err := svc.Start(context.Background(), "driver@example.com", "Jane Morgan")
	require.NoError(t, err)
	assert.Empty(t, result.KYCRedirectURL)
	assert.NotEmpty(t, result.Session.Value)
}

func TestNextStep_AllValidSignature(t *testing.T) {
	store := &fakeStore{fields: validFields()}
	svc, publisher := setupService(store, &fakeVendor{})

	result, err := svc.NextStep(context.Background(), "drv-100", domain.MarkerKYCComplete)
	require.NoError(t, err)

	assert.Equal(t, domain.StepSignature, result.Step.Step)
	assert.True(t, result.Snapshot.AllValid())
	assert.Contains(t, publisher.events, messaging.EventStepRouted)
	assert.Contains(t, publisher.events, messaging.EventSignatureReady)
}

func TestNextStep_SignatureReadyOnlyWhenRouted(t *testing.T) {
	fields := validFields()
	fields.ProofOfAddress1Due = nil
	store := &fakeStore{fields: fields}
	svc, publisher := setupService(store, &fakeVendor{})

	_, err := svc.NextStep(context.Background(), "drv-100", domain.MarkerKYCComplete)
	require.NoError(t, err)

	assert.Contains(t, publisher.events, messaging.EventStepRouted)
	assert.NotContains(t, publisher.events, messaging.EventSignatureReady)
}

func TestNextStep_MissingPOARoutesValidation(t *testing.T) {
	fields := validFields()
	fields.ProofOfAddress1Due = nil
	store := &fakeStore{fields: fields}
	svc, _ := setupService(store, &fakeVendor{})

	result, err := svc.NextStep(context.Background(), "drv-100", domain.MarkerKYCComplete)
	require.NoError(t, err)

	assert.Equal(t, domain.StepProofOfAddress, result.Step.Step)
}

func TestAwaitVerification_CompletesOnFieldChange(t *testing.T) {
	before := validFields()
	before.ProofOfAddress1Due = nil
	after := validFields()

	store := &fakeStore{fields: before, swapAfter: 2, swapTo: after}
	svc, _ := setupService(store, &fakeVendor{})

	status, err := svc.AwaitVerification(context.Background(), "drv-100")
	require.NoError(t, err)

	assert.True(t, status.Completed)
	require.NotNil(t, status.Snapshot)
	assert.True(t, status.Snapshot.ProofOfAddress1.Valid)
}

func TestAwaitVerification_TimesOutPending(t *testing.T) {
	store := &fakeStore{fields: validFields()}
	svc, _ := setupService(store, &fakeVendor{})

	status, err := svc.AwaitVerification(context.Background(), "drv-100")
	require.NoError(t, err)

	assert.False(t, status.Completed)
	assert.Nil(t, status.Snapshot)
}

func TestAwaitVerification_Cancellable(t *testing.T) {
	store := &fakeStore{fields: validFields()}
	svc, _ := setupService(store, &fakeVendor{})
	svc.pollInterval = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := svc.AwaitVerification(ctx, "drv-100")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessKYCWebhook(t *testing.T) {
	vendor := &fakeVendor{event: &kyc.WebhookEvent{
		SessionID: "sess-1",
		Reference: "drv-100",
		Status:    kyc.WebhookStatusApproved,
	}}
	svc, publisher := setupService(&fakeStore{}, vendor)

	event, err := svc.ProcessKYCWebhook(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)

	assert.Equal(t, "drv-100", event.Reference)
	assert.Contains(t, publisher.events, messaging.EventKYCCompleted)
}

func TestProcessKYCWebhook_BadSignature(t *testing.T) {
	vendor := &fakeVendor{verifyErr: assert.AnError}
	svc, publisher := setupService(&fakeStore{}, vendor)

	_, err := svc.ProcessKYCWebhook(context.Background(), []byte(`{}`), "sig")
	assert.Error(t, err)
	assert.Empty(t, publisher.events)
}
