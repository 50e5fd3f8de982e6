package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/driveline-backend/internal/ocr"
	"github.com/driveline/driveline-backend/internal/onboarding/domain"
	"github.com/driveline/driveline-backend/internal/record/extractor"
	"github.com/driveline/driveline-backend/internal/record/repository"
	"github.com/driveline/driveline-backend/internal/record/service"
	"github.com/driveline/driveline-backend/internal/session"
	"github.com/driveline/driveline-backend/internal/underwriting"
	"github.com/driveline/driveline-backend/pkg/config"
	"github.com/driveline/driveline-backend/pkg/errors"
	"github.com/driveline/driveline-backend/pkg/logger"
)

const recordText = `DVLA Driving Record

Licence number: XXXXXXXX 657054SM
Driver name: JANE ELIZABETH MORGAN
Check code: Kd 4x Tf 2m
Date generated: 14 February 2026 09:41

SP30 Exceeding statutory speed limit on a public road  3 points

Categories: B, BE
`

type stubStore struct{}

func (stubStore) GetDriver(ctx context.Context, driverID string) (*domain.DriverFields, error) {
	if driverID == "missing" {
		return nil, errors.NotFound("driver")
	}
	return &domain.DriverFields{
		DriverID:      driverID,
		Email:         "driver@example.com",
		LicenseNumber: "MORGA657054SM",
	}, nil
}

func (stubStore) UpdateFields(ctx context.Context, driverID string, fields map[string]interface{}) error {
	return nil
}

type stubRecognizer struct{}

func (stubRecognizer) Recognize(ctx context.Context, fileURL string) (*ocr.Result, error) {
	return &ocr.Result{Text: recordText, Confidence: 0.95}, nil
}

type stubAudits struct{}

func (stubAudits) Create(ctx context.Context, audit *repository.DecisionAudit) error { return nil }

func (stubAudits) LatestByDriver(ctx context.Context, driverID string) (*repository.DecisionAudit, error) {
	if driverID == "missing" {
		return nil, errors.NotFound("decision audit")
	}
	return &repository.DecisionAudit{ID: "audit-1", DriverID: driverID, Outcome: "approved"}, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	return nil
}

func setupRouter() (*chi.Mux, *session.Manager) {
	log := logger.New("record-handler-test", "test")
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	cfg := config.UnderwritingConfig{
		MaxRecordAgeDays:           30,
		SeriousOffenceCodes:        []string{"DR10"},
		DisqualificationKeywords:   []string{"disqualif"},
		ModerateSingleOffenceCodes: []string{"SP30"},
		MediumRiskExcess:           1000,
		HighRiskExcess:             1500,
		RecentOffenceExcess:        500,
		RecentOffenceMonths:        12,
		DeclinePointsThreshold:     9,
	}

	svc := service.New(
		stubStore{},
		stubRecognizer{},
		extractor.NewWithClock(30, clock),
		underwriting.NewEngineWithClock(underwriting.NewPolicy(cfg), clock),
		stubAudits{},
		nopPublisher{},
		log,
	)

	sessions := session.NewManager(&config.SessionConfig{Secret: "test", Expiry: time.Hour, Issuer: "test"})

	r := chi.NewRouter()
	NewHandler(svc, log).Routes(r, session.Middleware(sessions, log))
	return r, sessions
}

func bearerToken(t *testing.T, sessions *session.Manager, driverID string) string {
	t.Helper()
	token, err := sessions.Generate(driverID, "driver@example.com")
	require.NoError(t, err)
	return "Bearer " + token.Value
}

func TestProcess(t *testing.T) {
	router, sessions := setupRouter()

	body := `{"driver_id":"drv-100","file_url":"https://files.example.com/record.pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/documents/driving-record", strings.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, sessions, "drv-100"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"approved":true`)
	assert.Contains(t, rec.Body.String(), "657054SM")
}

func TestProcess_MissingFileURL(t *testing.T) {
	router, sessions := setupRouter()

	body := `{"driver_id":"drv-100"}`
	req := httptest.NewRequest(http.MethodPost, "/documents/driving-record", strings.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, sessions, "drv-100"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcess_DriverNotFound(t *testing.T) {
	router, sessions := setupRouter()

	body := `{"driver_id":"missing","file_url":"https://files.example.com/record.pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/documents/driving-record", strings.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, sessions, "missing"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestDecision(t *testing.T) {
	router, sessions := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/drivers/drv-100/decision", nil)
	req.Header.Set("Authorization", bearerToken(t, sessions, "drv-100"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "audit-1")
}

func TestProcess_NoToken(t *testing.T) {
	router, _ := setupRouter()

	body := `{"driver_id":"drv-100","file_url":"https://files.example.com/record.pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/documents/driving-record", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProcess_TokenForOtherDriver(t *testing.T) {
	router, sessions := setupRouter()

	body := `{"driver_id":"drv-100","file_url":"https://files.example.com/record.pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/documents/driving-record", strings.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, sessions, "drv-999"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
