package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/driveline/driveline-backend/internal/onboarding/service"
	"github.com/driveline/driveline-backend/pkg/errors"
	"github.com/driveline/driveline-backend/pkg/httputil"
	"github.com/driveline/driveline-backend/pkg/logger"
)

const maxWebhookSize = 1 << 20 // 1MB

// Handler handles HTTP requests for the onboarding workflow
type Handler struct {
	service *service.Service
	log     *logger.Logger
}

func NewHandler(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		log:     log,
	}
}

// Routes mounts the onboarding endpoints. Driver-scoped routes sit
// behind the session middleware; starting onboarding and the vendor
// webhook are unauthenticated.
func (h *Handler) Routes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Post("/onboarding/start", h.Start)
	r.Post("/webhooks/kyc", h.KYCWebhook)

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Get("/drivers/{driverID}/next-step", h.NextStep)
		r.Get("/drivers/{driverID}/verification-status", h.VerificationStatus)
	})
}

// StartRequest is the body of POST /onboarding/start
type StartRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
}

// Start handles POST /onboarding/start
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, errors.BadRequest("invalid request body"))
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Start(r.Context(), req.Email, req.FullName)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// NextStep handles GET /drivers/{driverID}/next-step. The optional
// just_completed query parameter carries the caller's last step marker.
func (h *Handler) NextStep(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")
	if driverID == "" {
		httputil.Error(w, errors.BadRequest("driver ID is required"))
		return
	}
	if session := httputil.GetDriverID(r.Context()); session != driverID {
		httputil.Error(w, errors.Forbidden("session does not match driver"))
		return
	}

	result, err := h.service.NextStep(r.Context(), driverID, r.URL.Query().Get("just_completed"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// VerificationStatus handles GET /drivers/{driverID}/verification-status.
// It long-polls the board until the vendor webhook lands or the attempt
// budget is spent; client disconnects cancel the wait.
func (h *Handler) VerificationStatus(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")
	if driverID == "" {
		httputil.Error(w, errors.BadRequest("driver ID is required"))
		return
	}
	if session := httputil.GetDriverID(r.Context()); session != driverID {
		httputil.Error(w, errors.Forbidden("session does not match driver"))
		return
	}

	status, err := h.service.AwaitVerification(r.Context(), driverID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, status)
}

// KYCWebhook handles POST /webhooks/kyc from the identity vendor
func (h *Handler) KYCWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookSize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.Error(w, errors.BadRequest("could not read webhook body"))
		return
	}

	event, err := h.service.ProcessKYCWebhook(r.Context(), body, r.Header.Get("X-Webhook-Signature"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{
		"session_id": event.SessionID,
		"status":     event.Status,
	})
}
