package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/driveline/driveline-backend/internal/record/service"
	"github.com/driveline/driveline-backend/pkg/errors"
	"github.com/driveline/driveline-backend/pkg/httputil"
	"github.com/driveline/driveline-backend/pkg/logger"
)

// Handler handles HTTP requests for driving-record processing
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

// Routes mounts the record endpoints. All of them are driver-scoped
// and sit behind the session middleware.
func (h *Handler) Routes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Post("/documents/driving-record", h.Process)
		r.Get("/drivers/{driverID}/decision", h.LatestDecision)
	})
}

// ProcessRequest is the body of POST /documents/driving-record
type ProcessRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
	FileURL  string `json:"file_url" validate:"required,url"`
}

// Process handles POST /documents/driving-record. The document has
// already been uploaded to storage; the body carries its URL.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, errors.BadRequest("invalid request body"))
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}
	if session := httputil.GetDriverID(r.Context()); session != req.DriverID {
		httputil.Error(w, errors.Forbidden("session does not match driver"))
		return
	}

	result, err := h.service.ProcessDrivingRecord(r.Context(), req.DriverID, req.FileURL)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// LatestDecision handles GET /drivers/{driverID}/decision
func (h *Handler) LatestDecision(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")
	if driverID == "" {
		httputil.Error(w, errors.BadRequest("driver ID is required"))
		return
	}
	if session := httputil.GetDriverID(r.Context()); session != driverID {
		httputil.Error(w, errors.Forbidden("session does not match driver"))
		return
	}

	audit, err := h.service.LatestDecision(r.Context(), driverID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, audit)
}
