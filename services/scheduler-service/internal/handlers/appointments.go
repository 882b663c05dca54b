package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicflow/libs/auth"
	"github.com/md-rashed-zaman/clinicflow/libs/httpx"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/appointments"
)

type AppointmentService interface {
	Create(ctx context.Context, caller auth.Caller, req appointments.CreateRequest) (appointments.Details, error)
	UpdateStatus(ctx context.Context, caller auth.Caller, id uuid.UUID, status appointments.Status) (appointments.Details, error)
	Cancel(ctx context.Context, caller auth.Caller, id uuid.UUID) (appointments.Details, error)
	Get(ctx context.Context, caller auth.Caller, id uuid.UUID) (appointments.Details, error)
}

type AppointmentHandler struct {
	svc    AppointmentService
	logger *slog.Logger
}

func NewAppointmentHandler(svc AppointmentService, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

func (h *AppointmentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Post("/{id}/cancel", h.Cancel)
	})
}

type createAppointmentRequest struct {
	PatientID       string `json:"patientId"`
	DoctorID        string `json:"doctorId"`
	AppointmentDate string `json:"appointmentDate"`
	Reason          string `json:"reason"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type appointmentResponse struct {
	ID              string `json:"id"`
	PatientID       string `json:"patientId"`
	PatientName     string `json:"patientName"`
	DoctorID        string `json:"doctorId"`
	DoctorName      string `json:"doctorName"`
	AppointmentDate string `json:"appointmentDate"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	UpdatedAt       string `json:"updatedAt"`
}

func toResponse(d appointments.Details) appointmentResponse {
	return appointmentResponse{
		ID:              d.ID.String(),
		PatientID:       d.PatientID.String(),
		PatientName:     d.Patient.FullName(),
		DoctorID:        d.DoctorID.String(),
		DoctorName:      d.Doctor.FullName(),
		AppointmentDate: d.AppointmentDate.UTC().Format(time.RFC3339),
		Status:          string(d.Status),
		Reason:          d.Reason,
		UpdatedAt:       d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req createAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	patientID, err := uuid.Parse(strings.TrimSpace(req.PatientID))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid patientId")
		return
	}
	doctorID, err := uuid.Parse(strings.TrimSpace(req.DoctorID))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid doctorId")
		return
	}
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(req.AppointmentDate))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid appointmentDate, expected RFC3339")
		return
	}

	d, err := h.svc.Create(r.Context(), caller, appointments.CreateRequest{
		PatientID:       patientID,
		DoctorID:        doctorID,
		AppointmentDate: at,
		Reason:          req.Reason,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toResponse(d))
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	d, err := h.svc.Get(r.Context(), caller, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(d))
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	status, err := appointments.ParseStatus(req.Status)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := h.svc.UpdateStatus(r.Context(), caller, id, status)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(d))
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	d, err := h.svc.Cancel(r.Context(), caller, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(d))
}

func (h *AppointmentHandler) callerAndID(w http.ResponseWriter, r *http.Request) (auth.Caller, uuid.UUID, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated")
		return auth.Caller{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid appointment id")
		return auth.Caller{}, uuid.Nil, false
	}
	return caller, id, true
}

func (h *AppointmentHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointments.ErrInvalid):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, appointments.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, appointments.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, appointments.ErrInvalidTransition):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("appointment request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
