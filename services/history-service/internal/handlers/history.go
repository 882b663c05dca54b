package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/clinicflow/libs/auth"
	"github.com/md-rashed-zaman/clinicflow/libs/httpx"
	"github.com/md-rashed-zaman/clinicflow/services/history-service/internal/projection"
)

type HistoryService interface {
	GetHistory(ctx context.Context, caller auth.Caller, q projection.Query) ([]projection.Entry, error)
}

type HistoryHandler struct {
	svc    HistoryService
	logger *slog.Logger
}

func NewHistoryHandler(svc HistoryService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{svc: svc, logger: logger}
}

func (h *HistoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/history", h.List)
}

type historyResponse struct {
	Items []projection.Entry `json:"items"`
}

func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	qs := r.URL.Query()
	q := projection.Query{
		PatientID:   qs.Get("patientId"),
		PatientName: qs.Get("patientName"),
		DoctorID:    qs.Get("doctorId"),
		Date:        qs.Get("date"),
		Status:      qs.Get("status"),
	}
	if raw := qs.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}

	items, err := h.svc.GetHistory(r.Context(), caller, q)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, historyResponse{Items: items})
	case errors.Is(err, projection.ErrInvalidFilter):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, projection.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, err.Error())
	default:
		h.logger.Error("history query failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
