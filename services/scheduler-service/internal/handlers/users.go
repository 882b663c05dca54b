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
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/users"
)

type UserStore interface {
	Create(ctx context.Context, u users.User) error
}

// UserHandler registers clinic users. Only staff may register.
type UserHandler struct {
	store  UserStore
	logger *slog.Logger
}

func NewUserHandler(store UserStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{store: store, logger: logger}
}

func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Post("/users", h.Create)
}

type createUserRequest struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Specialty   string `json:"specialty"`
	Department  string `json:"department"`
	DateOfBirth string `json:"dateOfBirth"`
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if !caller.Role.IsStaff() {
		httpx.WriteError(w, http.StatusForbidden, "only staff may register users")
		return
	}

	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	u, err := req.toUser()
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Create(r.Context(), u); err != nil {
		if errors.Is(err, users.ErrDuplicate) {
			httpx.WriteError(w, http.StatusConflict, "user already exists")
			return
		}
		h.logger.Error("create user failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"id": u.Ident().ID.String(), "role": string(u.Role())})
}

func (req createUserRequest) toUser() (users.User, error) {
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	if req.ID != "" {
		if id, err = uuid.Parse(req.ID); err != nil {
			return nil, errors.New("invalid id")
		}
	}
	ident := users.Identity{
		ID:        id,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
	}
	if ident.FirstName == "" || ident.LastName == "" || ident.Email == "" {
		return nil, errors.New("firstName, lastName and email are required")
	}

	switch role {
	case auth.RoleDoctor:
		return users.Doctor{Identity: ident, Specialty: strings.TrimSpace(req.Specialty)}, nil
	case auth.RoleNurse:
		return users.Nurse{Identity: ident, Department: strings.TrimSpace(req.Department)}, nil
	default:
		p := users.Patient{Identity: ident}
		if req.DateOfBirth != "" {
			dob, err := time.Parse(time.DateOnly, req.DateOfBirth)
			if err != nil {
				return nil, errors.New("invalid dateOfBirth, expected YYYY-MM-DD")
			}
			p.DateOfBirth = &dob
		}
		return p, nil
	}
}
