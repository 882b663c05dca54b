package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/clinicflow/libs/auth"
	"github.com/md-rashed-zaman/clinicflow/libs/httpx"
)

// NewRouter mounts the authenticated read API next to the operational
// endpoints served by base. limit may be nil.
func NewRouter(logger *slog.Logger, base http.Handler, verifier *auth.Verifier, limit func(http.Handler) http.Handler, history *HistoryHandler) http.Handler {
	r := httpx.NewRouter(logger, base)
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier))
		if limit != nil {
			r.Use(limit)
		}
		history.RegisterRoutes(r)
	})
	return r
}
