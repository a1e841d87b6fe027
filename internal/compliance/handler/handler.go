package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"domus/internal/compliance"
	"domus/internal/platform/middleware"
	"domus/internal/transport/http/shared"
	id "domus/pkg/domain"
	dErrors "domus/pkg/domain-errors"
)

// Service defines the compliance operations the admin API needs.
type Service interface {
	GetStatus(ctx context.Context, residenceID id.ResidenceID) (*compliance.Summary, error)
}

// Handler serves the residence compliance summary endpoint.
type Handler struct {
	service      Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func New(service Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		admin.Use(middleware.RequireRole(middleware.RoleAdmin, h.logger))

		admin.Get("/residences/{residenceID}/compliance", h.handleGetStatus)
	})
}

func (h *Handler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	residenceID, err := id.ParseResidenceID(chi.URLParam(r, "residenceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	summary, err := h.service.GetStatus(ctx, residenceID)
	if err != nil {
		level := slog.LevelError
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			level = slog.LevelWarn
		}
		h.logger.Log(ctx, level, "failed to build compliance summary",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, summary)
}
