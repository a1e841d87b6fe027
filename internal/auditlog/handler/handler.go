package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"domus/internal/auditlog"
	"domus/internal/platform/middleware"
	"domus/internal/transport/http/shared"
	id "domus/pkg/domain"
	dErrors "domus/pkg/domain-errors"
)

// Service defines the audit queries the admin API needs.
type Service interface {
	QueryByResidence(ctx context.Context, residenceID id.ResidenceID, filters auditlog.QueryFilters) ([]auditlog.Entry, error)
	QueryByRegulation(ctx context.Context, regulationID id.RegulationID) ([]auditlog.Entry, error)
}

// Handler serves the audit trail read endpoints. Writes have no endpoint:
// only the regulation service appends.
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

		admin.Get("/residences/{residenceID}/audit", h.handleQueryByResidence)
		admin.Get("/regulations/{regulationID}/audit", h.handleQueryByRegulation)
	})
}

func (h *Handler) handleQueryByResidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	residenceID, err := id.ParseResidenceID(chi.URLParam(r, "residenceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	filters, err := parseFilters(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	entries, err := h.service.QueryByResidence(ctx, residenceID, filters)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to query audit trail",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	writeEntries(w, entries)
}

func (h *Handler) handleQueryByRegulation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regulationID, err := id.ParseRegulationID(chi.URLParam(r, "regulationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	entries, err := h.service.QueryByRegulation(ctx, regulationID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to query audit trail",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	writeEntries(w, entries)
}

func writeEntries(w http.ResponseWriter, entries []auditlog.Entry) {
	if entries == nil {
		entries = []auditlog.Entry{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// parseFilters reads the optional startDate, endDate, actions, and limit
// query parameters. Dates are RFC 3339; actions is comma-separated.
func parseFilters(r *http.Request) (auditlog.QueryFilters, error) {
	var filters auditlog.QueryFilters
	query := r.URL.Query()

	if raw := query.Get("startDate"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, dErrors.New(dErrors.CodeBadRequest, "startDate must be RFC 3339")
		}
		filters.StartDate = &parsed
	}
	if raw := query.Get("endDate"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, dErrors.New(dErrors.CodeBadRequest, "endDate must be RFC 3339")
		}
		filters.EndDate = &parsed
	}
	if raw := query.Get("actions"); raw != "" {
		for _, action := range strings.Split(raw, ",") {
			filters.Actions = append(filters.Actions, auditlog.Action(strings.TrimSpace(action)))
		}
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filters, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer")
		}
		filters.Limit = limit
	}
	return filters, nil
}
