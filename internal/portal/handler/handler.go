package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"domus/internal/acceptance"
	"domus/internal/platform/middleware"
	"domus/internal/portal"
	"domus/internal/transport/http/shared"
	id "domus/pkg/domain"
	dErrors "domus/pkg/domain-errors"
	"domus/pkg/requestcontext"
)

// Service defines the operations behind the student-facing endpoints.
type Service interface {
	GetMyStatus(ctx context.Context, studentID id.StudentID) (*portal.Status, error)
	AcceptCurrent(ctx context.Context, studentID id.StudentID) (*portal.Status, error)
	AcceptanceHistory(ctx context.Context, studentID id.StudentID) ([]acceptance.Acceptance, error)
}

// Handler serves the student portal endpoints. The student's identity comes
// from the token subject; no student ID is ever taken from the URL or body.
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
	r.Group(func(student chi.Router) {
		student.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		student.Use(middleware.RequireRole(middleware.RoleStudent, h.logger))

		student.Get("/me/regulation", h.handleGetMyStatus)
		student.Post("/me/regulation/accept", h.handleAccept)
		student.Get("/me/regulation/history", h.handleHistory)
	})
}

func (h *Handler) studentID(ctx context.Context) (id.StudentID, error) {
	actor := requestcontext.Actor(ctx)
	studentID, err := id.ParseStudentID(actor.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "token subject is not a student id",
			"request_id", middleware.GetRequestID(ctx),
		)
		return id.StudentID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return studentID, nil
}

func (h *Handler) handleGetMyStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	studentID, err := h.studentID(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	status, err := h.service.GetMyStatus(ctx, studentID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to resolve regulation status",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	if status == nil {
		// Nothing to accept: no active contract, or no active regulation.
		shared.WriteJSON(w, http.StatusOK, map[string]any{"regulation": nil, "hasAccepted": false})
		return
	}
	shared.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	studentID, err := h.studentID(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	status, err := h.service.AcceptCurrent(ctx, studentID)
	if err != nil {
		level := slog.LevelError
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			level = slog.LevelWarn
		}
		h.logger.Log(ctx, level, "failed to record acceptance",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, status)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	studentID, err := h.studentID(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	records, err := h.service.AcceptanceHistory(ctx, studentID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list acceptance history",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	if records == nil {
		records = []acceptance.Acceptance{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"acceptances": records})
}
