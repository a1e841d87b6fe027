package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"domus/internal/platform/middleware"
	"domus/internal/regulation/models"
	"domus/internal/transport/http/shared"
	id "domus/pkg/domain"
	dErrors "domus/pkg/domain-errors"
)

// Service defines the regulation operations the admin API needs.
type Service interface {
	Create(ctx context.Context, req models.CreateRequest) (*models.Regulation, error)
	GetByID(ctx context.Context, regulationID id.RegulationID) (*models.Regulation, error)
	GetByResidence(ctx context.Context, residenceID id.ResidenceID) ([]*models.Regulation, error)
	GetActive(ctx context.Context, residenceID id.ResidenceID) (*models.Regulation, error)
	Update(ctx context.Context, regulationID id.RegulationID, req models.UpdateRequest) (*models.Regulation, error)
	Delete(ctx context.Context, regulationID id.RegulationID) error
	SetActive(ctx context.Context, residenceID id.ResidenceID, targetID id.RegulationID) (*models.SetActiveResult, error)
}

// Handler serves the admin regulation endpoints.
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

// Register mounts the regulation routes with admin auth.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(admin chi.Router) {
		admin.Use(middleware.ContentTypeJSON)
		admin.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		admin.Use(middleware.RequireRole(middleware.RoleAdmin, h.logger))

		admin.Post("/residences/{residenceID}/regulations", h.handleCreate)
		admin.Get("/residences/{residenceID}/regulations", h.handleList)
		admin.Get("/residences/{residenceID}/regulations/active", h.handleGetActive)
		admin.Post("/residences/{residenceID}/regulations/{regulationID}/activate", h.handleActivate)
		admin.Get("/regulations/{regulationID}", h.handleGet)
		admin.Patch("/regulations/{regulationID}", h.handleUpdate)
		admin.Delete("/regulations/{regulationID}", h.handleDelete)
	})
}

type createRequest struct {
	Version  string `json:"version"`
	FileName string `json:"fileName"`
	FileRef  string `json:"fileRef"`
	FileSize int64  `json:"fileSize"`
	Activate bool   `json:"activate"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	residenceID, err := id.ParseResidenceID(chi.URLParam(r, "residenceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create regulation request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	regulation, err := h.service.Create(ctx, models.CreateRequest{
		ResidenceID: residenceID,
		Version:     req.Version,
		FileName:    req.FileName,
		FileRef:     req.FileRef,
		FileSize:    req.FileSize,
		Activate:    req.Activate,
	})
	if err != nil {
		h.logError(ctx, "failed to create regulation", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, regulation)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	residenceID, err := id.ParseResidenceID(chi.URLParam(r, "residenceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	regulations, err := h.service.GetByResidence(ctx, residenceID)
	if err != nil {
		h.logError(ctx, "failed to list regulations", err)
		shared.WriteError(w, err)
		return
	}
	if regulations == nil {
		regulations = []*models.Regulation{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"regulations": regulations})
}

func (h *Handler) handleGetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	residenceID, err := id.ParseResidenceID(chi.URLParam(r, "residenceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	regulation, err := h.service.GetActive(ctx, residenceID)
	if err != nil {
		h.logError(ctx, "failed to resolve active regulation", err)
		shared.WriteError(w, err)
		return
	}
	if regulation == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no active regulation"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, regulation)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regulationID, err := id.ParseRegulationID(chi.URLParam(r, "regulationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	regulation, err := h.service.GetByID(ctx, regulationID)
	if err != nil {
		h.logError(ctx, "failed to load regulation", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, regulation)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regulationID, err := id.ParseRegulationID(chi.URLParam(r, "regulationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req models.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid update regulation request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	regulation, err := h.service.Update(ctx, regulationID, req)
	if err != nil {
		h.logError(ctx, "failed to update regulation", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, regulation)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regulationID, err := id.ParseRegulationID(chi.URLParam(r, "regulationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, regulationID); err != nil {
		h.logError(ctx, "failed to delete regulation", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type activateResponse struct {
	PreviousActiveID *id.RegulationID `json:"previousActiveId"`
	NewActiveID      id.RegulationID  `json:"newActiveId"`
	NoOp             bool             `json:"noOp"`
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	residenceID, err := id.ParseResidenceID(chi.URLParam(r, "residenceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	regulationID, err := id.ParseRegulationID(chi.URLParam(r, "regulationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.service.SetActive(ctx, residenceID, regulationID)
	if err != nil {
		h.logError(ctx, "failed to activate regulation", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, activateResponse{
		PreviousActiveID: result.PreviousActiveID,
		NewActiveID:      result.NewActiveID,
		NoOp:             result.NoOp,
	})
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	level := slog.LevelError
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound, dErrors.CodeValidation, dErrors.CodeInvariantViolation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
}
