package acceptance

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	id "domus/pkg/domain"
	dErrors "domus/pkg/domain-errors"
	"domus/pkg/platform/sentinel"
	"domus/pkg/requestcontext"
)

// Service records and reads acceptances. It holds no reference to the
// regulation store: callers pass the regulation's ID, version, and residence,
// which are snapshotted into the immutable record.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasAccepted reports whether the student has a record for this regulation.
func (s *Service) HasAccepted(ctx context.Context, studentID id.StudentID, regulationID id.RegulationID) (bool, error) {
	_, err := s.store.FindByStudentAndRegulation(ctx, studentID, regulationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check acceptance")
	}
	return true, nil
}

// Record inserts an acceptance with a server-assigned timestamp. Recording
// the same (student, regulation) pair again returns the existing record, so
// a retried submission never produces a duplicate.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*Acceptance, error) {
	if req.StudentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "student id is required")
	}
	if req.RegulationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "regulation id is required")
	}
	if req.ResidenceID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "residence id is required")
	}
	if strings.TrimSpace(req.RegulationVersion) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "regulation version is required")
	}

	record := Acceptance{
		ID:                id.NewAcceptanceID(),
		StudentID:         req.StudentID,
		RegulationID:      req.RegulationID,
		RegulationVersion: strings.TrimSpace(req.RegulationVersion),
		ResidenceID:       req.ResidenceID,
		AcceptedAt:        requestcontext.Now(ctx),
	}

	err := s.store.Insert(ctx, record)
	switch {
	case err == nil:
		return &record, nil
	case errors.Is(err, sentinel.ErrDuplicate):
		existing, findErr := s.store.FindByStudentAndRegulation(ctx, req.StudentID, req.RegulationID)
		if findErr != nil {
			return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load existing acceptance")
		}
		if s.logger != nil {
			s.logger.InfoContext(ctx, "duplicate acceptance collapsed",
				"student_id", req.StudentID.String(),
				"regulation_id", req.RegulationID.String(),
			)
		}
		return existing, nil
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record acceptance")
	}
}

// GetHistory returns the student's acceptances, newest first.
func (s *Service) GetHistory(ctx context.Context, studentID id.StudentID) ([]Acceptance, error) {
	records, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list acceptances")
	}
	return records, nil
}

// GetByRegulation returns every acceptance recorded against one regulation.
func (s *Service) GetByRegulation(ctx context.Context, regulationID id.RegulationID) ([]Acceptance, error) {
	records, err := s.store.ListByRegulation(ctx, regulationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list acceptances")
	}
	return records, nil
}

// GetLatestForResidence returns the student's most recent acceptance within
// the residence, or nil when they have never accepted anything there.
func (s *Service) GetLatestForResidence(ctx context.Context, studentID id.StudentID, residenceID id.ResidenceID) (*Acceptance, error) {
	record, err := s.store.FindLatestForResidence(ctx, studentID, residenceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve latest acceptance")
	}
	return record, nil
}
