package portal

import (
	"context"
	"errors"
	"log/slog"

	"domus/internal/acceptance"
	"domus/internal/directory"
	"domus/internal/regulation/models"
	id "domus/pkg/domain"
	dErrors "domus/pkg/domain-errors"
	"domus/pkg/platform/sentinel"
)

// Status is what the student portal needs before admitting a student: the
// regulation they must have accepted, and whether they have. Acceptance is
// populated only when it satisfies the current active regulation.
type Status struct {
	Regulation    *models.Regulation     `json:"regulation"`
	HasAccepted   bool                   `json:"hasAccepted"`
	Acceptance    *acceptance.Acceptance `json:"acceptance,omitempty"`
	ResidenceName string                 `json:"residenceName"`
}

// ActiveRegulationResolver yields a residence's active regulation, nil when
// none exists.
type ActiveRegulationResolver interface {
	GetActive(ctx context.Context, residenceID id.ResidenceID) (*models.Regulation, error)
}

// AcceptanceReader resolves a student's acceptances and records new ones.
type AcceptanceReader interface {
	GetLatestForResidence(ctx context.Context, studentID id.StudentID, residenceID id.ResidenceID) (*acceptance.Acceptance, error)
	GetHistory(ctx context.Context, studentID id.StudentID) ([]acceptance.Acceptance, error)
	Record(ctx context.Context, req acceptance.RecordRequest) (*acceptance.Acceptance, error)
}

// Service answers what regulation a student sees and whether they have
// accepted it. The gate for portal access.
type Service struct {
	regulations ActiveRegulationResolver
	acceptances AcceptanceReader
	contracts   directory.ContractDirectory
	logger      *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(
	regulations ActiveRegulationResolver,
	acceptances AcceptanceReader,
	contracts directory.ContractDirectory,
	opts ...Option,
) *Service {
	s := &Service{
		regulations: regulations,
		acceptances: acceptances,
		contracts:   contracts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetMyStatus resolves the student's current compliance position. It returns
// nil when the student has no active contract or their residence has no
// active regulation: in both cases there is nothing to accept.
//
// An acceptance only counts when it references the active regulation's ID.
// An older acceptance for a previous version does not satisfy the current
// one; that is the re-acceptance rule.
func (s *Service) GetMyStatus(ctx context.Context, studentID id.StudentID) (*Status, error) {
	contract, err := s.contracts.GetActiveContractByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve active contract")
	}

	active, err := s.regulations.GetActive(ctx, contract.ResidenceID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, nil
	}

	latest, err := s.acceptances.GetLatestForResidence(ctx, studentID, contract.ResidenceID)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Regulation:    active,
		ResidenceName: contract.ResidenceName,
	}
	if latest != nil && latest.RegulationID == active.ID {
		status.HasAccepted = true
		status.Acceptance = latest
	}
	return status, nil
}

// AcceptCurrent records the student's acceptance of their residence's active
// regulation. The regulation identity comes from the resolver, never from the
// client, so a student cannot accept anything but what they are shown.
func (s *Service) AcceptCurrent(ctx context.Context, studentID id.StudentID) (*Status, error) {
	contract, err := s.contracts.GetActiveContractByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active contract for student")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve active contract")
	}

	active, err := s.regulations.GetActive(ctx, contract.ResidenceID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "residence has no active regulation")
	}

	record, err := s.acceptances.Record(ctx, acceptance.RecordRequest{
		StudentID:         studentID,
		RegulationID:      active.ID,
		RegulationVersion: active.Version,
		ResidenceID:       contract.ResidenceID,
	})
	if err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "regulation accepted",
			"student_id", studentID.String(),
			"regulation_id", active.ID.String(),
			"version", active.Version,
		)
	}

	return &Status{
		Regulation:    active,
		HasAccepted:   true,
		Acceptance:    record,
		ResidenceName: contract.ResidenceName,
	}, nil
}

// AcceptanceHistory returns every acceptance the student has recorded, newest
// first, across regulation versions and residences.
func (s *Service) AcceptanceHistory(ctx context.Context, studentID id.StudentID) ([]acceptance.Acceptance, error) {
	return s.acceptances.GetHistory(ctx, studentID)
}
