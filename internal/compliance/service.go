package compliance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"domus/internal/acceptance"
	"domus/internal/directory"
	"domus/internal/regulation/models"
	id "domus/pkg/domain"
	dErrors "domus/pkg/domain-errors"
	"domus/pkg/platform/sentinel"
	"domus/pkg/requestcontext"
)

// ActiveRegulationResolver yields a residence's active regulation, nil when
// none exists.
type ActiveRegulationResolver interface {
	GetActive(ctx context.Context, residenceID id.ResidenceID) (*models.Regulation, error)
}

// AcceptanceReader lists the acceptances recorded for one regulation.
type AcceptanceReader interface {
	GetByRegulation(ctx context.Context, regulationID id.RegulationID) ([]acceptance.Acceptance, error)
}

// Service assembles per-residence compliance summaries. The independent reads
// carry no cross-consistency guarantee: the summary is a best-effort snapshot
// of a moving target, which is all a monitoring view needs.
type Service struct {
	regulations ActiveRegulationResolver
	acceptances AcceptanceReader
	residences  directory.ResidenceDirectory
	students    directory.StudentDirectory
	contracts   directory.ContractDirectory
	logger      *slog.Logger
	metrics     *Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(
	regulations ActiveRegulationResolver,
	acceptances AcceptanceReader,
	residences directory.ResidenceDirectory,
	students directory.StudentDirectory,
	contracts directory.ContractDirectory,
	opts ...Option,
) *Service {
	s := &Service{
		regulations: regulations,
		acceptances: acceptances,
		residences:  residences,
		students:    students,
		contracts:   contracts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetStatus produces the compliance summary for one residence.
func (s *Service) GetStatus(ctx context.Context, residenceID id.ResidenceID) (*Summary, error) {
	start := time.Now()

	residence, err := s.residences.GetResidenceByID(ctx, residenceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "residence not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve residence")
	}

	summary := &Summary{
		ResidenceID:   residenceID,
		ResidenceName: residence.Name,
		Students:      []StudentEntry{},
		GeneratedAt:   requestcontext.Now(ctx),
	}

	active, err := s.regulations.GetActive(ctx, residenceID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return summary, nil
	}
	summary.HasActiveRegulation = true
	summary.Regulation = active

	var (
		students  []directory.Student
		accepted  []acceptance.Acceptance
		contracts map[id.StudentID]directory.Contract
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		students, err = s.students.GetStudentsByResidence(groupCtx, residenceID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list residence students")
		}
		return nil
	})
	group.Go(func() error {
		var err error
		accepted, err = s.acceptances.GetByRegulation(groupCtx, active.ID)
		return err
	})
	group.Go(func() error {
		var err error
		contracts, err = s.contracts.GetActiveContractsByResidence(groupCtx, residenceID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list residence contracts")
		}
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	acceptedBy := make(map[id.StudentID]acceptance.Acceptance, len(accepted))
	for _, record := range accepted {
		acceptedBy[record.StudentID] = record
	}

	for _, student := range students {
		entry := StudentEntry{
			StudentID: student.ID,
			Name:      student.Name,
			Email:     student.Email,
			Status:    StatusPending,
		}
		if record, ok := acceptedBy[student.ID]; ok {
			entry.Status = StatusAccepted
			acceptedAt := record.AcceptedAt
			entry.AcceptedAt = &acceptedAt
		}
		if contract, ok := contracts[student.ID]; ok {
			entry.RoomTypeName = contract.RoomTypeName
		}
		summary.Students = append(summary.Students, entry)
	}

	summary.TotalStudents = len(students)
	for _, entry := range summary.Students {
		if entry.Status == StatusAccepted {
			summary.AcceptedCount++
		}
	}
	summary.PendingCount = summary.TotalStudents - summary.AcceptedCount
	if summary.TotalStudents > 0 {
		summary.AcceptanceRate = float64(summary.AcceptedCount) / float64(summary.TotalStudents) * 100
	}

	if s.metrics != nil {
		s.metrics.ObserveSummary(start)
	}
	if s.logger != nil {
		s.logger.DebugContext(ctx, "compliance summary assembled",
			"residence_id", residenceID.String(),
			"total", summary.TotalStudents,
			"accepted", summary.AcceptedCount,
		)
	}
	return summary, nil
}
