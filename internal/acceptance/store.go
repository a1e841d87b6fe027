package acceptance

import (
	"context"

	id "domus/pkg/domain"
)

// Store persists acceptance records. Insert returns sentinel.ErrDuplicate
// when a record for the same (student, regulation) pair already exists;
// FindByStudentAndRegulation and FindLatestForResidence return
// sentinel.ErrNotFound when nothing matches.
type Store interface {
	Insert(ctx context.Context, record Acceptance) error
	FindByStudentAndRegulation(ctx context.Context, studentID id.StudentID, regulationID id.RegulationID) (*Acceptance, error)
	ListByStudent(ctx context.Context, studentID id.StudentID) ([]Acceptance, error)
	ListByRegulation(ctx context.Context, regulationID id.RegulationID) ([]Acceptance, error)
	FindLatestForResidence(ctx context.Context, studentID id.StudentID, residenceID id.ResidenceID) (*Acceptance, error)
}
