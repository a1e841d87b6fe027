package auditlog

import (
	"context"

	id "domus/pkg/domain"
)

// Store persists audit entries. Append-only: no update or delete exists.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByResidence(ctx context.Context, residenceID id.ResidenceID, filters QueryFilters) ([]Entry, error)
	ListByRegulation(ctx context.Context, regulationID id.RegulationID) ([]Entry, error)
}
