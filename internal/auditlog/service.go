package auditlog

import (
	"context"

	id "domus/pkg/domain"
	dErrors "domus/pkg/domain-errors"
	"domus/pkg/requestcontext"
)

// maxQueryLimit caps audit query result sizes so the admin UI cannot request
// unbounded history in one call.
const maxQueryLimit = 500

// Service wraps the store with validation and timestamp defaulting. Append is
// called only by the regulation service; queries serve the admin surface.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Append records a lifecycle event. The entry timestamp defaults to the
// request-scoped clock when unset, and the metadata variant must match the
// entry action.
func (s *Service) Append(ctx context.Context, entry Entry) error {
	if !entry.Action.Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown audit action: "+string(entry.Action))
	}
	if entry.RegulationID.IsNil() || entry.ResidenceID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "audit entry requires regulation and residence ids")
	}
	if entry.Metadata != nil && entry.Metadata.action() != entry.Action {
		return dErrors.New(dErrors.CodeValidation, "audit metadata does not match entry action")
	}
	if entry.ID.IsNil() {
		entry.ID = id.NewEntryID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit entry")
	}
	return nil
}

// QueryByResidence returns a residence's audit trail, newest first, narrowed
// by the given filters.
func (s *Service) QueryByResidence(ctx context.Context, residenceID id.ResidenceID, filters QueryFilters) ([]Entry, error) {
	if residenceID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "residence id is required")
	}
	for _, a := range filters.Actions {
		if !a.Valid() {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown audit action filter: "+string(a))
		}
	}
	if filters.StartDate != nil && filters.EndDate != nil && filters.EndDate.Before(*filters.StartDate) {
		return nil, dErrors.New(dErrors.CodeValidation, "audit query end date precedes start date")
	}
	if filters.Limit < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "audit query limit must not be negative")
	}
	if filters.Limit == 0 || filters.Limit > maxQueryLimit {
		filters.Limit = maxQueryLimit
	}

	entries, err := s.store.ListByResidence(ctx, residenceID, filters)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit entries")
	}
	return entries, nil
}

// QueryByRegulation returns every entry for one regulation, newest first.
func (s *Service) QueryByRegulation(ctx context.Context, regulationID id.RegulationID) ([]Entry, error) {
	if regulationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "regulation id is required")
	}
	entries, err := s.store.ListByRegulation(ctx, regulationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit entries")
	}
	return entries, nil
}
