package auditlog

import (
	"encoding/json"
	"fmt"
	"time"

	id "domus/pkg/domain"
)

// Action is a regulation lifecycle transition recorded in the audit trail.
type Action string

const (
	ActionCreated     Action = "CREATED"
	ActionActivated   Action = "ACTIVATED"
	ActionDeactivated Action = "DEACTIVATED"
	ActionDeleted     Action = "DELETED"
)

// ValidActions lists every recordable action, used to validate query filters.
var ValidActions = []Action{ActionCreated, ActionActivated, ActionDeactivated, ActionDeleted}

func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionActivated, ActionDeactivated, ActionDeleted:
		return true
	}
	return false
}

// Metadata is the action-specific payload attached to an entry. Each action
// carries exactly the fields relevant to it, instead of one open-ended map.
type Metadata interface {
	action() Action
}

// CreatedMetadata accompanies ActionCreated.
type CreatedMetadata struct {
	Version  string `json:"version"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// ActivatedMetadata accompanies ActionActivated. PreviousActiveID is nil when
// the residence had no active regulation before the swap.
type ActivatedMetadata struct {
	PreviousActiveID *id.RegulationID `json:"previousActiveId,omitempty"`
}

// DeactivatedMetadata accompanies ActionDeactivated. SuccessorID names the
// regulation that replaced this one.
type DeactivatedMetadata struct {
	SuccessorID id.RegulationID `json:"successorId"`
}

// DeletedMetadata accompanies ActionDeleted.
type DeletedMetadata struct {
	Version  string `json:"version"`
	FileName string `json:"fileName"`
}

func (CreatedMetadata) action() Action     { return ActionCreated }
func (ActivatedMetadata) action() Action   { return ActionActivated }
func (DeactivatedMetadata) action() Action { return ActionDeactivated }
func (DeletedMetadata) action() Action     { return ActionDeleted }

// Entry is one append-only audit record. Entries are written by the
// regulation service after state changes and are never mutated.
type Entry struct {
	ID               id.EntryID      `json:"id"`
	RegulationID     id.RegulationID `json:"regulationId"`
	ResidenceID      id.ResidenceID  `json:"residenceId"`
	Action           Action          `json:"action"`
	PerformedBy      string          `json:"performedBy"`
	PerformedByEmail string          `json:"performedByEmail,omitempty"`
	PerformedByName  string          `json:"performedByName,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
	Metadata         Metadata        `json:"metadata,omitempty"`
}

// QueryFilters narrow a residence-scoped audit query. Zero values mean "no
// filter"; predicates combine conjunctively.
type QueryFilters struct {
	StartDate *time.Time
	EndDate   *time.Time
	Actions   []Action
	Limit     int
}

func (f QueryFilters) matches(e Entry) bool {
	if f.StartDate != nil && e.Timestamp.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && e.Timestamp.After(*f.EndDate) {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if e.Action == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// marshalMetadata encodes entry metadata for storage. Nil metadata encodes as
// SQL NULL (nil bytes).
func marshalMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal audit metadata: %w", err)
	}
	return raw, nil
}

// unmarshalMetadata decodes stored metadata into the variant matching the
// entry's action.
func unmarshalMetadata(action Action, raw []byte) (Metadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var (
		m   Metadata
		err error
	)
	switch action {
	case ActionCreated:
		var v CreatedMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	case ActionActivated:
		var v ActivatedMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	case ActionDeactivated:
		var v DeactivatedMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	case ActionDeleted:
		var v DeletedMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	default:
		return nil, fmt.Errorf("unknown audit action %q", action)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal audit metadata for %s: %w", action, err)
	}
	return m, nil
}
