package domain

import (
	"github.com/google/uuid"

	dErrors "domus/pkg/domain-errors"
)

// Typed UUID wrappers keep residence, regulation, and student identifiers from
// being swapped at call sites. Parsing lives here so trust boundaries (HTTP,
// queues) validate IDs once and the rest of the code works with typed values.
type (
	ResidenceID  uuid.UUID
	RegulationID uuid.UUID
	StudentID    uuid.UUID
	AcceptanceID uuid.UUID
	EntryID      uuid.UUID
)

func NewResidenceID() ResidenceID   { return ResidenceID(uuid.New()) }
func NewRegulationID() RegulationID { return RegulationID(uuid.New()) }
func NewStudentID() StudentID       { return StudentID(uuid.New()) }
func NewAcceptanceID() AcceptanceID { return AcceptanceID(uuid.New()) }
func NewEntryID() EntryID           { return EntryID(uuid.New()) }

func (id ResidenceID) String() string  { return uuid.UUID(id).String() }
func (id RegulationID) String() string { return uuid.UUID(id).String() }
func (id StudentID) String() string    { return uuid.UUID(id).String() }
func (id AcceptanceID) String() string { return uuid.UUID(id).String() }
func (id EntryID) String() string      { return uuid.UUID(id).String() }

func (id ResidenceID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id RegulationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id StudentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AcceptanceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseResidenceID validates and returns a ResidenceID.
func ParseResidenceID(s string) (ResidenceID, error) {
	parsed, err := parseUUID(s, "residence")
	if err != nil {
		return ResidenceID{}, err
	}
	return ResidenceID(parsed), nil
}

// ParseRegulationID validates and returns a RegulationID.
func ParseRegulationID(s string) (RegulationID, error) {
	parsed, err := parseUUID(s, "regulation")
	if err != nil {
		return RegulationID{}, err
	}
	return RegulationID(parsed), nil
}

// ParseStudentID validates and returns a StudentID.
func ParseStudentID(s string) (StudentID, error) {
	parsed, err := parseUUID(s, "student")
	if err != nil {
		return StudentID{}, err
	}
	return StudentID(parsed), nil
}
