package domain

import "github.com/google/uuid"

// Text marshaling so typed IDs render as canonical UUID strings in JSON
// payloads and audit metadata instead of raw byte arrays.

func (id ResidenceID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id RegulationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id StudentID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id AcceptanceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id EntryID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }

func (id *ResidenceID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = ResidenceID(parsed)
	return nil
}

func (id *RegulationID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = RegulationID(parsed)
	return nil
}

func (id *StudentID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = StudentID(parsed)
	return nil
}

func (id *AcceptanceID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = AcceptanceID(parsed)
	return nil
}

func (id *EntryID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = EntryID(parsed)
	return nil
}
