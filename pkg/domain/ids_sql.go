package domain

import (
	"database/sql/driver"

	"github.com/google/uuid"
)

// database/sql plumbing so typed IDs bind and scan as uuid columns.

func (id ResidenceID) Value() (driver.Value, error)  { return id.String(), nil }
func (id RegulationID) Value() (driver.Value, error) { return id.String(), nil }
func (id StudentID) Value() (driver.Value, error)    { return id.String(), nil }
func (id AcceptanceID) Value() (driver.Value, error) { return id.String(), nil }
func (id EntryID) Value() (driver.Value, error)      { return id.String(), nil }

func (id *ResidenceID) Scan(src any) error {
	var u uuid.UUID
	if err := u.Scan(src); err != nil {
		return err
	}
	*id = ResidenceID(u)
	return nil
}

func (id *RegulationID) Scan(src any) error {
	var u uuid.UUID
	if err := u.Scan(src); err != nil {
		return err
	}
	*id = RegulationID(u)
	return nil
}

func (id *StudentID) Scan(src any) error {
	var u uuid.UUID
	if err := u.Scan(src); err != nil {
		return err
	}
	*id = StudentID(u)
	return nil
}

func (id *AcceptanceID) Scan(src any) error {
	var u uuid.UUID
	if err := u.Scan(src); err != nil {
		return err
	}
	*id = AcceptanceID(u)
	return nil
}

func (id *EntryID) Scan(src any) error {
	var u uuid.UUID
	if err := u.Scan(src); err != nil {
		return err
	}
	*id = EntryID(u)
	return nil
}
