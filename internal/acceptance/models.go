package acceptance

import (
	"time"

	id "domus/pkg/domain"
)

// Acceptance records that a student agreed to a specific regulation version.
// Records are immutable: there is no update or delete operation.
type Acceptance struct {
	ID                id.AcceptanceID `json:"id"`
	StudentID         id.StudentID    `json:"studentId"`
	RegulationID      id.RegulationID `json:"regulationId"`
	RegulationVersion string          `json:"regulationVersion"`
	ResidenceID       id.ResidenceID  `json:"residenceId"`
	AcceptedAt        time.Time       `json:"acceptedAt"`
}

// RecordRequest carries the caller-supplied identifiers for a new acceptance.
// The version and residence are snapshotted into the record so it stays
// meaningful after the regulation itself changes or is deleted.
type RecordRequest struct {
	StudentID         id.StudentID    `json:"studentId"`
	RegulationID      id.RegulationID `json:"regulationId"`
	RegulationVersion string          `json:"regulationVersion"`
	ResidenceID       id.ResidenceID  `json:"residenceId"`
}
