package compliance

import (
	"time"

	"domus/internal/regulation/models"
	id "domus/pkg/domain"
)

type StudentStatus string

const (
	StatusAccepted StudentStatus = "accepted"
	StatusPending  StudentStatus = "pending"
)

// StudentEntry is one student's row in a residence summary. Contract details
// are optional: a student without an active contract still appears, pending
// or accepted like any other.
type StudentEntry struct {
	StudentID    id.StudentID  `json:"studentId"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Status       StudentStatus `json:"status"`
	AcceptedAt   *time.Time    `json:"acceptedAt,omitempty"`
	RoomTypeName string        `json:"roomTypeName,omitempty"`
}

// Summary is the residence-wide compliance view. When the residence has no
// active regulation there is nothing to comply with and the counts are zero.
type Summary struct {
	ResidenceID         id.ResidenceID     `json:"residenceId"`
	ResidenceName       string             `json:"residenceName"`
	HasActiveRegulation bool               `json:"hasActiveRegulation"`
	Regulation          *models.Regulation `json:"regulation,omitempty"`
	TotalStudents       int                `json:"totalStudents"`
	AcceptedCount       int                `json:"acceptedCount"`
	PendingCount        int                `json:"pendingCount"`
	AcceptanceRate      float64            `json:"acceptanceRate"`
	Students            []StudentEntry     `json:"students"`
	GeneratedAt         time.Time          `json:"generatedAt"`
}
