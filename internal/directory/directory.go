// Package directory defines the external collaborators the compliance core
// consumes: residences, students, and contracts. Booking and contract business
// rules live elsewhere; the core only resolves "does this residence exist" and
// "where does this student currently live".
package directory

import (
	"context"
	"time"

	id "domus/pkg/domain"
)

type Residence struct {
	ID   id.ResidenceID `json:"id"`
	Name string         `json:"name"`
}

type Student struct {
	ID          id.StudentID   `json:"id"`
	ResidenceID id.ResidenceID `json:"residenceId"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
}

// Contract is the slice of a housing contract this core needs: which
// residence a student occupies, and for display, what they booked.
type Contract struct {
	StudentID     id.StudentID   `json:"studentId"`
	ResidenceID   id.ResidenceID `json:"residenceId"`
	ResidenceName string         `json:"residenceName"`
	RoomTypeName  string         `json:"roomTypeName"`
	StartDate     time.Time      `json:"startDate"`
	EndDate       time.Time      `json:"endDate"`
}

// ResidenceDirectory resolves residences. Implementations return
// sentinel.ErrNotFound when the residence does not exist.
type ResidenceDirectory interface {
	GetResidenceByID(ctx context.Context, residenceID id.ResidenceID) (*Residence, error)
}

// StudentDirectory lists the students belonging to a residence.
type StudentDirectory interface {
	GetStudentsByResidence(ctx context.Context, residenceID id.ResidenceID) ([]Student, error)
}

// ContractDirectory resolves active contracts. GetActiveContractByStudent
// returns sentinel.ErrNotFound when the student has no active stay; callers
// treat that as absence, not failure. The residence-scoped batch call exists
// so the compliance aggregator avoids one lookup per student.
type ContractDirectory interface {
	GetActiveContractByStudent(ctx context.Context, studentID id.StudentID) (*Contract, error)
	GetActiveContractsByResidence(ctx context.Context, residenceID id.ResidenceID) (map[id.StudentID]Contract, error)
}
