package models

import (
	"strings"
	"time"

	id "domus/pkg/domain"
	dErrors "domus/pkg/domain-errors"
)

// Regulation is a versioned house-rules document scoped to one residence.
//
// Invariants:
//   - Version is non-empty after trimming
//   - For any residence, at most one regulation has IsActive=true
//   - An active regulation is never deleted; state transitions are
//     Active ⇄ Archived and Archived → Deleted only
//
// The single-active invariant is enforced by the service's transactional
// activation, not by the model; the model only guards its own transitions.
type Regulation struct {
	ID          id.RegulationID `json:"id"`
	ResidenceID id.ResidenceID  `json:"residenceId"`
	Version     string          `json:"version"`
	FileName    string          `json:"fileName"`
	FileRef     string          `json:"fileRef"`
	FileSize    int64           `json:"fileSize"`
	IsActive    bool            `json:"isActive"`
	PublishedAt time.Time       `json:"publishedAt"`
	CreatedAt   time.Time       `json:"createdAt"`
	CreatedBy   string          `json:"createdBy"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// New validates and constructs a Regulation. The caller decides activation
// separately so the single-active invariant stays in one place.
func New(regulationID id.RegulationID, residenceID id.ResidenceID, version, fileName, fileRef string, fileSize int64, createdBy string, now time.Time) (*Regulation, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "regulation version must not be empty")
	}
	if residenceID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "regulation requires a residence id")
	}
	return &Regulation{
		ID:          regulationID,
		ResidenceID: residenceID,
		Version:     version,
		FileName:    fileName,
		FileRef:     fileRef,
		FileSize:    fileSize,
		PublishedAt: now,
		CreatedAt:   now,
		CreatedBy:   createdBy,
		UpdatedAt:   now,
	}, nil
}

// CanDelete checks the deletion guard: only archived regulations may be
// deleted.
func (r *Regulation) CanDelete() error {
	if r.IsActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "active regulation cannot be deleted; archive it first")
	}
	return nil
}

// ApplyActivation transitions the regulation to active.
func (r *Regulation) ApplyActivation(now time.Time) {
	r.IsActive = true
	r.UpdatedAt = now
}

// ApplyDeactivation transitions the regulation to archived.
func (r *Regulation) ApplyDeactivation(now time.Time) {
	r.IsActive = false
	r.UpdatedAt = now
}

// CreateRequest carries the fields an administrator submits when uploading a
// new regulation. FileRef is opaque to this core.
type CreateRequest struct {
	ResidenceID id.ResidenceID
	Version     string
	FileName    string
	FileRef     string
	FileSize    int64
	Activate    bool
}

// UpdateRequest is a partial update. Nil fields are left untouched.
// Setting Activate=true on an archived regulation triggers the same
// deactivate-others sequence as activation.
type UpdateRequest struct {
	Version  *string `json:"version"`
	FileName *string `json:"fileName"`
	FileRef  *string `json:"fileRef"`
	FileSize *int64  `json:"fileSize"`
	Activate *bool   `json:"activate"`
}

// SetActiveResult reports the outcome of an activation swap.
// PreviousActiveID is nil both when the residence had no active regulation
// and when the call was an idempotent no-op (target already active); NoOp
// distinguishes the two.
type SetActiveResult struct {
	PreviousActiveID *id.RegulationID `json:"previousActiveId"`
	NewActiveID      id.RegulationID  `json:"newActiveId"`
	NoOp             bool             `json:"noOp"`
}
