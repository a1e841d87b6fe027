package directory

import (
	"context"
	"sync"
	"time"

	id "domus/pkg/domain"
	"domus/pkg/platform/sentinel"
)

// InMemory is a fixture-backed directory for tests and local development.
// It implements all three directory interfaces.
type InMemory struct {
	mu         sync.RWMutex
	residences map[id.ResidenceID]Residence
	students   map[id.ResidenceID][]Student
	contracts  map[id.StudentID]Contract
}

func NewInMemory() *InMemory {
	return &InMemory{
		residences: make(map[id.ResidenceID]Residence),
		students:   make(map[id.ResidenceID][]Student),
		contracts:  make(map[id.StudentID]Contract),
	}
}

// AddResidence registers a residence fixture.
func (d *InMemory) AddResidence(residence Residence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.residences[residence.ID] = residence
}

// AddStudent registers a student fixture under their residence.
func (d *InMemory) AddStudent(student Student) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.students[student.ResidenceID] = append(d.students[student.ResidenceID], student)
}

// AddContract registers an active contract fixture for a student. The
// residence name is resolved from a previously added residence when empty.
func (d *InMemory) AddContract(contract Contract) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if contract.ResidenceName == "" {
		if res, ok := d.residences[contract.ResidenceID]; ok {
			contract.ResidenceName = res.Name
		}
	}
	d.contracts[contract.StudentID] = contract
}

func (d *InMemory) GetResidenceByID(_ context.Context, residenceID id.ResidenceID) (*Residence, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	residence, ok := d.residences[residenceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &residence, nil
}

func (d *InMemory) GetStudentsByResidence(_ context.Context, residenceID id.ResidenceID) ([]Student, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Student{}, d.students[residenceID]...), nil
}

func (d *InMemory) GetActiveContractByStudent(_ context.Context, studentID id.StudentID) (*Contract, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	contract, ok := d.contracts[studentID]
	if !ok || !withinTerm(contract, time.Now()) {
		return nil, sentinel.ErrNotFound
	}
	return &contract, nil
}

func (d *InMemory) GetActiveContractsByResidence(_ context.Context, residenceID id.ResidenceID) (map[id.StudentID]Contract, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[id.StudentID]Contract)
	for studentID, contract := range d.contracts {
		if contract.ResidenceID == residenceID && withinTerm(contract, time.Now()) {
			out[studentID] = contract
		}
	}
	return out, nil
}

// withinTerm treats a zero EndDate as open-ended.
func withinTerm(c Contract, now time.Time) bool {
	if !c.StartDate.IsZero() && now.Before(c.StartDate) {
		return false
	}
	if !c.EndDate.IsZero() && now.After(c.EndDate) {
		return false
	}
	return true
}
