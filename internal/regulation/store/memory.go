package store

import (
	"context"
	"sort"
	"sync"

	"domus/internal/regulation/models"
	id "domus/pkg/domain"
	"domus/pkg/platform/sentinel"
)

// InMemory keeps regulations in memory. Mutations copy values in and out so
// callers never alias stored state. The service's transaction boundary
// serializes multi-document sequences; individual operations are guarded by
// the store's own lock.
type InMemory struct {
	mu          sync.RWMutex
	regulations map[id.RegulationID]models.Regulation
}

func NewInMemory() *InMemory {
	return &InMemory{regulations: make(map[id.RegulationID]models.Regulation)}
}

func (s *InMemory) Create(_ context.Context, regulation *models.Regulation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.regulations[regulation.ID]; exists {
		return sentinel.ErrDuplicate
	}
	s.regulations[regulation.ID] = *regulation
	return nil
}

func (s *InMemory) FindByID(_ context.Context, regulationID id.RegulationID) (*models.Regulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	regulation, ok := s.regulations[regulationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &regulation, nil
}

func (s *InMemory) ListByResidence(_ context.Context, residenceID id.ResidenceID) ([]*models.Regulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Regulation
	for _, regulation := range s.regulations {
		if regulation.ResidenceID == residenceID {
			r := regulation
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out, nil
}

func (s *InMemory) FindActiveByResidence(_ context.Context, residenceID id.ResidenceID) (*models.Regulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, regulation := range s.regulations {
		if regulation.ResidenceID == residenceID && regulation.IsActive {
			r := regulation
			return &r, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Update(_ context.Context, regulation *models.Regulation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.regulations[regulation.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.regulations[regulation.ID] = *regulation
	return nil
}

func (s *InMemory) Delete(_ context.Context, regulationID id.RegulationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.regulations[regulationID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.regulations, regulationID)
	return nil
}
