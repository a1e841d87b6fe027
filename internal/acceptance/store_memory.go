package acceptance

import (
	"context"
	"sort"
	"sync"

	id "domus/pkg/domain"
	"domus/pkg/platform/sentinel"
)

type seqRecord struct {
	Acceptance
	seq uint64
}

// InMemoryStore keeps acceptance records in memory. Used in tests and as the
// default wiring when no database is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []seqRecord
	nextSeq uint64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Insert(_ context.Context, record Acceptance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.StudentID == record.StudentID && existing.RegulationID == record.RegulationID {
			return sentinel.ErrDuplicate
		}
	}
	s.nextSeq++
	s.records = append(s.records, seqRecord{Acceptance: record, seq: s.nextSeq})
	return nil
}

func (s *InMemoryStore) FindByStudentAndRegulation(_ context.Context, studentID id.StudentID, regulationID id.RegulationID) (*Acceptance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records {
		if record.StudentID == studentID && record.RegulationID == regulationID {
			out := record.Acceptance
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByStudent(_ context.Context, studentID id.StudentID) ([]Acceptance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []seqRecord
	for _, record := range s.records {
		if record.StudentID == studentID {
			matched = append(matched, record)
		}
	}
	return sortNewestFirst(matched), nil
}

func (s *InMemoryStore) ListByRegulation(_ context.Context, regulationID id.RegulationID) ([]Acceptance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []seqRecord
	for _, record := range s.records {
		if record.RegulationID == regulationID {
			matched = append(matched, record)
		}
	}
	return sortNewestFirst(matched), nil
}

func (s *InMemoryStore) FindLatestForResidence(_ context.Context, studentID id.StudentID, residenceID id.ResidenceID) (*Acceptance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []seqRecord
	for _, record := range s.records {
		if record.StudentID == studentID && record.ResidenceID == residenceID {
			matched = append(matched, record)
		}
	}
	if len(matched) == 0 {
		return nil, sentinel.ErrNotFound
	}
	newest := sortNewestFirst(matched)[0]
	return &newest, nil
}

// sortNewestFirst orders by acceptance time descending, falling back to
// insertion order for records sharing a timestamp.
func sortNewestFirst(records []seqRecord) []Acceptance {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].AcceptedAt.Equal(records[j].AcceptedAt) {
			return records[i].seq > records[j].seq
		}
		return records[i].AcceptedAt.After(records[j].AcceptedAt)
	})
	out := make([]Acceptance, len(records))
	for i, record := range records {
		out[i] = record.Acceptance
	}
	return out
}
