package auditlog

import (
	"context"
	"sort"
	"sync"

	id "domus/pkg/domain"
)

// InMemoryStore keeps audit entries in memory. Used by unit tests and local
// development; production uses the Postgres store.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []seqEntry
	nextSeq uint64
}

// seqEntry tags each entry with an append sequence so newest-first ordering
// stays deterministic when two entries share a request timestamp (the
// deactivate/activate pair from a swap).
type seqEntry struct {
	Entry
	seq uint64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	s.entries = append(s.entries, seqEntry{Entry: entry, seq: s.nextSeq})
	return nil
}

func (s *InMemoryStore) ListByResidence(_ context.Context, residenceID id.ResidenceID, filters QueryFilters) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []seqEntry
	for _, e := range s.entries {
		if e.ResidenceID != residenceID {
			continue
		}
		if !filters.matches(e.Entry) {
			continue
		}
		out = append(out, e)
	}
	sortNewestFirst(out)
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return stripSeq(out), nil
}

func (s *InMemoryStore) ListByRegulation(_ context.Context, regulationID id.RegulationID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []seqEntry
	for _, e := range s.entries {
		if e.RegulationID == regulationID {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return stripSeq(out), nil
}

func sortNewestFirst(entries []seqEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].seq > entries[j].seq
	})
}

func stripSeq(entries []seqEntry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Entry
	}
	return out
}
