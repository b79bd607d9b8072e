// Package store holds the in-memory working sets: the canonical facility
// set loaded at startup and the vendor candidate records accumulated from
// the feed topic.
package store

import (
	"sort"
	"sync"

	"github.com/gridatlas/facility-accuracy/internal/domain"
)

// CandidateStore accumulates vendor records keyed by (source, id). Later
// records for the same key replace earlier ones, so replayed feeds converge
// on the latest state.
type CandidateStore struct {
	mu       sync.RWMutex
	bySource map[string]map[string]domain.Candidate
	dirty    bool
}

// NewCandidateStore creates an empty store.
func NewCandidateStore() *CandidateStore {
	return &CandidateStore{bySource: make(map[string]map[string]domain.Candidate)}
}

// Upsert inserts or replaces a candidate and marks the store dirty.
func (s *CandidateStore) Upsert(c domain.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bySource[c.Source] == nil {
		s.bySource[c.Source] = make(map[string]domain.Candidate)
	}
	s.bySource[c.Source][c.ID] = c
	s.dirty = true
}

// Snapshot returns a copy of the store grouped by source, candidates sorted
// by ID, and clears the dirty flag. The copy is safe to read while the
// store keeps consuming.
func (s *CandidateStore) Snapshot() map[string][]domain.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]domain.Candidate, len(s.bySource))
	for source, byID := range s.bySource {
		list := make([]domain.Candidate, 0, len(byID))
		for _, c := range byID {
			list = append(list, c)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		out[source] = list
	}
	s.dirty = false
	return out
}

// Dirty reports whether the store changed since the last Snapshot.
func (s *CandidateStore) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Len returns the total number of candidates held.
func (s *CandidateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, byID := range s.bySource {
		n += len(byID)
	}
	return n
}
