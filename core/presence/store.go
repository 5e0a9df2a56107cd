package presence

import "sync"

// Store holds the current status of every employee seen since process start.
// It is not persisted: clients re-establish presence by reconnecting.
type Store struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

func NewStore() *Store {
	return &Store{statuses: make(map[string]Status)}
}

// SetStatus sets the status of id and returns the previous one (offline if unknown).
func (s *Store) SetStatus(id string, status Status) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.statuses[id]
	if !ok {
		prev = StatusOffline
	}
	s.statuses[id] = status
	return prev
}

func (s *Store) GetStatus(id string) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.statuses[id]; ok {
		return st
	}
	return StatusOffline
}

// GetAll returns a snapshot of all known statuses.
func (s *Store) GetAll() map[string]Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make(map[string]Status, len(s.statuses))
	for id, st := range s.statuses {
		all[id] = st
	}
	return all
}
