package memory

import (
	"context"
	"sync"

	"fintrack/internal/storage"
)

// Store keeps local state in process memory. Useful for tests and for
// one-shot runs where nothing should outlive the process.
type Store struct {
	mu     sync.Mutex
	values map[string][]byte

	// SaveErr, when set, is returned by every Save. Tests use it to simulate a full disk.
	SaveErr error
}

var _ storage.Slot = (*Store)(nil)

func New() *Store {
	return &Store{values: make(map[string][]byte)}
}

// Seed stores raw bytes without going through Save, e.g. to plant corrupt state.
func (s *Store) Seed(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
}

func (s *Store) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Len reports how many keys are held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}
