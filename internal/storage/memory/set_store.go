package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

var errStoreClosed = errors.New("set store closed")

// SetStore provides an in-memory implementation for development/testing.
type SetStore struct {
	mu     sync.RWMutex
	sets   map[string]map[string]struct{}
	closed bool
}

var _ crawler.SetStore = (*SetStore)(nil)

// NewSetStore constructs a SetStore.
func NewSetStore() *SetStore {
	return &SetStore{sets: make(map[string]map[string]struct{})}
}

// Add inserts member into the set at key.
func (s *SetStore) Add(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

// Contains reports whether member is in the set at key.
func (s *SetStore) Contains(_ context.Context, key, member string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, errStoreClosed
	}
	_, ok := s.sets[key][member]
	return ok, nil
}

// Delete drops the sets at keys.
func (s *SetStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	for _, k := range keys {
		delete(s.sets, k)
	}
	return nil
}

// Size returns the cardinality of the set at key.
func (s *SetStore) Size(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sets[key])
}

// Close marks the store closed; later calls fail.
func (s *SetStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
