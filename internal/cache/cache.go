// Package cache provides a process-wide memoizing key-value cache.
// Values are computed on first access and held until evicted.
package cache

import "sync"

// ComputeFunc produces the value for a key on a cache miss.
type ComputeFunc func() (any, error)

// Service is a generic get-or-compute cache. Computation runs outside the
// lock, so concurrent misses for the same key may compute more than once;
// the first stored value wins. Callers must keep compute functions
// idempotent and side-effect free.
type Service struct {
	mu    sync.RWMutex
	slots map[string]any
}

func New() *Service {
	return &Service{slots: make(map[string]any)}
}

// GetOrCompute returns the cached value for key, computing and storing it
// if absent. A compute error is returned without caching anything.
func (s *Service) GetOrCompute(key string, compute ComputeFunc) (any, error) {
	s.mu.RLock()
	v, ok := s.slots[key]
	s.mu.RUnlock()
	if ok {
		return v, nil
	}

	computed, err := compute()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.slots[key]; ok {
		// Another goroutine stored a value while we were computing.
		return existing, nil
	}
	s.slots[key] = computed
	return computed, nil
}

// Evict removes the value for key. The next GetOrCompute recomputes.
func (s *Service) Evict(key string) {
	s.mu.Lock()
	delete(s.slots, key)
	s.mu.Unlock()
}
