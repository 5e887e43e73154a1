package http

import (
	"sync"

	"spendtrend/internal/pipeline"
)

// ResultStore holds the most recent pipeline output for concurrent readers
type ResultStore struct {
	mu     sync.RWMutex
	latest *pipeline.Output
}

// NewResultStore creates an empty store
func NewResultStore() *ResultStore {
	return &ResultStore{}
}

// Set replaces the stored output
func (s *ResultStore) Set(out *pipeline.Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = out
}

// Latest returns the stored output, if any run has completed
func (s *ResultStore) Latest() (*pipeline.Output, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}
