package client

import "sync"

// MemoryStore keeps artifacts in process memory, backing the ephemeral
// tier.
type MemoryStore struct {
	mu        sync.Mutex
	artifacts *Artifacts
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (*Artifacts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.artifacts == nil {
		return nil, nil
	}

	copied := *s.artifacts
	return &copied, nil
}

func (s *MemoryStore) Save(artifacts *Artifacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *artifacts
	s.artifacts = &copied
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.artifacts = nil
	return nil
}

var _ TierStore = (*MemoryStore)(nil)
