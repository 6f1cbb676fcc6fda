// Package autosave keeps in-progress sheets keyed by document identity.
package autosave

import (
	"context"
	"errors"
	"sync"
)

var ErrEmptyKey = errors.New("empty autosave key")

// Store is a minimal blob store. Get reports false when nothing is saved
// under key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, blob []byte) error
}

type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, blob []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	s.mu.Lock()
	s.blobs[key] = cp
	s.mu.Unlock()
	return nil
}
