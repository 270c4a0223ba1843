package kvstore

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned when a key has no value.
	ErrNotFound = errors.New("key not found")
	// ErrModified is returned by SetIfUnchanged when the stored value no
	// longer matches the caller's snapshot.
	ErrModified = errors.New("value modified concurrently")
)

// Store is the injected key-value substrate. Values are opaque bytes;
// callers own the schema.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetIfUnchanged writes value only if the current stored value equals
	// old. A nil old means the key must not exist yet.
	SetIfUnchanged(ctx context.Context, key string, old, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryStore is an in-process Store used by tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	return cp, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	return nil
}

func (s *MemoryStore) SetIfUnchanged(ctx context.Context, key string, old, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.data[key]
	if old == nil {
		if exists {
			return ErrModified
		}
	} else if !exists || string(cur) != string(old) {
		return ErrModified
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
