package kvstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleStore is an embedded Store backed by a Pebble database. Pebble has
// no native compare-and-swap, so SetIfUnchanged is serialized by a
// store-level mutex; that is sufficient for a single-process deployment.
type PebbleStore struct {
	db *pebble.DB
	mu sync.Mutex
}

// OpenPebble opens (or creates) a Pebble database at path.
func OpenPebble(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	log.Printf("pebble store opened path=%s", path)
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	cp := make([]byte, len(val))
	copy(cp, val)
	return cp, nil
}

func (s *PebbleStore) Set(ctx context.Context, key string, value []byte) error {
	return s.db.Set([]byte(key), value, pebble.Sync)
}

func (s *PebbleStore) SetIfUnchanged(ctx context.Context, key string, old, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		if old != nil {
			return ErrModified
		}
	case err != nil:
		return err
	default:
		if old == nil || !bytes.Equal(cur, old) {
			return ErrModified
		}
	}
	return s.db.Set([]byte(key), value, pebble.Sync)
}

func (s *PebbleStore) Delete(ctx context.Context, key string) error {
	return s.db.Delete([]byte(key), pebble.Sync)
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
