package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"messaging-service/internal/kvstore"
)

// keyMutex hands out one mutex per storage key, serializing writers to
// the same key while unrelated keys proceed in parallel.
type keyMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyMutex() *keyMutex {
	return &keyMutex{locks: map[string]*sync.Mutex{}}
}

func (m *keyMutex) lockFor(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// updateValue performs a locked read-modify-write of one key. mutate
// receives the current raw value (nil when the key is absent) and
// returns the replacement. The final write is a compare-and-swap,
// retried a few times before surfacing ErrStaleWrite.
func updateValue(ctx context.Context, kv kvstore.Store, locks *keyMutex, key string, mutate func(raw []byte) ([]byte, error)) error {
	lock := locks.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	for attempt := 0; attempt < casRetries; attempt++ {
		raw, err := kv.Get(ctx, key)
		if errors.Is(err, kvstore.ErrNotFound) {
			raw = nil
		} else if err != nil {
			return fmt.Errorf("load %s: %w", key, err)
		}

		data, err := mutate(raw)
		if err != nil {
			return err
		}

		err = kv.SetIfUnchanged(ctx, key, raw, data)
		if errors.Is(err, kvstore.ErrModified) {
			continue
		}
		if err != nil {
			return fmt.Errorf("store %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("update %s: %w", key, ErrStaleWrite)
}
