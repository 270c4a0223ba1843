package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"messaging-service/internal/kvstore"
	"messaging-service/internal/models"
)

// ErrStaleWrite is returned when a write lost a race against another
// writer and could not be retried.
var ErrStaleWrite = errors.New("stale write")

const casRetries = 3

// ConversationStore persists ordered message lists. Values are stored as
// full JSON arrays; every mutation is a read-modify-write of the whole
// conversation.
type ConversationStore interface {
	Load(ctx context.Context, key string) ([]models.Message, error)
	Append(ctx context.Context, key string, msg models.Message) error
	Replace(ctx context.Context, key string, msgs []models.Message) error
	// Update applies mutate to the stored list under the conversation's
	// write lock and persists the result. Returning an error from mutate
	// aborts the update without writing.
	Update(ctx context.Context, key string, mutate func([]models.Message) ([]models.Message, error)) ([]models.Message, error)
}

// DirectKey builds the storage key for a 1:1 conversation. The key is a
// function of the stable pair, so both directions resolve to the same
// conversation.
func DirectKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("chat_messages_%s:%s", userA, userB)
}

// GroupKey builds the storage key for a group conversation.
func GroupKey(groupID string) string {
	return fmt.Sprintf("group_messages_%s", groupID)
}

// KVConversationStore is a ConversationStore over a key-value substrate.
// Writes to one conversation are serialized by a per-key mutex and the
// final store write is a compare-and-swap, so concurrent processes cannot
// silently clobber each other.
type KVConversationStore struct {
	kv    kvstore.Store
	locks *keyMutex
}

// NewConversationStore constructs a KVConversationStore.
func NewConversationStore(kv kvstore.Store) *KVConversationStore {
	return &KVConversationStore{kv: kv, locks: newKeyMutex()}
}

// Load returns the conversation's messages, or an empty list when the key
// is absent. A missing key is not an error: an empty conversation and a
// failed load must stay distinguishable for callers.
func (s *KVConversationStore) Load(ctx context.Context, key string) ([]models.Message, error) {
	msgs, _, err := s.load(ctx, key)
	return msgs, err
}

func (s *KVConversationStore) load(ctx context.Context, key string) ([]models.Message, []byte, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []models.Message{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load conversation %s: %w", key, err)
	}
	var msgs []models.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, nil, fmt.Errorf("decode conversation %s: %w", key, err)
	}
	return msgs, raw, nil
}

// Append adds one message to the end of the conversation.
func (s *KVConversationStore) Append(ctx context.Context, key string, msg models.Message) error {
	_, err := s.Update(ctx, key, func(msgs []models.Message) ([]models.Message, error) {
		return append(msgs, msg), nil
	})
	return err
}

// Replace overwrites the conversation with msgs.
func (s *KVConversationStore) Replace(ctx context.Context, key string, msgs []models.Message) error {
	_, err := s.Update(ctx, key, func([]models.Message) ([]models.Message, error) {
		return msgs, nil
	})
	return err
}

// Update performs a locked read-modify-write. A compare-and-swap failure
// (another process wrote in between) is retried a few times before
// surfacing ErrStaleWrite.
func (s *KVConversationStore) Update(ctx context.Context, key string, mutate func([]models.Message) ([]models.Message, error)) ([]models.Message, error) {
	lock := s.locks.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	for attempt := 0; attempt < casRetries; attempt++ {
		msgs, raw, err := s.load(ctx, key)
		if err != nil {
			return nil, err
		}

		updated, err := mutate(msgs)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(updated)
		if err != nil {
			return nil, fmt.Errorf("encode conversation %s: %w", key, err)
		}

		err = s.kv.SetIfUnchanged(ctx, key, raw, data)
		if errors.Is(err, kvstore.ErrModified) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store conversation %s: %w", key, err)
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update conversation %s: %w", key, ErrStaleWrite)
}
