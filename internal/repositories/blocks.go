package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"messaging-service/internal/kvstore"
)

// BlockRegistry is the per-user directed block relation. A blocking B only
// gates A's side; it says nothing about B's registry.
type BlockRegistry interface {
	Block(ctx context.Context, ownerID, targetID string) error
	Unblock(ctx context.Context, ownerID, targetID string) error
	IsBlocked(ctx context.Context, ownerID, targetID string) (bool, error)
	List(ctx context.Context, ownerID string) ([]string, error)
}

// KVBlockRegistry stores each owner's block set as a JSON array under
// blocked_users_{owner}. Writes are locked compare-and-swaps so two
// concurrent mutations of the same list cannot clobber each other.
type KVBlockRegistry struct {
	kv    kvstore.Store
	locks *keyMutex
}

// NewBlockRegistry constructs a KVBlockRegistry.
func NewBlockRegistry(kv kvstore.Store) *KVBlockRegistry {
	return &KVBlockRegistry{kv: kv, locks: newKeyMutex()}
}

func blockKey(ownerID string) string {
	return fmt.Sprintf("blocked_users_%s", ownerID)
}

// Block adds targetID to the owner's block list. Idempotent.
func (r *KVBlockRegistry) Block(ctx context.Context, ownerID, targetID string) error {
	return r.updateList(ctx, ownerID, func(list []string) []string {
		for _, id := range list {
			if id == targetID {
				return list
			}
		}
		return append(list, targetID)
	})
}

// Unblock removes targetID from the owner's block list. Idempotent.
func (r *KVBlockRegistry) Unblock(ctx context.Context, ownerID, targetID string) error {
	return r.updateList(ctx, ownerID, func(list []string) []string {
		filtered := list[:0]
		for _, id := range list {
			if id != targetID {
				filtered = append(filtered, id)
			}
		}
		return filtered
	})
}

// IsBlocked reports whether owner has blocked target.
func (r *KVBlockRegistry) IsBlocked(ctx context.Context, ownerID, targetID string) (bool, error) {
	list, err := r.List(ctx, ownerID)
	if err != nil {
		return false, err
	}
	for _, id := range list {
		if id == targetID {
			return true, nil
		}
	}
	return false, nil
}

// List returns the owner's blocked users; empty when none.
func (r *KVBlockRegistry) List(ctx context.Context, ownerID string) ([]string, error) {
	raw, err := r.kv.Get(ctx, blockKey(ownerID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load block list for %s: %w", ownerID, err)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode block list for %s: %w", ownerID, err)
	}
	return list, nil
}

// updateList is a locked read-modify-write of one owner's block list.
func (r *KVBlockRegistry) updateList(ctx context.Context, ownerID string, mutate func([]string) []string) error {
	return updateValue(ctx, r.kv, r.locks, blockKey(ownerID), func(raw []byte) ([]byte, error) {
		list := []string{}
		if raw != nil {
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, fmt.Errorf("decode block list for %s: %w", ownerID, err)
			}
		}
		return json.Marshal(mutate(list))
	})
}
