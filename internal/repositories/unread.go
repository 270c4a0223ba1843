package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"messaging-service/internal/kvstore"
)

// UnreadCounters tracks per-peer unread counts for direct chats. Group
// chats carry no unread tracking; that asymmetry comes from the source
// system and is deliberate.
type UnreadCounters interface {
	Increment(ctx context.Context, ownerID, peerID string) error
	Reset(ctx context.Context, ownerID, peerID string) error
	Get(ctx context.Context, ownerID, peerID string) (int, error)
}

// KVUnreadCounters stores counters as integer strings under
// chat_unread_{owner}_{peer}.
type KVUnreadCounters struct {
	kv kvstore.Store
}

// NewUnreadCounters constructs a KVUnreadCounters.
func NewUnreadCounters(kv kvstore.Store) *KVUnreadCounters {
	return &KVUnreadCounters{kv: kv}
}

func unreadKey(ownerID, peerID string) string {
	return fmt.Sprintf("chat_unread_%s_%s", ownerID, peerID)
}

// Increment bumps the counter by one using compare-and-swap so concurrent
// sends do not drop increments.
func (r *KVUnreadCounters) Increment(ctx context.Context, ownerID, peerID string) error {
	key := unreadKey(ownerID, peerID)
	for attempt := 0; attempt < casRetries; attempt++ {
		raw, err := r.kv.Get(ctx, key)
		count := 0
		switch {
		case errors.Is(err, kvstore.ErrNotFound):
			raw = nil
		case err != nil:
			return fmt.Errorf("load unread %s: %w", key, err)
		default:
			count, _ = strconv.Atoi(string(raw))
		}

		err = r.kv.SetIfUnchanged(ctx, key, raw, []byte(strconv.Itoa(count+1)))
		if errors.Is(err, kvstore.ErrModified) {
			continue
		}
		if err != nil {
			return fmt.Errorf("store unread %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("increment unread %s: %w", key, ErrStaleWrite)
}

// Reset zeroes the counter; called when the owner opens the conversation.
func (r *KVUnreadCounters) Reset(ctx context.Context, ownerID, peerID string) error {
	if err := r.kv.Set(ctx, unreadKey(ownerID, peerID), []byte("0")); err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	return nil
}

// Get returns the counter, zero when absent or unparseable.
func (r *KVUnreadCounters) Get(ctx context.Context, ownerID, peerID string) (int, error) {
	raw, err := r.kv.Get(ctx, unreadKey(ownerID, peerID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load unread: %w", err)
	}
	count, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, nil
	}
	return count, nil
}
