package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/kvstore"
)

func TestBlockIsDirectional(t *testing.T) {
	blocks := NewBlockRegistry(kvstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, blocks.Block(ctx, "alice", "bob"))

	blocked, err := blocks.IsBlocked(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = blocks.IsBlocked(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestBlockIdempotent(t *testing.T) {
	blocks := NewBlockRegistry(kvstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, blocks.Block(ctx, "alice", "bob"))
	require.NoError(t, blocks.Block(ctx, "alice", "bob"))

	list, err := blocks.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, list)
}

func TestUnblock(t *testing.T) {
	blocks := NewBlockRegistry(kvstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, blocks.Block(ctx, "alice", "bob"))
	require.NoError(t, blocks.Unblock(ctx, "alice", "bob"))

	blocked, err := blocks.IsBlocked(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, blocked)

	// Unblocking someone never blocked is fine.
	require.NoError(t, blocks.Unblock(ctx, "alice", "carol"))
}

func TestBlockConcurrentWritersLoseNothing(t *testing.T) {
	blocks := NewBlockRegistry(kvstore.NewMemoryStore())
	ctx := context.Background()

	const writers = 16
	done := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func(n int) {
			done <- blocks.Block(ctx, "alice", string(rune('a'+n)))
		}(i)
	}
	for i := 0; i < writers; i++ {
		require.NoError(t, <-done)
	}

	list, err := blocks.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, writers)
}

func TestListEmptyWhenNeverBlocked(t *testing.T) {
	blocks := NewBlockRegistry(kvstore.NewMemoryStore())

	list, err := blocks.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}
