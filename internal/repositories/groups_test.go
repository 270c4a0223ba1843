package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/kvstore"
)

func newGroups(policy AddPolicy) *KVGroupRegistry {
	return NewGroupRegistry(kvstore.NewMemoryStore(), policy)
}

func TestCreateGroupIncludesCreatorAsAdmin(t *testing.T) {
	groups := newGroups(AddAnyMember)
	ctx := context.Background()

	group, err := groups.Create(ctx, "alice", "trip", []string{"bob", "bob", "alice"})
	require.NoError(t, err)

	assert.NotEmpty(t, group.ID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, group.Participants)
	assert.Equal(t, []string{"alice"}, group.Admins)
	assert.Equal(t, "alice", group.CreatedBy)

	// Every participant sees the group in their own list.
	for _, user := range []string{"alice", "bob"} {
		list, err := groups.List(ctx, user)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, group.ID, list[0].ID)
	}
}

func TestGetGroupRequiresMembership(t *testing.T) {
	groups := newGroups(AddAnyMember)
	ctx := context.Background()
	group, err := groups.Create(ctx, "alice", "trip", nil)
	require.NoError(t, err)

	_, err = groups.Get(ctx, "mallory", group.ID)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestAddParticipantsAnyMemberPolicy(t *testing.T) {
	groups := newGroups(AddAnyMember)
	ctx := context.Background()
	group, err := groups.Create(ctx, "alice", "trip", []string{"bob"})
	require.NoError(t, err)

	updated, err := groups.AddParticipants(ctx, group.ID, "bob", []string{"carol"})
	require.NoError(t, err)
	assert.Contains(t, updated.Participants, "carol")

	list, err := groups.List(ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAddParticipantsAdminsOnlyPolicy(t *testing.T) {
	groups := newGroups(AddAdminsOnly)
	ctx := context.Background()
	group, err := groups.Create(ctx, "alice", "trip", []string{"bob"})
	require.NoError(t, err)

	_, err = groups.AddParticipants(ctx, group.ID, "bob", []string{"carol"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = groups.AddParticipants(ctx, group.ID, "alice", []string{"carol"})
	assert.NoError(t, err)
}

func TestRemoveParticipantAdminOnly(t *testing.T) {
	groups := newGroups(AddAnyMember)
	ctx := context.Background()
	group, err := groups.Create(ctx, "alice", "trip", []string{"bob", "carol"})
	require.NoError(t, err)

	_, err = groups.RemoveParticipant(ctx, group.ID, "bob", "carol")
	assert.ErrorIs(t, err, ErrUnauthorized)

	updated, err := groups.RemoveParticipant(ctx, group.ID, "alice", "carol")
	require.NoError(t, err)
	assert.NotContains(t, updated.Participants, "carol")

	list, err := groups.List(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRemoveCreatorRejected(t *testing.T) {
	groups := newGroups(AddAnyMember)
	ctx := context.Background()
	group, err := groups.Create(ctx, "alice", "trip", []string{"bob"})
	require.NoError(t, err)

	_, err = groups.PromoteAdmin(ctx, group.ID, "alice", "bob")
	require.NoError(t, err)

	_, err = groups.RemoveParticipant(ctx, group.ID, "bob", "alice")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPromoteAdmin(t *testing.T) {
	groups := newGroups(AddAnyMember)
	ctx := context.Background()
	group, err := groups.Create(ctx, "alice", "trip", []string{"bob"})
	require.NoError(t, err)

	_, err = groups.PromoteAdmin(ctx, group.ID, "bob", "bob")
	assert.ErrorIs(t, err, ErrUnauthorized)

	updated, err := groups.PromoteAdmin(ctx, group.ID, "alice", "bob")
	require.NoError(t, err)
	assert.Contains(t, updated.Admins, "bob")
}

func TestLeaveDropsOwnViewOnly(t *testing.T) {
	groups := newGroups(AddAnyMember)
	ctx := context.Background()
	group, err := groups.Create(ctx, "alice", "trip", []string{"bob"})
	require.NoError(t, err)

	require.NoError(t, groups.Leave(ctx, group.ID, "bob"))

	list, err := groups.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, list)

	// Alice still sees the group.
	list, err = groups.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestConcurrentFanOutsToOneViewLoseNothing(t *testing.T) {
	groups := newGroups(AddAnyMember)
	ctx := context.Background()

	// Every create fans out to the same participant's view.
	const creators = 16
	done := make(chan error, creators)
	for i := 0; i < creators; i++ {
		go func(n int) {
			_, err := groups.Create(ctx, string(rune('a'+n)), "shared", []string{"hub"})
			done <- err
		}(i)
	}
	for i := 0; i < creators; i++ {
		require.NoError(t, <-done)
	}

	list, err := groups.List(ctx, "hub")
	require.NoError(t, err)
	assert.Len(t, list, creators)
}

func TestIsMemberUnknownGroup(t *testing.T) {
	groups := newGroups(AddAnyMember)

	member, err := groups.IsMember(context.Background(), "nope", "alice")
	require.NoError(t, err)
	assert.False(t, member)
}

func TestParseAddPolicy(t *testing.T) {
	assert.Equal(t, AddAdminsOnly, ParseAddPolicy("admins_only"))
	assert.Equal(t, AddAnyMember, ParseAddPolicy("any_member"))
	assert.Equal(t, AddAnyMember, ParseAddPolicy("bogus"))
}
