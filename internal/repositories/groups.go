package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"messaging-service/internal/kvstore"
	"messaging-service/internal/models"
)

var (
	// ErrGroupNotFound is returned when a group is absent from the
	// requester's registry view.
	ErrGroupNotFound = errors.New("group not found")
	// ErrUnauthorized is returned for operations the requester may not
	// perform. It is an expected outcome, not an exceptional one.
	ErrUnauthorized = errors.New("not authorized")
)

// AddPolicy controls who may add participants to a group. Observed source
// behavior imposes no admin check on add (unlike remove), so the default
// is AddAnyMember; deployments can tighten it.
type AddPolicy string

const (
	AddAnyMember  AddPolicy = "any_member"
	AddAdminsOnly AddPolicy = "admins_only"
)

// ParseAddPolicy maps a config string to an AddPolicy, defaulting to
// AddAnyMember.
func ParseAddPolicy(s string) AddPolicy {
	if s == string(AddAdminsOnly) {
		return AddAdminsOnly
	}
	return AddAnyMember
}

// GroupRegistry manages group entities. Groups live in per-user registry
// views (user_groups_{userID}); shared mutations fan out to every
// participant's view, while Leave touches only the requester's own view.
type GroupRegistry interface {
	Create(ctx context.Context, creatorID, name string, participantIDs []string) (models.Group, error)
	Get(ctx context.Context, viewerID, groupID string) (models.Group, error)
	List(ctx context.Context, userID string) ([]models.Group, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	AddParticipants(ctx context.Context, groupID, requesterID string, newIDs []string) (models.Group, error)
	RemoveParticipant(ctx context.Context, groupID, requesterID, targetID string) (models.Group, error)
	PromoteAdmin(ctx context.Context, groupID, requesterID, targetID string) (models.Group, error)
	Leave(ctx context.Context, groupID, requesterID string) error
}

// KVGroupRegistry is a GroupRegistry over a key-value substrate. View
// writes go through a per-key locked compare-and-swap so concurrent
// fan-outs to the same user's view cannot lose an update.
type KVGroupRegistry struct {
	kv        kvstore.Store
	locks     *keyMutex
	addPolicy AddPolicy
}

// NewGroupRegistry constructs a KVGroupRegistry.
func NewGroupRegistry(kv kvstore.Store, addPolicy AddPolicy) *KVGroupRegistry {
	return &KVGroupRegistry{kv: kv, locks: newKeyMutex(), addPolicy: addPolicy}
}

func groupsKey(userID string) string {
	return fmt.Sprintf("user_groups_%s", userID)
}

// Create builds the group and registers it in every participant's view.
// The creator is always a participant and the sole initial admin.
func (r *KVGroupRegistry) Create(ctx context.Context, creatorID, name string, participantIDs []string) (models.Group, error) {
	seen := map[string]bool{creatorID: true}
	participants := []string{creatorID}
	for _, id := range participantIDs {
		if !seen[id] {
			seen[id] = true
			participants = append(participants, id)
		}
	}

	group := models.Group{
		ID:           uuid.NewString(),
		Name:         name,
		Participants: participants,
		Admins:       []string{creatorID},
		CreatedBy:    creatorID,
		CreatedAt:    time.Now().UnixMilli(),
	}

	for _, userID := range participants {
		if err := r.appendToView(ctx, userID, group); err != nil {
			return models.Group{}, err
		}
	}
	return group, nil
}

// Get returns the group as seen from the viewer's registry.
func (r *KVGroupRegistry) Get(ctx context.Context, viewerID, groupID string) (models.Group, error) {
	groups, err := r.List(ctx, viewerID)
	if err != nil {
		return models.Group{}, err
	}
	for _, g := range groups {
		if g.ID == groupID {
			return g, nil
		}
	}
	return models.Group{}, ErrGroupNotFound
}

// List returns every group registered in the user's view.
func (r *KVGroupRegistry) List(ctx context.Context, userID string) ([]models.Group, error) {
	raw, err := r.kv.Get(ctx, groupsKey(userID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return []models.Group{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load groups for %s: %w", userID, err)
	}
	var groups []models.Group
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("decode groups for %s: %w", userID, err)
	}
	return groups, nil
}

// IsMember reports whether userID participates in the group per their own
// registry view.
func (r *KVGroupRegistry) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	group, err := r.Get(ctx, userID, groupID)
	if errors.Is(err, ErrGroupNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return group.HasParticipant(userID), nil
}

// AddParticipants grows the group. Authorization follows the configured
// AddPolicy; the default mirrors observed behavior where any member may add.
func (r *KVGroupRegistry) AddParticipants(ctx context.Context, groupID, requesterID string, newIDs []string) (models.Group, error) {
	group, err := r.Get(ctx, requesterID, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if !group.HasParticipant(requesterID) {
		return models.Group{}, ErrUnauthorized
	}
	if r.addPolicy == AddAdminsOnly && !group.HasAdmin(requesterID) {
		return models.Group{}, ErrUnauthorized
	}

	added := []string{}
	for _, id := range newIDs {
		if !group.HasParticipant(id) {
			group.Participants = append(group.Participants, id)
			added = append(added, id)
		}
	}
	if len(added) == 0 {
		return group, nil
	}

	if err := r.fanOut(ctx, group, group.Participants); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// RemoveParticipant removes target from participants and admins. Only
// admins may remove, and the creator cannot be removed (they must leave).
func (r *KVGroupRegistry) RemoveParticipant(ctx context.Context, groupID, requesterID, targetID string) (models.Group, error) {
	group, err := r.Get(ctx, requesterID, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if !group.HasAdmin(requesterID) {
		return models.Group{}, ErrUnauthorized
	}
	if targetID == group.CreatedBy {
		return models.Group{}, ErrUnauthorized
	}
	if !group.HasParticipant(targetID) {
		return models.Group{}, ErrGroupNotFound
	}

	group.Participants = remove(group.Participants, targetID)
	group.Admins = remove(group.Admins, targetID)

	if err := r.fanOut(ctx, group, group.Participants); err != nil {
		return models.Group{}, err
	}
	if err := r.dropFromView(ctx, targetID, group.ID); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// PromoteAdmin makes target an admin. Admin-only; target must already be a
// participant.
func (r *KVGroupRegistry) PromoteAdmin(ctx context.Context, groupID, requesterID, targetID string) (models.Group, error) {
	group, err := r.Get(ctx, requesterID, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if !group.HasAdmin(requesterID) {
		return models.Group{}, ErrUnauthorized
	}
	if !group.HasParticipant(targetID) {
		return models.Group{}, ErrGroupNotFound
	}
	if group.HasAdmin(targetID) {
		return group, nil
	}

	group.Admins = append(group.Admins, targetID)
	if err := r.fanOut(ctx, group, group.Participants); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// Leave drops the group from the requester's own registry view only. Other
// participants keep their registration; there is no group-wide delete.
func (r *KVGroupRegistry) Leave(ctx context.Context, groupID, requesterID string) error {
	if _, err := r.Get(ctx, requesterID, groupID); err != nil {
		return err
	}
	return r.dropFromView(ctx, requesterID, groupID)
}

func (r *KVGroupRegistry) appendToView(ctx context.Context, userID string, group models.Group) error {
	return r.updateView(ctx, userID, func(groups []models.Group) []models.Group {
		return append(groups, group)
	})
}

// fanOut writes the updated group into every listed participant's view.
func (r *KVGroupRegistry) fanOut(ctx context.Context, group models.Group, userIDs []string) error {
	for _, userID := range userIDs {
		err := r.updateView(ctx, userID, func(groups []models.Group) []models.Group {
			for i := range groups {
				if groups[i].ID == group.ID {
					groups[i] = group
					return groups
				}
			}
			return append(groups, group)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *KVGroupRegistry) dropFromView(ctx context.Context, userID, groupID string) error {
	return r.updateView(ctx, userID, func(groups []models.Group) []models.Group {
		filtered := groups[:0]
		for _, g := range groups {
			if g.ID != groupID {
				filtered = append(filtered, g)
			}
		}
		return filtered
	})
}

// updateView is a locked read-modify-write of one user's registry view.
func (r *KVGroupRegistry) updateView(ctx context.Context, userID string, mutate func([]models.Group) []models.Group) error {
	return updateValue(ctx, r.kv, r.locks, groupsKey(userID), func(raw []byte) ([]byte, error) {
		groups := []models.Group{}
		if raw != nil {
			if err := json.Unmarshal(raw, &groups); err != nil {
				return nil, fmt.Errorf("decode groups for %s: %w", userID, err)
			}
		}
		return json.Marshal(mutate(groups))
	})
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
