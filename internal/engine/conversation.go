package engine

import "messaging-service/internal/repositories"

// Conversation identifies a message history: either the stable pair of a
// direct chat or a group.
type Conversation struct {
	Key     string
	Direct  bool
	UserA   string
	UserB   string
	GroupID string
}

// DirectConversation builds the conversation between two users. Order of
// the arguments does not matter; both directions share one key.
func DirectConversation(userA, userB string) Conversation {
	return Conversation{
		Key:    repositories.DirectKey(userA, userB),
		Direct: true,
		UserA:  userA,
		UserB:  userB,
	}
}

// GroupConversation builds the conversation of a group.
func GroupConversation(groupID string) Conversation {
	return Conversation{
		Key:     repositories.GroupKey(groupID),
		GroupID: groupID,
	}
}

// Peer returns the other side of a direct conversation.
func (c Conversation) Peer(userID string) string {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}

func (c Conversation) hasUser(userID string) bool {
	return c.UserA == userID || c.UserB == userID
}
