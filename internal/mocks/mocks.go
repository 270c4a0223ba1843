package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
)

type ConversationStoreMock struct {
	mock.Mock
}

func (m *ConversationStoreMock) Load(ctx context.Context, key string) ([]models.Message, error) {
	args := m.Called(ctx, key)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *ConversationStoreMock) Append(ctx context.Context, key string, msg models.Message) error {
	args := m.Called(ctx, key, msg)
	return args.Error(0)
}

func (m *ConversationStoreMock) Replace(ctx context.Context, key string, msgs []models.Message) error {
	args := m.Called(ctx, key, msgs)
	return args.Error(0)
}

func (m *ConversationStoreMock) Update(ctx context.Context, key string, mutate func([]models.Message) ([]models.Message, error)) ([]models.Message, error) {
	args := m.Called(ctx, key, mutate)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type BlockRegistryMock struct {
	mock.Mock
}

func (m *BlockRegistryMock) Block(ctx context.Context, ownerID, targetID string) error {
	args := m.Called(ctx, ownerID, targetID)
	return args.Error(0)
}

func (m *BlockRegistryMock) Unblock(ctx context.Context, ownerID, targetID string) error {
	args := m.Called(ctx, ownerID, targetID)
	return args.Error(0)
}

func (m *BlockRegistryMock) IsBlocked(ctx context.Context, ownerID, targetID string) (bool, error) {
	args := m.Called(ctx, ownerID, targetID)
	return args.Bool(0), args.Error(1)
}

func (m *BlockRegistryMock) List(ctx context.Context, ownerID string) ([]string, error) {
	args := m.Called(ctx, ownerID)
	var list []string
	if val := args.Get(0); val != nil {
		list = val.([]string)
	}
	return list, args.Error(1)
}

type GroupRegistryMock struct {
	mock.Mock
}

func (m *GroupRegistryMock) Create(ctx context.Context, creatorID, name string, participantIDs []string) (models.Group, error) {
	args := m.Called(ctx, creatorID, name, participantIDs)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRegistryMock) Get(ctx context.Context, viewerID, groupID string) (models.Group, error) {
	args := m.Called(ctx, viewerID, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRegistryMock) List(ctx context.Context, userID string) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var list []models.Group
	if val := args.Get(0); val != nil {
		list = val.([]models.Group)
	}
	return list, args.Error(1)
}

func (m *GroupRegistryMock) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRegistryMock) AddParticipants(ctx context.Context, groupID, requesterID string, newIDs []string) (models.Group, error) {
	args := m.Called(ctx, groupID, requesterID, newIDs)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRegistryMock) RemoveParticipant(ctx context.Context, groupID, requesterID, targetID string) (models.Group, error) {
	args := m.Called(ctx, groupID, requesterID, targetID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRegistryMock) PromoteAdmin(ctx context.Context, groupID, requesterID, targetID string) (models.Group, error) {
	args := m.Called(ctx, groupID, requesterID, targetID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRegistryMock) Leave(ctx context.Context, groupID, requesterID string) error {
	args := m.Called(ctx, groupID, requesterID)
	return args.Error(0)
}

type UnreadCountersMock struct {
	mock.Mock
}

func (m *UnreadCountersMock) Increment(ctx context.Context, ownerID, peerID string) error {
	args := m.Called(ctx, ownerID, peerID)
	return args.Error(0)
}

func (m *UnreadCountersMock) Reset(ctx context.Context, ownerID, peerID string) error {
	args := m.Called(ctx, ownerID, peerID)
	return args.Error(0)
}

func (m *UnreadCountersMock) Get(ctx context.Context, ownerID, peerID string) (int, error) {
	args := m.Called(ctx, ownerID, peerID)
	return args.Int(0), args.Error(1)
}
