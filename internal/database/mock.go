package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockChatRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) GetUser(ctx context.Context, id string) (User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) FindFirstUserByRole(ctx context.Context, role string) (User, error) {
	args := m.Called(ctx, role)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetRoom(ctx context.Context, id string) (ChatRoom, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(ChatRoom), args.Error(1)
}
func (m *MockChatRepository) FindRoomByParticipants(ctx context.Context, ownerId, employeeId string) (ChatRoom, error) {
	args := m.Called(ctx, ownerId, employeeId)
	return args.Get(0).(ChatRoom), args.Error(1)
}
func (m *MockChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (ChatRoom, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(ChatRoom), args.Error(1)
}
func (m *MockChatRepository) ListRoomsByOwner(ctx context.Context, ownerId string) ([]ChatRoom, error) {
	args := m.Called(ctx, ownerId)
	return args.Get(0).([]ChatRoom), args.Error(1)
}
func (m *MockChatRepository) ListRoomsByEmployee(ctx context.Context, employeeId string) ([]ChatRoom, error) {
	args := m.Called(ctx, employeeId)
	return args.Get(0).([]ChatRoom), args.Error(1)
}
func (m *MockChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (ChatMessage, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(ChatMessage), args.Error(1)
}
func (m *MockChatRepository) ListMessages(ctx context.Context, roomId string, limit, offset int) ([]ChatMessage, error) {
	args := m.Called(ctx, roomId, limit, offset)
	return args.Get(0).([]ChatMessage), args.Error(1)
}
func (m *MockChatRepository) MarkMessagesRead(ctx context.Context, roomId, readerId string) (int, error) {
	args := m.Called(ctx, roomId, readerId)
	return args.Int(0), args.Error(1)
}
