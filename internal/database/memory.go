package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryChatRepository keeps every collection in process memory. A single
// mutex gives each operation the all-or-nothing semantics of a transaction.
type MemoryChatRepository struct {
	mu       sync.RWMutex
	users    []User
	rooms    map[string]*ChatRoom
	messages map[string][]ChatMessage
}

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		rooms:    make(map[string]*ChatRoom),
		messages: make(map[string][]ChatMessage),
	}
}

// AddUser seeds a user record. Users are managed outside the chat core.
func (m *MemoryChatRepository) AddUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	for i := range m.users {
		if m.users[i].Id == u.Id {
			m.users[i] = u
			return
		}
	}
	m.users = append(m.users, u)
}

func (m *MemoryChatRepository) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryChatRepository) Close() error {
	return nil
}

func (m *MemoryChatRepository) GetUser(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Id == id {
			return u, nil
		}
	}

	return User{}, sql.ErrNoRows
}

func (m *MemoryChatRepository) GetUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}

	return User{}, sql.ErrNoRows
}

func (m *MemoryChatRepository) FindFirstUserByRole(_ context.Context, role string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Role == role {
			return u, nil
		}
	}

	return User{}, sql.ErrNoRows
}

func (m *MemoryChatRepository) GetRoom(_ context.Context, id string) (ChatRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if r, ok := m.rooms[id]; ok {
		return *r, nil
	}

	return ChatRoom{}, sql.ErrNoRows
}

func (m *MemoryChatRepository) FindRoomByParticipants(_ context.Context, ownerId, employeeId string) (ChatRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if r := m.findRoom(ownerId, employeeId); r != nil {
		return *r, nil
	}

	return ChatRoom{}, sql.ErrNoRows
}

func (m *MemoryChatRepository) findRoom(ownerId, employeeId string) *ChatRoom {
	for _, r := range m.rooms {
		if r.OwnerId == ownerId && r.EmployeeId == employeeId {
			return r
		}
	}
	return nil
}

func (m *MemoryChatRepository) CreateRoom(_ context.Context, params CreateRoomParams) (ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r := m.findRoom(params.OwnerId, params.EmployeeId); r != nil {
		return *r, nil
	}

	room := &ChatRoom{
		Id:           params.Id,
		OwnerId:      params.OwnerId,
		EmployeeId:   params.EmployeeId,
		OwnerName:    params.OwnerName,
		EmployeeName: params.EmployeeName,
		CreatedAt:    params.CreatedAt,
		UpdatedAt:    params.CreatedAt,
	}
	m.rooms[room.Id] = room

	return *room, nil
}

func (m *MemoryChatRepository) ListRoomsByOwner(_ context.Context, ownerId string) ([]ChatRoom, error) {
	return m.listRooms(func(r *ChatRoom) bool { return r.OwnerId == ownerId }), nil
}

func (m *MemoryChatRepository) ListRoomsByEmployee(_ context.Context, employeeId string) ([]ChatRoom, error) {
	return m.listRooms(func(r *ChatRoom) bool { return r.EmployeeId == employeeId }), nil
}

func (m *MemoryChatRepository) listRooms(match func(*ChatRoom) bool) []ChatRoom {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]ChatRoom, 0)
	for _, r := range m.rooms {
		if match(r) {
			rooms = append(rooms, *r)
		}
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].UpdatedAt.Equal(rooms[j].UpdatedAt) {
			return rooms[i].Id > rooms[j].Id
		}
		return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
	})

	return rooms
}

func (m *MemoryChatRepository) CreateMessage(_ context.Context, params CreateMessageParams) (ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[params.RoomId]
	if !ok {
		return ChatMessage{}, sql.ErrNoRows
	}

	msg := ChatMessage{
		Id:         params.Id,
		RoomId:     params.RoomId,
		SenderId:   params.SenderId,
		SenderName: params.SenderName,
		SenderRole: params.SenderRole,
		Message:    params.Message,
		Timestamp:  params.Timestamp,
	}
	m.messages[room.Id] = append(m.messages[room.Id], msg)

	room.LastMessage = sql.NullString{String: params.Message, Valid: true}
	room.LastMessageTime = sql.NullTime{Time: params.Timestamp, Valid: true}
	room.UnreadCount++
	room.UpdatedAt = params.Timestamp

	return msg, nil
}

func (m *MemoryChatRepository) ListMessages(_ context.Context, roomId string, limit, offset int) ([]ChatMessage, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("invalid limit %d or offset %d", limit, offset)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.messages[roomId]

	// insertion order breaks timestamp ties, newest first
	ordered := make([]ChatMessage, len(stored))
	for i, msg := range stored {
		ordered[len(stored)-1-i] = msg
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.After(ordered[j].Timestamp)
	})

	if offset >= len(ordered) {
		return make([]ChatMessage, 0), nil
	}

	end := len(ordered)
	if limit < end-offset {
		end = offset + limit
	}

	page := make([]ChatMessage, end-offset)
	copy(page, ordered[offset:end])

	return page, nil
}

func (m *MemoryChatRepository) MarkMessagesRead(_ context.Context, roomId, readerId string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomId]
	if !ok {
		return 0, sql.ErrNoRows
	}

	var flipped int
	msgs := m.messages[roomId]
	for i := range msgs {
		if msgs[i].SenderId != readerId && !msgs[i].IsRead {
			msgs[i].IsRead = true
			flipped++
		}
	}

	room.UnreadCount = 0

	return flipped, nil
}
