package database

import "context"

// ChatRepository is the document store used by the chat core. Lookups of
// absent documents return sql.ErrNoRows.
type ChatRepository interface {
	Ping(ctx context.Context) error
	Close() error

	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	FindFirstUserByRole(ctx context.Context, role string) (User, error)

	GetRoom(ctx context.Context, id string) (ChatRoom, error)
	FindRoomByParticipants(ctx context.Context, ownerId, employeeId string) (ChatRoom, error)
	// CreateRoom inserts a room, or returns the existing room for the same
	// (owner, employee) pair.
	CreateRoom(ctx context.Context, params CreateRoomParams) (ChatRoom, error)
	ListRoomsByOwner(ctx context.Context, ownerId string) ([]ChatRoom, error)
	ListRoomsByEmployee(ctx context.Context, employeeId string) ([]ChatRoom, error)

	// CreateMessage appends a message and updates the room summary in one
	// atomic unit. The unread counter is incremented in place.
	CreateMessage(ctx context.Context, params CreateMessageParams) (ChatMessage, error)
	// ListMessages returns a room's messages newest first.
	ListMessages(ctx context.Context, roomId string, limit, offset int) ([]ChatMessage, error)
	// MarkMessagesRead flips isRead on every unread message in the room not
	// sent by readerId and resets the room's unread counter, atomically.
	MarkMessagesRead(ctx context.Context, roomId, readerId string) (int, error)
}
