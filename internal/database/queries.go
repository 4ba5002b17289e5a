package database

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	userColumns    = "id, name, email, password_hash, role, created_at, updated_at"
	roomColumns    = "id, owner_id, employee_id, owner_name, employee_name, last_message, last_message_time, unread_count, created_at, updated_at"
	messageColumns = "id, room_id, sender_id, sender_name, sender_role, message, timestamp, is_read"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func scanRoom(row scanner) (ChatRoom, error) {
	var r ChatRoom
	err := row.Scan(
		&r.Id,
		&r.OwnerId,
		&r.EmployeeId,
		&r.OwnerName,
		&r.EmployeeName,
		&r.LastMessage,
		&r.LastMessageTime,
		&r.UnreadCount,
		&r.CreatedAt,
		&r.UpdatedAt,
	)

	return r, err
}

func scanMessage(row scanner) (ChatMessage, error) {
	var m ChatMessage
	err := row.Scan(
		&m.Id,
		&m.RoomId,
		&m.SenderId,
		&m.SenderName,
		&m.SenderRole,
		&m.Message,
		&m.Timestamp,
		&m.IsRead,
	)

	return m, err
}

func (db *PgChatRepository) GetUser(ctx context.Context, id string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1 LIMIT 1",
		id,
	)

	return scanUser(row)
}

func (db *PgChatRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1 LIMIT 1",
		email,
	)

	return scanUser(row)
}

func (db *PgChatRepository) FindFirstUserByRole(ctx context.Context, role string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE role = $1 ORDER BY created_at, id LIMIT 1",
		role,
	)

	return scanUser(row)
}

func (db *PgChatRepository) GetRoom(ctx context.Context, id string) (ChatRoom, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM chat_rooms WHERE id = $1 LIMIT 1",
		id,
	)

	return scanRoom(row)
}

func (db *PgChatRepository) FindRoomByParticipants(ctx context.Context, ownerId, employeeId string) (ChatRoom, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM chat_rooms WHERE owner_id = $1 AND employee_id = $2 LIMIT 1",
		ownerId,
		employeeId,
	)

	return scanRoom(row)
}

func (db *PgChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (ChatRoom, error) {
	// the no-op update makes RETURNING yield the existing row on conflict
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO chat_rooms (id, owner_id, employee_id, owner_name, employee_name, unread_count, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, 0, $6, $6) "+
			"ON CONFLICT (owner_id, employee_id) DO UPDATE SET owner_id = EXCLUDED.owner_id "+
			"RETURNING "+roomColumns,
		params.Id,
		params.OwnerId,
		params.EmployeeId,
		params.OwnerName,
		params.EmployeeName,
		params.CreatedAt,
	)

	return scanRoom(row)
}

func (db *PgChatRepository) ListRoomsByOwner(ctx context.Context, ownerId string) ([]ChatRoom, error) {
	return db.listRooms(ctx, "owner_id", ownerId)
}

func (db *PgChatRepository) ListRoomsByEmployee(ctx context.Context, employeeId string) ([]ChatRoom, error) {
	return db.listRooms(ctx, "employee_id", employeeId)
}

// listRooms only receives column names from this package.
func (db *PgChatRepository) listRooms(ctx context.Context, column, userId string) ([]ChatRoom, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+roomColumns+" FROM chat_rooms WHERE "+column+" = $1 ORDER BY updated_at DESC",
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]ChatRoom, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}

		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return rooms, nil
}

func (db *PgChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (msg ChatMessage, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return ChatMessage{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		"INSERT INTO chat_messages (id, room_id, sender_id, sender_name, sender_role, message, timestamp, is_read) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, false) RETURNING "+messageColumns,
		params.Id,
		params.RoomId,
		params.SenderId,
		params.SenderName,
		params.SenderRole,
		params.Message,
		params.Timestamp,
	)

	msg, err = scanMessage(row)
	if err != nil {
		return ChatMessage{}, err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE chat_rooms SET last_message = $2, last_message_time = $3, "+
			"unread_count = unread_count + 1, updated_at = $3 WHERE id = $1",
		params.RoomId,
		params.Message,
		params.Timestamp,
	)
	if err != nil {
		return ChatMessage{}, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return ChatMessage{}, err
	}
	if n == 0 {
		err = sql.ErrNoRows
		return ChatMessage{}, err
	}

	if err = tx.Commit(); err != nil {
		return ChatMessage{}, err
	}

	return msg, nil
}

func (db *PgChatRepository) ListMessages(ctx context.Context, roomId string, limit, offset int) ([]ChatMessage, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM chat_messages WHERE room_id = $1 "+
			"ORDER BY timestamp DESC, id DESC LIMIT $2 OFFSET $3",
		roomId,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return messages, nil
}

func (db *PgChatRepository) MarkMessagesRead(ctx context.Context, roomId, readerId string) (n int, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"UPDATE chat_messages SET is_read = true WHERE room_id = $1 AND sender_id <> $2 AND is_read = false",
		roomId,
		readerId,
	)
	if err != nil {
		return 0, err
	}

	flipped, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE chat_rooms SET unread_count = 0 WHERE id = $1",
		roomId,
	)
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	return int(flipped), nil
}
