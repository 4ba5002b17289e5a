package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/npezzotti/staffchat/internal/database"
	"github.com/npezzotti/staffchat/internal/types"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/teris-io/shortid"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 50
	MaxPageSize     = 100

	defaultOwnerName    = "Owner"
	defaultEmployeeName = "Employee"
	defaultSenderName   = "Unknown"
)

// Service implements the room directory and message accessor shared by the
// REST facade and the websocket gateway.
type Service struct {
	log               zerolog.Logger
	db                database.ChatRepository
	now               func() time.Time
	generateRoomId    func() (string, error)
	generateMessageId func() string
}

func NewService(logger zerolog.Logger, db database.ChatRepository) *Service {
	return &Service{
		log:               logger.With().Str("component", "chat").Logger(),
		db:                db,
		now:               Now,
		generateRoomId:    shortid.Generate,
		generateMessageId: func() string { return ulid.Make().String() },
	}
}

// Now returns the current UTC time at millisecond precision.
func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

// GetOrCreateChatRoom returns the room for the (owner, employee) pair,
// creating it on first contact.
func (s *Service) GetOrCreateChatRoom(ctx context.Context, ownerId, employeeId string) (types.ChatRoom, error) {
	existing, err := s.db.FindRoomByParticipants(ctx, ownerId, employeeId)
	if err == nil {
		return roomFromDB(existing), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.ChatRoom{}, fmt.Errorf("find room: %w", err)
	}

	var (
		wg               sync.WaitGroup
		owner, employee  database.User
		ownerErr, empErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		owner, ownerErr = s.db.GetUser(ctx, ownerId)
	}()
	go func() {
		defer wg.Done()
		employee, empErr = s.db.GetUser(ctx, employeeId)
	}()
	wg.Wait()

	for _, err := range []error{ownerErr, empErr} {
		if err == nil {
			continue
		}
		if errors.Is(err, sql.ErrNoRows) {
			return types.ChatRoom{}, &Error{Kind: KindNotFound, Message: "owner or employee not found"}
		}
		return types.ChatRoom{}, fmt.Errorf("get user: %w", err)
	}

	if types.Role(owner.Role) != types.RoleOwner || types.Role(employee.Role) != types.RoleEmployee {
		return types.ChatRoom{}, ErrInvalidRoles
	}

	id, err := s.generateRoomId()
	if err != nil {
		return types.ChatRoom{}, fmt.Errorf("generate room id: %w", err)
	}

	room, err := s.db.CreateRoom(ctx, database.CreateRoomParams{
		Id:           id,
		OwnerId:      ownerId,
		EmployeeId:   employeeId,
		OwnerName:    nameOr(owner.Name, defaultOwnerName),
		EmployeeName: nameOr(employee.Name, defaultEmployeeName),
		CreatedAt:    s.now(),
	})
	if err != nil {
		return types.ChatRoom{}, fmt.Errorf("create room: %w", err)
	}

	s.log.Info().
		Str("room_id", room.Id).
		Str("owner_id", ownerId).
		Str("employee_id", employeeId).
		Msg("chat room created")

	return roomFromDB(room), nil
}

// OpenRoom resolves the room participants from the caller's role and returns
// their room.
func (s *Service) OpenRoom(ctx context.Context, caller types.Identity, req OpenRoomRequest) (types.ChatRoom, error) {
	ownerId, employeeId, err := s.resolveParticipants(ctx, caller, req)
	if err != nil {
		return types.ChatRoom{}, err
	}

	return s.GetOrCreateChatRoom(ctx, ownerId, employeeId)
}

// GetChatRooms lists the user's rooms, most recently active first.
func (s *Service) GetChatRooms(ctx context.Context, userId string) ([]types.ChatRoom, error) {
	user, err := s.getUser(ctx, userId)
	if err != nil {
		return nil, err
	}

	var rooms []database.ChatRoom
	switch types.Role(user.Role) {
	case types.RoleOwner:
		rooms, err = s.db.ListRoomsByOwner(ctx, userId)
	case types.RoleEmployee:
		rooms, err = s.db.ListRoomsByEmployee(ctx, userId)
	default:
		return nil, ErrInvalidRole
	}
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	res := make([]types.ChatRoom, 0, len(rooms))
	for _, r := range rooms {
		res = append(res, roomFromDB(r))
	}

	return res, nil
}

// GetChatRoomById returns the room if callerId participates in it.
func (s *Service) GetChatRoomById(ctx context.Context, roomId, callerId string) (types.ChatRoom, error) {
	room, err := s.authorizedRoom(ctx, roomId, callerId)
	if err != nil {
		return types.ChatRoom{}, err
	}

	return roomFromDB(room), nil
}

// SendMessage appends a message to the room and updates its summary. The
// unread counter is incremented whoever the sender is.
func (s *Service) SendMessage(ctx context.Context, roomId, senderId, text string) (types.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.ChatMessage{}, ErrEmptyMessage
	}

	if _, err := s.authorizedRoom(ctx, roomId, senderId); err != nil {
		return types.ChatMessage{}, err
	}

	sender, err := s.db.GetUser(ctx, senderId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ChatMessage{}, &Error{Kind: KindNotFound, Message: "sender not found"}
		}
		return types.ChatMessage{}, fmt.Errorf("get sender: %w", err)
	}

	msg, err := s.db.CreateMessage(ctx, database.CreateMessageParams{
		Id:         s.generateMessageId(),
		RoomId:     roomId,
		SenderId:   senderId,
		SenderName: nameOr(sender.Name, defaultSenderName),
		SenderRole: sender.Role,
		Message:    text,
		Timestamp:  s.now(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ChatMessage{}, ErrRoomNotFound
		}
		return types.ChatMessage{}, fmt.Errorf("create message: %w", err)
	}

	return messageFromDB(msg), nil
}

// GetMessages returns one page of the room's history in chronological order.
// Page 1 holds the newest messages. Total is the size of the returned page.
func (s *Service) GetMessages(ctx context.Context, roomId, userId string, page, pageSize int) (types.MessagePage, error) {
	if page < 0 || pageSize < 0 || pageSize > MaxPageSize {
		return types.MessagePage{}, ErrInvalidPaging
	}
	if page == 0 {
		page = DefaultPage
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	// the offset must fit in an int
	if page-1 > math.MaxInt/pageSize {
		return types.MessagePage{}, ErrInvalidPaging
	}

	if _, err := s.authorizedRoom(ctx, roomId, userId); err != nil {
		return types.MessagePage{}, err
	}

	msgs, err := s.db.ListMessages(ctx, roomId, pageSize, (page-1)*pageSize)
	if err != nil {
		return types.MessagePage{}, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]types.ChatMessage, len(msgs))
	for i, m := range msgs {
		messages[len(msgs)-1-i] = messageFromDB(m)
	}

	return types.MessagePage{
		RoomId:   roomId,
		Messages: messages,
		Page:     page,
		PageSize: pageSize,
		Total:    len(messages),
	}, nil
}

// MarkMessagesAsRead marks every message userId did not send as read and
// resets the room's unread counter. It returns the number of flipped messages.
func (s *Service) MarkMessagesAsRead(ctx context.Context, roomId, userId string) (int, error) {
	if _, err := s.authorizedRoom(ctx, roomId, userId); err != nil {
		return 0, err
	}

	n, err := s.db.MarkMessagesRead(ctx, roomId, userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrRoomNotFound
		}
		return 0, fmt.Errorf("mark messages read: %w", err)
	}

	return n, nil
}

// GetUnreadCount sums the unread counters of the user's rooms.
func (s *Service) GetUnreadCount(ctx context.Context, userId string) (types.UnreadCount, error) {
	rooms, err := s.GetChatRooms(ctx, userId)
	if err != nil {
		return types.UnreadCount{}, err
	}

	var total int
	for _, r := range rooms {
		total += r.UnreadCount
	}

	return types.UnreadCount{TotalUnread: total}, nil
}

// Counterpart returns the participant of room that is not userId.
func Counterpart(room types.ChatRoom, userId string) string {
	if room.OwnerId == userId {
		return room.EmployeeId
	}
	return room.OwnerId
}

func (s *Service) authorizedRoom(ctx context.Context, roomId, userId string) (database.ChatRoom, error) {
	room, err := s.db.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ChatRoom{}, ErrRoomNotFound
		}
		return database.ChatRoom{}, fmt.Errorf("get room: %w", err)
	}

	if !roomFromDB(room).HasParticipant(userId) {
		return database.ChatRoom{}, ErrNotParticipant
	}

	return room, nil
}

func (s *Service) getUser(ctx context.Context, userId string) (database.User, error) {
	user, err := s.db.GetUser(ctx, userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.User{}, ErrUserNotFound
		}
		return database.User{}, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func roomFromDB(r database.ChatRoom) types.ChatRoom {
	room := types.ChatRoom{
		Id:           r.Id,
		OwnerId:      r.OwnerId,
		EmployeeId:   r.EmployeeId,
		OwnerName:    r.OwnerName,
		EmployeeName: r.EmployeeName,
		UnreadCount:  r.UnreadCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}

	if r.LastMessage.Valid {
		room.LastMessage = r.LastMessage.String
	}
	if r.LastMessageTime.Valid {
		t := r.LastMessageTime.Time
		room.LastMessageTime = &t
	}

	return room
}

func messageFromDB(m database.ChatMessage) types.ChatMessage {
	return types.ChatMessage{
		Id:         m.Id,
		RoomId:     m.RoomId,
		SenderId:   m.SenderId,
		SenderName: m.SenderName,
		SenderRole: types.Role(m.SenderRole),
		Message:    m.Message,
		Timestamp:  m.Timestamp,
		IsRead:     m.IsRead,
	}
}
