package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/npezzotti/staffchat/internal/types"
)

// Inbound event names.
const (
	EventJoinChatRoom   = "join-chat-room"
	EventSendMessage    = "send-message"
	EventLeaveChatRoom  = "leave-chat-room"
	EventTyping         = "typing"
	EventMarkAsRead     = "mark-as-read"
	EventGetUnreadCount = "get-unread-count"
)

// Outbound event names.
const (
	EventUserOnline          = "user-online"
	EventOnlineUsers         = "online-users"
	EventJoinedChatRoom      = "joined-chat-room"
	EventUserJoinedRoom      = "user-joined-room"
	EventNewMessage          = "new-message"
	EventMessageNotification = "message-notification"
	EventLeftChatRoom        = "left-chat-room"
	EventUserLeftRoom        = "user-left-room"
	EventUserTyping          = "user-typing"
	EventMessagesMarkedRead  = "messages-marked-read"
	EventMessagesReadByUser  = "messages-read-by-user"
	EventUnreadCount         = "unread-count"
	EventUserOffline         = "user-offline"
	EventError               = "error"
)

var errInvalidEvent = errors.New("invalid message format")

// Event is one of JoinRoom, SendMessage, LeaveRoom, Typing, MarkAsRead or
// GetUnreadCount.
type Event interface {
	eventName() string
}

type JoinRoom struct {
	RoomId string `json:"roomId"`
}

type SendMessage struct {
	RoomId  string `json:"roomId"`
	Message string `json:"message"`
}

type LeaveRoom struct {
	RoomId string `json:"roomId"`
}

type Typing struct {
	RoomId   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

type MarkAsRead struct {
	RoomId string `json:"roomId"`
}

type GetUnreadCount struct{}

func (JoinRoom) eventName() string       { return EventJoinChatRoom }
func (SendMessage) eventName() string    { return EventSendMessage }
func (LeaveRoom) eventName() string      { return EventLeaveChatRoom }
func (Typing) eventName() string         { return EventTyping }
func (MarkAsRead) eventName() string     { return EventMarkAsRead }
func (GetUnreadCount) eventName() string { return EventGetUnreadCount }

type clientEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// decodeEvent parses a client frame. Every event except get-unread-count
// must name a room.
func decodeEvent(raw []byte) (Event, error) {
	var env clientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errInvalidEvent
	}

	var (
		ev     Event
		roomId string
		err    error
	)
	switch env.Event {
	case EventJoinChatRoom:
		var e JoinRoom
		err = unmarshalData(env.Data, &e)
		ev, roomId = e, e.RoomId
	case EventSendMessage:
		var e SendMessage
		err = unmarshalData(env.Data, &e)
		ev, roomId = e, e.RoomId
	case EventLeaveChatRoom:
		var e LeaveRoom
		err = unmarshalData(env.Data, &e)
		ev, roomId = e, e.RoomId
	case EventTyping:
		var e Typing
		err = unmarshalData(env.Data, &e)
		ev, roomId = e, e.RoomId
	case EventMarkAsRead:
		var e MarkAsRead
		err = unmarshalData(env.Data, &e)
		ev, roomId = e, e.RoomId
	case EventGetUnreadCount:
		return GetUnreadCount{}, nil
	default:
		return nil, errInvalidEvent
	}

	if err != nil || roomId == "" {
		return nil, errInvalidEvent
	}

	return ev, nil
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errInvalidEvent
	}

	return json.Unmarshal(data, v)
}

// ServerEvent is a frame sent to a client.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type roomPayload struct {
	RoomId string `json:"roomId"`
}

type userPayload struct {
	UserId   string `json:"userId"`
	UserName string `json:"userName"`
}

type userOnlinePayload struct {
	UserId   string     `json:"userId"`
	UserName string     `json:"userName"`
	UserRole types.Role `json:"userRole"`
}

type notificationPayload struct {
	RoomId     string     `json:"roomId"`
	SenderName string     `json:"senderName"`
	SenderRole types.Role `json:"senderRole"`
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
}

type typingPayload struct {
	UserId   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

type readByUserPayload struct {
	UserId   string `json:"userId"`
	UserName string `json:"userName"`
	RoomId   string `json:"roomId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func UserOnline(id types.Identity) *ServerEvent {
	return &ServerEvent{
		Event: EventUserOnline,
		Data:  userOnlinePayload{UserId: id.UserId, UserName: id.Name, UserRole: id.Role},
	}
}

func OnlineUsers(users []types.OnlineUser) *ServerEvent {
	if users == nil {
		users = []types.OnlineUser{}
	}
	return &ServerEvent{Event: EventOnlineUsers, Data: users}
}

func JoinedChatRoom(roomId string) *ServerEvent {
	return &ServerEvent{Event: EventJoinedChatRoom, Data: roomPayload{RoomId: roomId}}
}

func UserJoinedRoom(id types.Identity) *ServerEvent {
	return &ServerEvent{Event: EventUserJoinedRoom, Data: userPayload{UserId: id.UserId, UserName: id.Name}}
}

func NewMessage(msg types.ChatMessage) *ServerEvent {
	return &ServerEvent{Event: EventNewMessage, Data: msg}
}

// MessageNotification tells a participant about a message in a room they
// may not have open.
func MessageNotification(sender types.Identity, msg types.ChatMessage) *ServerEvent {
	return &ServerEvent{
		Event: EventMessageNotification,
		Data: notificationPayload{
			RoomId:     msg.RoomId,
			SenderName: sender.Name,
			SenderRole: sender.Role,
			Message:    msg.Message,
			Timestamp:  msg.Timestamp,
		},
	}
}

func LeftChatRoom(roomId string) *ServerEvent {
	return &ServerEvent{Event: EventLeftChatRoom, Data: roomPayload{RoomId: roomId}}
}

func UserLeftRoom(id types.Identity) *ServerEvent {
	return &ServerEvent{Event: EventUserLeftRoom, Data: userPayload{UserId: id.UserId, UserName: id.Name}}
}

func UserTyping(id types.Identity, isTyping bool) *ServerEvent {
	return &ServerEvent{
		Event: EventUserTyping,
		Data:  typingPayload{UserId: id.UserId, UserName: id.Name, IsTyping: isTyping},
	}
}

func MessagesMarkedRead(roomId string) *ServerEvent {
	return &ServerEvent{Event: EventMessagesMarkedRead, Data: roomPayload{RoomId: roomId}}
}

func MessagesReadByUser(id types.Identity, roomId string) *ServerEvent {
	return &ServerEvent{
		Event: EventMessagesReadByUser,
		Data:  readByUserPayload{UserId: id.UserId, UserName: id.Name, RoomId: roomId},
	}
}

func UnreadCount(count types.UnreadCount) *ServerEvent {
	return &ServerEvent{Event: EventUnreadCount, Data: count}
}

func UserOffline(id types.Identity) *ServerEvent {
	return &ServerEvent{Event: EventUserOffline, Data: userPayload{UserId: id.UserId, UserName: id.Name}}
}

func ErrorEvent(message string) *ServerEvent {
	return &ServerEvent{Event: EventError, Data: errorPayload{Message: message}}
}

func ErrInvalidMessage() *ServerEvent {
	return ErrorEvent(errInvalidEvent.Error())
}
