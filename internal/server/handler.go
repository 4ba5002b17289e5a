package server

import (
	"context"
	"maps"

	"github.com/npezzotti/staffchat/internal/chat"
	"github.com/npezzotti/staffchat/internal/presence"
	"github.com/npezzotti/staffchat/internal/types"
	"github.com/rs/zerolog"
)

// ChatService is the part of chat.Service the gateway drives.
type ChatService interface {
	GetChatRoomById(ctx context.Context, roomId, callerId string) (types.ChatRoom, error)
	SendMessage(ctx context.Context, roomId, senderId, text string) (types.ChatMessage, error)
	MarkMessagesAsRead(ctx context.Context, roomId, userId string) (int, error)
	GetUnreadCount(ctx context.Context, userId string) (types.UnreadCount, error)
}

type Deps struct {
	Chat     ChatService
	Presence presence.Registry
	Log      zerolog.Logger
}

// ConnState is what the gateway knows about one connection.
type ConnState struct {
	ConnectionId string
	Identity     types.Identity
	ActiveRoom   string
	Rooms        map[string]struct{}
}

func (s ConnState) withRoom(roomId string) ConnState {
	rooms := maps.Clone(s.Rooms)
	if rooms == nil {
		rooms = make(map[string]struct{})
	}
	rooms[roomId] = struct{}{}
	s.Rooms = rooms
	s.ActiveRoom = roomId
	return s
}

func (s ConnState) withoutRoom(roomId string) ConnState {
	rooms := maps.Clone(s.Rooms)
	delete(rooms, roomId)
	s.Rooms = rooms
	if s.ActiveRoom == roomId {
		s.ActiveRoom = ""
	}
	return s
}

type EffectKind int

const (
	EffectReply EffectKind = iota
	EffectPublish
	EffectBroadcast
	EffectSubscribe
	EffectUnsubscribe
)

// Effect is an action the connection performs after handling an event.
// EffectBroadcast goes to every connection except the caller.
type Effect struct {
	Kind     EffectKind
	Group    string
	Event    *ServerEvent
	SkipSelf bool
}

func reply(ev *ServerEvent) Effect {
	return Effect{Kind: EffectReply, Event: ev}
}

func publish(group string, ev *ServerEvent, skipSelf bool) Effect {
	return Effect{Kind: EffectPublish, Group: group, Event: ev, SkipSelf: skipSelf}
}

func broadcastOthers(ev *ServerEvent) Effect {
	return Effect{Kind: EffectBroadcast, Event: ev}
}

func subscribe(group string) Effect {
	return Effect{Kind: EffectSubscribe, Group: group}
}

func unsubscribe(group string) Effect {
	return Effect{Kind: EffectUnsubscribe, Group: group}
}

func roomGroup(roomId string) string {
	return "room:" + roomId
}

func userGroup(userId string) string {
	return "user:" + userId
}

func failure(log zerolog.Logger, event string, err error) []Effect {
	level := zerolog.WarnLevel
	if chat.KindOf(err) == chat.KindInternal {
		level = zerolog.ErrorLevel
	}
	log.WithLevel(level).Err(err).Str("event", event).Msg("event failed")

	return []Effect{reply(ErrorEvent(chat.PublicMessage(err)))}
}

func handleConnect(ctx context.Context, state ConnState, deps Deps) (ConnState, []Effect) {
	id := state.Identity
	err := deps.Presence.Register(ctx, types.OnlineUser{
		ConnectionId: state.ConnectionId,
		UserId:       id.UserId,
		UserName:     id.Name,
		UserRole:     id.Role,
	})
	if err != nil {
		deps.Log.Error().Err(err).Str("user_id", id.UserId).Msg("register presence")
	}

	online, err := deps.Presence.Snapshot(ctx)
	if err != nil {
		deps.Log.Error().Err(err).Msg("presence snapshot")
	}

	return state, []Effect{
		subscribe(userGroup(id.UserId)),
		broadcastOthers(UserOnline(id)),
		reply(OnlineUsers(online)),
	}
}

func handleEvent(ctx context.Context, state ConnState, ev Event, deps Deps) (ConnState, []Effect) {
	id := state.Identity
	log := deps.Log.With().Str("user_id", id.UserId).Logger()

	switch e := ev.(type) {
	case JoinRoom:
		if _, err := deps.Chat.GetChatRoomById(ctx, e.RoomId, id.UserId); err != nil {
			return state, failure(log, EventJoinChatRoom, err)
		}

		state = state.withRoom(e.RoomId)
		effects := []Effect{
			subscribe(roomGroup(e.RoomId)),
			reply(JoinedChatRoom(e.RoomId)),
		}

		if _, err := deps.Chat.MarkMessagesAsRead(ctx, e.RoomId, id.UserId); err != nil {
			return state, append(effects, failure(log, EventJoinChatRoom, err)...)
		}

		log.Debug().Str("room_id", e.RoomId).Msg("joined room")
		return state, append(effects, publish(roomGroup(e.RoomId), UserJoinedRoom(id), true))

	case SendMessage:
		msg, err := deps.Chat.SendMessage(ctx, e.RoomId, id.UserId, e.Message)
		if err != nil {
			return state, failure(log, EventSendMessage, err)
		}

		effects := []Effect{publish(roomGroup(e.RoomId), NewMessage(msg), false)}

		room, err := deps.Chat.GetChatRoomById(ctx, e.RoomId, id.UserId)
		if err != nil {
			log.Error().Err(err).Str("room_id", e.RoomId).Msg("resolve message recipient")
			return state, effects
		}
		if recipient := chat.Counterpart(room, id.UserId); recipient != "" {
			effects = append(effects, publish(userGroup(recipient), MessageNotification(id, msg), false))
		}

		return state, effects

	case LeaveRoom:
		state = state.withoutRoom(e.RoomId)
		return state, []Effect{
			unsubscribe(roomGroup(e.RoomId)),
			reply(LeftChatRoom(e.RoomId)),
			publish(roomGroup(e.RoomId), UserLeftRoom(id), true),
		}

	case Typing:
		return state, []Effect{publish(roomGroup(e.RoomId), UserTyping(id, e.IsTyping), true)}

	case MarkAsRead:
		if _, err := deps.Chat.MarkMessagesAsRead(ctx, e.RoomId, id.UserId); err != nil {
			return state, failure(log, EventMarkAsRead, err)
		}

		return state, []Effect{
			reply(MessagesMarkedRead(e.RoomId)),
			publish(roomGroup(e.RoomId), MessagesReadByUser(id, e.RoomId), true),
		}

	case GetUnreadCount:
		count, err := deps.Chat.GetUnreadCount(ctx, id.UserId)
		if err != nil {
			return state, failure(log, EventGetUnreadCount, err)
		}

		return state, []Effect{reply(UnreadCount(count))}

	default:
		return state, []Effect{reply(ErrInvalidMessage())}
	}
}

// handleDisconnect always succeeds. Presence is only cleared, and offline
// only announced, when the entry still belongs to this connection.
func handleDisconnect(ctx context.Context, state ConnState, deps Deps) (ConnState, []Effect) {
	id := state.Identity
	var effects []Effect

	removed, err := deps.Presence.Unregister(ctx, id.UserId, state.ConnectionId)
	if err != nil {
		deps.Log.Error().Err(err).Str("user_id", id.UserId).Msg("unregister presence")
	}
	if removed {
		effects = append(effects, broadcastOthers(UserOffline(id)))
	}

	for roomId := range state.Rooms {
		effects = append(effects, publish(roomGroup(roomId), UserLeftRoom(id), true))
	}

	state.ActiveRoom = ""
	state.Rooms = nil
	return state, effects
}
