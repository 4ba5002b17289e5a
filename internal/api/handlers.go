package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/staffchat/internal/chat"
	"github.com/npezzotti/staffchat/internal/server"
)

type SendMessageRequest struct {
	Message string `json:"message"`
}

type readAck struct {
	RoomId      string `json:"roomId"`
	MarkedCount int    `json:"markedCount"`
}

func (s *ChatApp) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("json encode")
	}
}

func (s *ChatApp) writeData(w http.ResponseWriter, statusCode int, data any, msg string) {
	s.writeJson(w, statusCode, envelope{Success: true, Data: data, Message: msg})
}

func (s *ChatApp) writeError(w http.ResponseWriter, r *http.Request, apiErr *ApiError) {
	if apiErr.StatusCode >= http.StatusInternalServerError {
		s.log.Error().Err(apiErr).Str("path", r.URL.Path).Msg("request failed")
	}

	s.writeJson(w, apiErr.StatusCode, envelope{Success: false, Message: apiErr.Message})
}

func (s *ChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("health check")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *ChatApp) createRoom(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	// employees may post no body at all
	var req chat.OpenRoomRequest
	if apiErr := decodeBody(r, &req, true); apiErr != nil {
		s.writeError(w, r, apiErr)
		return
	}

	room, err := s.chat.OpenRoom(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, fromChatError(err))
		return
	}

	s.writeData(w, http.StatusOK, room, "chat room created successfully")
}

func (s *ChatApp) getRooms(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	rooms, err := s.chat.GetChatRooms(r.Context(), id.UserId)
	if err != nil {
		s.writeError(w, r, fromChatError(err))
		return
	}

	s.writeData(w, http.StatusOK, rooms, "chat rooms retrieved successfully")
}

func (s *ChatApp) getRoom(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	room, err := s.chat.GetChatRoomById(r.Context(), r.PathValue("roomId"), id.UserId)
	if err != nil {
		s.writeError(w, r, fromChatError(err))
		return
	}

	s.writeData(w, http.StatusOK, room, "chat room details retrieved successfully")
}

// decodeBody decodes a JSON request body into v. allowEmpty accepts a
// missing body.
func decodeBody(r *http.Request, v any, allowEmpty bool) *ApiError {
	err := json.NewDecoder(r.Body).Decode(v)

	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case allowEmpty && errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &tooLarge):
		return NewRequestTooLargeError("request body too large")
	default:
		return NewBadRequestError("invalid request body")
	}
}

// queryInt reads an optional integer query parameter. Missing means 0.
func queryInt(r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, true
	}

	n, err := strconv.Atoi(v)
	return n, err == nil
}

func (s *ChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	page, okPage := queryInt(r, "page")
	pageSize, okSize := queryInt(r, "pageSize")
	if !okPage || !okSize {
		s.writeError(w, r, fromChatError(chat.ErrInvalidPaging))
		return
	}

	messages, err := s.chat.GetMessages(r.Context(), r.PathValue("roomId"), id.UserId, page, pageSize)
	if err != nil {
		s.writeError(w, r, fromChatError(err))
		return
	}

	s.writeData(w, http.StatusOK, messages, "messages retrieved successfully")
}

func (s *ChatApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var req SendMessageRequest
	if apiErr := decodeBody(r, &req, false); apiErr != nil {
		s.writeError(w, r, apiErr)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, r, NewBadRequestError("message content is required"))
		return
	}

	msg, err := s.chat.SendMessage(r.Context(), r.PathValue("roomId"), id.UserId, req.Message)
	if err != nil {
		s.writeError(w, r, fromChatError(err))
		return
	}

	s.writeData(w, http.StatusCreated, msg, "message sent successfully")
}

func (s *ChatApp) markRead(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	roomId := r.PathValue("roomId")

	n, err := s.chat.MarkMessagesAsRead(r.Context(), roomId, id.UserId)
	if err != nil {
		s.writeError(w, r, fromChatError(err))
		return
	}

	s.writeData(w, http.StatusOK, readAck{RoomId: roomId, MarkedCount: n}, "messages marked as read successfully")
}

func (s *ChatApp) unreadCount(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	count, err := s.chat.GetUnreadCount(r.Context(), id.UserId)
	if err != nil {
		s.writeError(w, r, fromChatError(err))
		return
	}

	s.writeData(w, http.StatusOK, count, "unread count retrieved successfully")
}

func (s *ChatApp) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	return slices.Contains(s.allowedOrigins, origin)
}

func (s *ChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, r, NewUnauthorizedError(""))
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade connection")
		return
	}

	client := server.NewClient(id, conn, s.cs)
	go client.Serve()
}
