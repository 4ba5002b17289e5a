package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/npezzotti/staffchat/internal/database"
	"github.com/npezzotti/staffchat/internal/testutil"
	"github.com/npezzotti/staffchat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	ownerId    = "owner-1"
	employeeId = "emp-1"
	otherEmpId = "emp-2"
)

// newTestService returns a service over a seeded in-memory store whose clock
// advances one second per call.
func newTestService(t *testing.T) (*Service, *database.MemoryChatRepository) {
	t.Helper()

	repo := database.NewMemoryChatRepository()
	repo.AddUser(database.User{Id: ownerId, Name: "Olivia", Email: "olivia@example.com", Role: "owner"})
	repo.AddUser(database.User{Id: employeeId, Name: "Evan", Email: "evan@example.com", Role: "employee"})
	repo.AddUser(database.User{Id: otherEmpId, Name: "", Email: "erin@example.com", Role: "employee"})

	s := NewService(testutil.TestLogger(t), repo)
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	var seq int
	s.generateMessageId = func() string {
		seq++
		return fmt.Sprintf("msg-%03d", seq)
	}

	return s, repo
}

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, KindOf(err), "unexpected error kind for %v", err)
}

func TestGetOrCreateChatRoom(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	first, err := s.GetOrCreateChatRoom(ctx, ownerId, employeeId)
	require.NoError(t, err)
	assert.NotEmpty(t, first.Id)
	assert.Equal(t, 0, first.UnreadCount)
	assert.Equal(t, "Olivia", first.OwnerName)
	assert.Equal(t, "Evan", first.EmployeeName)
	assert.Equal(t, first.CreatedAt, first.UpdatedAt)
	assert.Nil(t, first.LastMessageTime)

	second, err := s.GetOrCreateChatRoom(ctx, ownerId, employeeId)
	require.NoError(t, err)
	assert.Equal(t, first.Id, second.Id, "expected the same room on the second call")

	other, err := s.GetOrCreateChatRoom(ctx, ownerId, otherEmpId)
	require.NoError(t, err)
	assert.NotEqual(t, first.Id, other.Id)
	assert.Equal(t, defaultEmployeeName, other.EmployeeName, "expected default name for unnamed employee")
}

func TestGetOrCreateChatRoom_Failures(t *testing.T) {
	tcases := []struct {
		name       string
		ownerId    string
		employeeId string
		kind       Kind
	}{
		{name: "owner missing", ownerId: "ghost", employeeId: employeeId, kind: KindNotFound},
		{name: "employee missing", ownerId: ownerId, employeeId: "ghost", kind: KindNotFound},
		{name: "roles swapped", ownerId: employeeId, employeeId: ownerId, kind: KindValidation},
		{name: "two employees", ownerId: otherEmpId, employeeId: employeeId, kind: KindValidation},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			s, repo := newTestService(t)
			_, err := s.GetOrCreateChatRoom(context.Background(), tc.ownerId, tc.employeeId)
			assertKind(t, err, tc.kind)

			rooms, _ := repo.ListRoomsByOwner(context.Background(), tc.ownerId)
			assert.Empty(t, rooms, "expected no room to be created")
		})
	}
}

func TestGetOrCreateChatRoom_StoreError(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)

	storeErr := errors.New("connection reset")
	db.On("FindRoomByParticipants", mock.Anything, ownerId, employeeId).Return(database.ChatRoom{}, storeErr).Once()

	s := NewService(testutil.TestLogger(t), db)
	_, err := s.GetOrCreateChatRoom(context.Background(), ownerId, employeeId)
	assert.ErrorIs(t, err, storeErr, "expected store failure to propagate")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal server error", PublicMessage(err))
}

func TestOpenRoom(t *testing.T) {
	tcases := []struct {
		name         string
		caller       types.Identity
		req          OpenRoomRequest
		noOwner      bool
		wantOwner    string
		wantEmployee string
		kind         Kind
	}{
		{
			name:         "owner names the employee",
			caller:       types.Identity{UserId: ownerId, Role: types.RoleOwner},
			req:          OpenRoomRequest{EmployeeId: employeeId},
			wantOwner:    ownerId,
			wantEmployee: employeeId,
		},
		{
			name:   "owner without employee",
			caller: types.Identity{UserId: ownerId, Role: types.RoleOwner},
			req:    OpenRoomRequest{EmployeeId: "  "},
			kind:   KindValidation,
		},
		{
			name:         "employee is paired with the owner",
			caller:       types.Identity{UserId: employeeId, Role: types.RoleEmployee},
			req:          OpenRoomRequest{OwnerId: "ignored"},
			wantOwner:    ownerId,
			wantEmployee: employeeId,
		},
		{
			name:    "employee with no owner in the system",
			caller:  types.Identity{UserId: employeeId, Role: types.RoleEmployee},
			noOwner: true,
			kind:    KindNotFound,
		},
		{
			name:   "unknown role",
			caller: types.Identity{UserId: "admin-1", Role: types.Role("admin")},
			req:    OpenRoomRequest{EmployeeId: employeeId},
			kind:   KindAuthorization,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			s, repo := newTestService(t)
			if tc.noOwner {
				repo.AddUser(database.User{Id: ownerId, Name: "Olivia", Role: "retired"})
			}

			room, err := s.OpenRoom(context.Background(), tc.caller, tc.req)
			if tc.wantOwner == "" {
				assertKind(t, err, tc.kind)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantOwner, room.OwnerId)
			assert.Equal(t, tc.wantEmployee, room.EmployeeId)
		})
	}
}

func TestSendMessage_NonParticipant(t *testing.T) {
	s, repo := newTestService(t)
	ctx := context.Background()

	room, err := s.GetOrCreateChatRoom(ctx, ownerId, employeeId)
	require.NoError(t, err)

	_, err = s.SendMessage(ctx, room.Id, otherEmpId, "let me in")
	assertKind(t, err, KindAuthorization)

	msgs, _ := repo.ListMessages(ctx, room.Id, 10, 0)
	assert.Empty(t, msgs, "expected no persisted message")

	after, _ := repo.GetRoom(ctx, room.Id)
	assert.Equal(t, 0, after.UnreadCount)
	assert.False(t, after.LastMessage.Valid)
	assert.True(t, after.UpdatedAt.Equal(room.UpdatedAt))
}

func TestSendMessage_RoomNotFound(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.SendMessage(context.Background(), "nope", ownerId, "hi")
	assertKind(t, err, KindNotFound)
}

func TestSendMessage_EmptyHasNoSideEffects(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t "} {
		t.Run(fmt.Sprintf("%q", text), func(t *testing.T) {
			// any store call would fail the mock
			db := &database.MockChatRepository{}
			defer db.AssertExpectations(t)

			s := NewService(testutil.TestLogger(t), db)
			_, err := s.SendMessage(context.Background(), "room-1", ownerId, text)
			assertKind(t, err, KindValidation)
			assert.ErrorIs(t, err, ErrEmptyMessage)
		})
	}
}

func TestSendMessage_CountsEverySend(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	room, err := s.GetOrCreateChatRoom(ctx, ownerId, employeeId)
	require.NoError(t, err)

	senders := []string{employeeId, ownerId, employeeId, ownerId, ownerId}
	var last types.ChatMessage
	for i, sender := range senders {
		last, err = s.SendMessage(ctx, room.Id, sender, fmt.Sprintf("  message %d  ", i+1))
		require.NoError(t, err)
	}

	assert.Equal(t, "message 5", last.Message, "expected text to be trimmed")
	assert.Equal(t, types.RoleOwner, last.SenderRole)
	assert.Equal(t, "Olivia", last.SenderName)
	assert.False(t, last.IsRead)

	got, err := s.GetChatRoomById(ctx, room.Id, ownerId)
	require.NoError(t, err)
	assert.Equal(t, len(senders), got.UnreadCount, "expected one increment per send regardless of sender")
	assert.Equal(t, "message 5", got.LastMessage)
	require.NotNil(t, got.LastMessageTime)
	assert.True(t, got.LastMessageTime.Equal(last.Timestamp))
	assert.True(t, got.UpdatedAt.Equal(last.Timestamp))
}

func TestMarkMessagesAsRead(t *testing.T) {
	s, repo := newTestService(t)
	ctx := context.Background()

	room, err := s.GetOrCreateChatRoom(ctx, ownerId, employeeId)
	require.NoError(t, err)

	for _, sender := range []string{employeeId, ownerId, employeeId} {
		_, err := s.SendMessage(ctx, room.Id, sender, "ping")
		require.NoError(t, err)
	}

	n, err := s.MarkMessagesAsRead(ctx, room.Id, ownerId)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, _ := repo.GetRoom(ctx, room.Id)
	assert.Equal(t, 0, got.UnreadCount)

	msgs, _ := repo.ListMessages(ctx, room.Id, 10, 0)
	for _, m := range msgs {
		if m.SenderId == ownerId {
			assert.False(t, m.IsRead, "expected reader's own message to stay unread")
		} else {
			assert.True(t, m.IsRead, "expected counterpart message to be read")
		}
	}

	_, err = s.MarkMessagesAsRead(ctx, room.Id, otherEmpId)
	assertKind(t, err, KindAuthorization)

	_, err = s.MarkMessagesAsRead(ctx, "nope", ownerId)
	assertKind(t, err, KindNotFound)
}

func TestGetMessages_Pagination(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	room, err := s.GetOrCreateChatRoom(ctx, ownerId, employeeId)
	require.NoError(t, err)

	var sent []types.ChatMessage
	for i := 1; i <= 5; i++ {
		m, err := s.SendMessage(ctx, room.Id, employeeId, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
		sent = append(sent, m)
	}

	tcases := []struct {
		page int
		want []string
	}{
		{page: 1, want: []string{"m4", "m5"}},
		{page: 2, want: []string{"m2", "m3"}},
		{page: 3, want: []string{"m1"}},
		{page: 4, want: []string{}},
	}

	seen := make(map[string]bool)
	for _, tc := range tcases {
		t.Run(fmt.Sprintf("page %d", tc.page), func(t *testing.T) {
			res, err := s.GetMessages(ctx, room.Id, ownerId, tc.page, 2)
			require.NoError(t, err)

			got := make([]string, 0, len(res.Messages))
			for i, m := range res.Messages {
				got = append(got, m.Message)
				assert.False(t, seen[m.Id], "duplicate message %s across pages", m.Id)
				seen[m.Id] = true
				if i > 0 {
					assert.True(t, res.Messages[i-1].Timestamp.Before(m.Timestamp), "expected chronological order")
				}
			}

			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.page, res.Page)
			assert.Equal(t, 2, res.PageSize)
			assert.Equal(t, len(tc.want), res.Total, "expected total to be the page length")
		})
	}

	assert.Len(t, seen, len(sent), "expected no gap across pages")
}

func TestGetMessages_Defaults(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	room, err := s.GetOrCreateChatRoom(ctx, ownerId, employeeId)
	require.NoError(t, err)

	res, err := s.GetMessages(ctx, room.Id, employeeId, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPage, res.Page)
	assert.Equal(t, DefaultPageSize, res.PageSize)
	assert.NotNil(t, res.Messages)

	_, err = s.GetMessages(ctx, room.Id, employeeId, -1, 10)
	assertKind(t, err, KindValidation)

	_, err = s.GetMessages(ctx, room.Id, otherEmpId, 1, 10)
	assertKind(t, err, KindAuthorization)

	_, err = s.GetMessages(ctx, room.Id, "", 1, 10)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestGetMessages_Bounds(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	room, err := s.GetOrCreateChatRoom(ctx, ownerId, employeeId)
	require.NoError(t, err)
	_, err = s.SendMessage(ctx, room.Id, employeeId, "hello")
	require.NoError(t, err)

	tcases := []struct {
		name     string
		page     int
		pageSize int
		err      bool
	}{
		{name: "largest page size", page: 1, pageSize: MaxPageSize},
		{name: "page size over the limit", page: 1, pageSize: MaxPageSize + 1, err: true},
		{name: "huge page size", page: 1, pageSize: 1 << 40, err: true},
		{name: "page whose offset overflows", page: 1 << 61, pageSize: 8, err: true},
		{name: "largest page with the default size", page: math.MaxInt, pageSize: 0, err: true},
		{name: "far page that still fits", page: math.MaxInt / MaxPageSize, pageSize: MaxPageSize},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := s.GetMessages(ctx, room.Id, ownerId, tc.page, tc.pageSize)
			if tc.err {
				assert.ErrorIs(t, err, ErrInvalidPaging)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, res.Messages)
		})
	}
}

func TestGetChatRooms(t *testing.T) {
	s, repo := newTestService(t)
	ctx := context.Background()

	first, err := s.GetOrCreateChatRoom(ctx, ownerId, employeeId)
	require.NoError(t, err)
	second, err := s.GetOrCreateChatRoom(ctx, ownerId, otherEmpId)
	require.NoError(t, err)

	rooms, err := s.GetChatRooms(ctx, ownerId)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, second.Id, rooms[0].Id, "expected newest room first")

	_, err = s.SendMessage(ctx, first.Id, employeeId, "bump")
	require.NoError(t, err)

	rooms, err = s.GetChatRooms(ctx, ownerId)
	require.NoError(t, err)
	assert.Equal(t, first.Id, rooms[0].Id, "expected recently active room first")

	rooms, err = s.GetChatRooms(ctx, employeeId)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, first.Id, rooms[0].Id)

	_, err = s.GetChatRooms(ctx, "ghost")
	assertKind(t, err, KindNotFound)

	repo.AddUser(database.User{Id: "admin-1", Role: "admin"})
	_, err = s.GetChatRooms(ctx, "admin-1")
	assertKind(t, err, KindValidation)
}

func TestGetChatRoomById(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	room, err := s.GetOrCreateChatRoom(ctx, ownerId, employeeId)
	require.NoError(t, err)

	got, err := s.GetChatRoomById(ctx, room.Id, employeeId)
	assert.NoError(t, err)
	assert.Equal(t, room.Id, got.Id)

	_, err = s.GetChatRoomById(ctx, room.Id, otherEmpId)
	assertKind(t, err, KindAuthorization)

	_, err = s.GetChatRoomById(ctx, "nope", employeeId)
	assertKind(t, err, KindNotFound)
}

func TestGetUnreadCount(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	a, err := s.GetOrCreateChatRoom(ctx, ownerId, employeeId)
	require.NoError(t, err)
	b, err := s.GetOrCreateChatRoom(ctx, ownerId, otherEmpId)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = s.SendMessage(ctx, a.Id, employeeId, "a")
		require.NoError(t, err)
	}
	_, err = s.SendMessage(ctx, b.Id, otherEmpId, "b")
	require.NoError(t, err)

	count, err := s.GetUnreadCount(ctx, ownerId)
	require.NoError(t, err)
	assert.Equal(t, 3, count.TotalUnread)

	count, err = s.GetUnreadCount(ctx, otherEmpId)
	require.NoError(t, err)
	assert.Equal(t, 1, count.TotalUnread)

	_, err = s.MarkMessagesAsRead(ctx, a.Id, ownerId)
	require.NoError(t, err)

	count, err = s.GetUnreadCount(ctx, ownerId)
	require.NoError(t, err)
	assert.Equal(t, 1, count.TotalUnread)
}

func TestOwnerEmployeeScenario(t *testing.T) {
	s, repo := newTestService(t)
	ctx := context.Background()

	room, err := s.GetOrCreateChatRoom(ctx, ownerId, employeeId)
	require.NoError(t, err)
	assert.Equal(t, 0, room.UnreadCount)

	hello, err := s.SendMessage(ctx, room.Id, employeeId, "hello")
	require.NoError(t, err)

	got, _ := s.GetChatRoomById(ctx, room.Id, ownerId)
	assert.Equal(t, 1, got.UnreadCount)
	assert.Equal(t, "hello", got.LastMessage)

	_, err = s.MarkMessagesAsRead(ctx, room.Id, ownerId)
	require.NoError(t, err)

	got, _ = s.GetChatRoomById(ctx, room.Id, ownerId)
	assert.Equal(t, 0, got.UnreadCount)

	msgs, _ := repo.ListMessages(ctx, room.Id, 10, 0)
	require.Len(t, msgs, 1)
	assert.Equal(t, hello.Id, msgs[0].Id)
	assert.True(t, msgs[0].IsRead)

	_, err = s.SendMessage(ctx, room.Id, ownerId, "hi")
	require.NoError(t, err)

	// the sender's own message still counts as unread
	got, _ = s.GetChatRoomById(ctx, room.Id, ownerId)
	assert.Equal(t, 1, got.UnreadCount)
	assert.Equal(t, "hi", got.LastMessage)
}

func TestCounterpart(t *testing.T) {
	room := types.ChatRoom{OwnerId: ownerId, EmployeeId: employeeId}
	assert.Equal(t, employeeId, Counterpart(room, ownerId))
	assert.Equal(t, ownerId, Counterpart(room, employeeId))
}

func TestKindOf(t *testing.T) {
	tcases := []struct {
		name string
		err  error
		kind Kind
		msg  string
	}{
		{name: "validation", err: ErrEmptyMessage, kind: KindValidation, msg: "message cannot be empty"},
		{name: "wrapped", err: fmt.Errorf("send: %w", ErrRoomNotFound), kind: KindNotFound, msg: "chat room not found"},
		{name: "plain", err: errors.New("boom"), kind: KindInternal, msg: "internal server error"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, KindOf(tc.err))
			assert.Equal(t, tc.msg, PublicMessage(tc.err))
		})
	}
}
