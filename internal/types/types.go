package types

import (
	"time"
)

type Role string

const (
	RoleOwner    Role = "owner"
	RoleEmployee Role = "employee"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleEmployee
}

type User struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

// Identity is the verified subject of a session token.
type Identity struct {
	UserId string `json:"userId"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
}

type ChatRoom struct {
	Id              string     `json:"id"`
	OwnerId         string     `json:"ownerId"`
	EmployeeId      string     `json:"employeeId"`
	OwnerName       string     `json:"ownerName"`
	EmployeeName    string     `json:"employeeName"`
	LastMessage     string     `json:"lastMessage,omitempty"`
	LastMessageTime *time.Time `json:"lastMessageTime,omitempty"`
	UnreadCount     int        `json:"unreadCount"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// HasParticipant reports whether userId is the room's owner or employee.
func (r ChatRoom) HasParticipant(userId string) bool {
	return userId != "" && (r.OwnerId == userId || r.EmployeeId == userId)
}

type ChatMessage struct {
	Id         string    `json:"id"`
	RoomId     string    `json:"roomId"`
	SenderId   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	SenderRole Role      `json:"senderRole"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	IsRead     bool      `json:"isRead"`
}

type MessagePage struct {
	RoomId   string        `json:"roomId"`
	Messages []ChatMessage `json:"messages"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Total    int           `json:"total"`
}

type OnlineUser struct {
	ConnectionId string `json:"connectionId"`
	UserId       string `json:"userId"`
	UserName     string `json:"userName"`
	UserRole     Role   `json:"userRole"`
}

type UnreadCount struct {
	TotalUnread int `json:"totalUnread"`
}
