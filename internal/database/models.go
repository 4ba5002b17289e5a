package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ChatRoom struct {
	Id              string
	OwnerId         string
	EmployeeId      string
	OwnerName       string
	EmployeeName    string
	LastMessage     sql.NullString
	LastMessageTime sql.NullTime
	UnreadCount     int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ChatMessage struct {
	Id         string
	RoomId     string
	SenderId   string
	SenderName string
	SenderRole string
	Message    string
	Timestamp  time.Time
	IsRead     bool
}

type CreateRoomParams struct {
	Id           string
	OwnerId      string
	EmployeeId   string
	OwnerName    string
	EmployeeName string
	CreatedAt    time.Time
}

type CreateMessageParams struct {
	Id         string
	RoomId     string
	SenderId   string
	SenderName string
	SenderRole string
	Message    string
	Timestamp  time.Time
}
