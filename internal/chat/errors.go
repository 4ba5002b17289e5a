package chat

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified failure of a chat operation. Message is safe to show
// to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrEmptyMessage     = newError(KindValidation, "message cannot be empty")
	ErrRoomNotFound     = newError(KindNotFound, "chat room not found")
	ErrUserNotFound     = newError(KindNotFound, "user not found")
	ErrNoOwner          = newError(KindNotFound, "no owner found in the system")
	ErrInvalidRoles     = newError(KindValidation, "invalid user roles for chat")
	ErrInvalidRole      = newError(KindValidation, "invalid user role")
	ErrForbiddenRole    = newError(KindAuthorization, "invalid user role")
	ErrNotParticipant   = newError(KindAuthorization, "you are not authorized to access this chat room")
	ErrEmployeeRequired = newError(KindValidation, "employeeId is required for owner")
	ErrInvalidPaging    = newError(KindValidation, "page and pageSize must be positive integers, pageSize at most 100")
)

// KindOf classifies err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var chatErr *Error
	if errors.As(err, &chatErr) {
		return chatErr.Kind
	}

	return KindInternal
}

// PublicMessage returns the message to report to a client for err.
func PublicMessage(err error) string {
	var chatErr *Error
	if errors.As(err, &chatErr) && chatErr.Kind != KindInternal {
		return chatErr.Message
	}

	return "internal server error"
}
