package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/staffchat/internal/chat"
)

type ApiError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func newApiError(status int, msg string) *ApiError {
	if msg == "" {
		msg = strings.ToLower(http.StatusText(status))
	}
	return &ApiError{StatusCode: status, Message: msg}
}

func NewBadRequestError(msg string) *ApiError {
	return newApiError(http.StatusBadRequest, msg)
}

func NewNotFoundError(msg string) *ApiError {
	return newApiError(http.StatusNotFound, msg)
}

func NewUnauthorizedError(msg string) *ApiError {
	return newApiError(http.StatusUnauthorized, msg)
}

func NewForbiddenError(msg string) *ApiError {
	return newApiError(http.StatusForbidden, msg)
}

func NewConflictError(msg string) *ApiError {
	return newApiError(http.StatusConflict, msg)
}

func NewRequestTooLargeError(msg string) *ApiError {
	return newApiError(http.StatusRequestEntityTooLarge, msg)
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    strings.ToLower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

// fromChatError maps a chat failure onto an HTTP status.
func fromChatError(err error) *ApiError {
	msg := chat.PublicMessage(err)
	switch chat.KindOf(err) {
	case chat.KindValidation:
		return NewBadRequestError(msg)
	case chat.KindAuthentication:
		return NewUnauthorizedError(msg)
	case chat.KindAuthorization:
		return NewForbiddenError(msg)
	case chat.KindNotFound:
		return NewNotFoundError(msg)
	case chat.KindConflict:
		return NewConflictError(msg)
	default:
		return NewInternalServerError(err)
	}
}

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}
